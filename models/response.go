package models

// Status values used across API responses.
const (
	StatusSuccess = "success"
	StatusWaiting = "waiting"
	StatusError   = "error"
)

// ScrapeResponse is the response for POST /api/v1/scrape.
type ScrapeResponse struct {
	// Status is "success" or "error".
	Status string `json:"status"`

	// Data is the extracted note. Populated only on success.
	Data *Note `json:"data,omitempty"`

	// ContentMD is the note body rendered as Markdown, when requested.
	ContentMD string `json:"content_md,omitempty"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Status is "error".
	Error *ErrorDetail `json:"error,omitempty"`

	// Failure carries extraction diagnostics when the page rendered but
	// no note data could be recovered.
	Failure *FailureDetail `json:"failure,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// NavigationMs is the time spent navigating and rendering the page.
	NavigationMs int64 `json:"navigation_ms"`
}

// LoginWaitResponse is the response for GET /api/v1/login/wait.
type LoginWaitResponse struct {
	// Status is "success" when the session validated against a real note
	// fetch, "waiting" when the timeout elapsed first. A timeout is
	// expected recoverable flow, never an error.
	Status string `json:"status"`

	Data LoginWaitData `json:"data"`
}

// LoginWaitData carries the poll outcome plus diagnostics that let a
// caller distinguish "cookie present but not yet validated" from
// "nothing happened at all".
type LoginWaitData struct {
	CookiesCount int             `json:"cookies_count"`
	TimeoutSec   int             `json:"timeout,omitempty"`
	Debug        *LoginDiagnosis `json:"debug,omitempty"`
}

// LoginDiagnosis is a snapshot of the login session at the last poll tick.
// Cookie values are never included, only names and counts.
type LoginDiagnosis struct {
	Title              string   `json:"title"`
	URL                string   `json:"url"`
	OverlayPresent     bool     `json:"overlay_present"`
	CookiesCount       int      `json:"cookies_count"`
	CookieNamesPreview []string `json:"cookie_names_preview,omitempty"`
	StatePreview       string   `json:"runtime_state_preview,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status     string `json:"status"` // "healthy" or "degraded"
	Uptime     string `json:"uptime"`
	LoginState string `json:"login_state"`
	Version    string `json:"version"`
}
