package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeTimeout           = "SCRAPE_TIMEOUT"
	ErrCodeNavigation        = "NAVIGATION_FAILED"
	ErrCodeNoInitialState    = "NO_INITIAL_STATE"
	ErrCodeNoteDetailMissing = "NOTE_DETAIL_MISSING"
	ErrCodeRiskControl       = "RISK_CONTROL"
	ErrCodeCredential        = "CREDENTIAL_INVALID"
	ErrCodeNoLoginSession    = "NO_LOGIN_SESSION"
	ErrCodeBrowserCrash      = "BROWSER_CRASH"
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// Canonical extraction-failure reasons. The first is the anti-bot /
// not-logged-in signal; the second means a payload parsed but the note
// substructure was absent.
const (
	ReasonNoInitialState    = "unable to extract initial state from page script"
	ReasonNoteDetailMissing = "note detail not found in data structure"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FailureDetail carries extraction diagnostics so a human can tell
// structural drift apart from anti-bot blocking. Previews are bounded;
// the detail is returned once per failed attempt and never persisted.
type FailureDetail struct {
	Reason        string `json:"reason"`
	PageTitle     string `json:"page_title"`
	ScriptPreview string `json:"script_preview"`
	HTMLPreview   string `json:"html_preview"`
}

// ScrapeError is the internal error type carrying an error code and,
// for extraction failures, the diagnostic detail.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error

	// Failure is set only for extraction failures.
	Failure *FailureDetail
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}
