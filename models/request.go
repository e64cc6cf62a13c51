package models

// ScrapeRequest is the payload for POST /api/v1/scrape.
type ScrapeRequest struct {
	// URL is the note page to scrape. Required. Share links
	// (xhslink.com) are resolved to the canonical note URL first.
	URL string `json:"url" binding:"required,url"`

	// Timeout is the maximum duration in seconds for the entire
	// scrape operation (navigation + hydration + extraction).
	// Default: 30. Max: 120.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`

	// MaxAgeMs enables the response cache: a cached result younger than
	// this many milliseconds is returned without touching the browser.
	MaxAgeMs int `json:"max_age_ms,omitempty" binding:"omitempty,min=0"`

	// IncludeContent additionally renders the note body as Markdown.
	IncludeContent bool `json:"include_content,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *ScrapeRequest) Defaults() {
	if r.Timeout == 0 {
		r.Timeout = 30
	}
}
