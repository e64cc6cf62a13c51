package models

// Note is the structured record extracted from a note page's initial-state
// payload. It is only ever built from a successfully parsed payload that
// contains a recognizable note-detail substructure; a partially filled Note
// is never returned.
type Note struct {
	// Title is the note headline. May be empty for caption-only notes.
	Title string `json:"title"`

	// Desc is the note body text.
	Desc string `json:"desc"`

	// Type is the note kind as reported by the site ("normal", "video", ...).
	// Falls back to "normal" when the source field is absent.
	Type string `json:"type"`

	// ImageList holds direct image URLs in display order.
	ImageList []string `json:"image_list"`

	// User is the author's display name.
	User string `json:"user"`

	// RawURL is the URL the note was scraped from.
	RawURL string `json:"raw_url"`
}

// ScrapeResult bundles a Note with the optional rendered body content.
type ScrapeResult struct {
	Note *Note

	// ContentMD is the note body rendered as Markdown. Populated only when
	// the request asked for it.
	ContentMD string
}
