// Package extract recovers the embedded initial-state payload from a
// rendered note page and normalizes it into a Note. Strategies are tried
// in order (live global, live __NEXT_DATA__ node, static HTML fallbacks);
// the first payload containing the note-detail substructure wins.
package extract

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/use-agent/rednote/models"
	"github.com/ysmood/gson"
)

// Preview bounds for failure diagnostics.
const (
	scriptPreviewMax = 240
	htmlPreviewMax   = 500
)

// Page is the rendered-page view the extractor needs. Live accessors
// return "" when the global or node is absent; they never error, since
// page structure varies by note type and anti-bot state.
type Page interface {
	URL() string
	Title() string
	HTML() string
	InitialStateJSON() string
	NextDataJSON() string
}

// RawPayload is a candidate initial-state payload before parsing.
type RawPayload struct {
	// Text is the payload: plain JSON, or an assignment expression that
	// still needs JSON.parse unwrapping.
	Text string

	// Preview is a bounded excerpt of the source script for diagnostics.
	Preview string
}

// Strategy locates one candidate payload on a rendered page.
type Strategy interface {
	Name() string
	Attempt(p Page) (RawPayload, bool)
}

// strategies in priority order: live state reflects post-hydration data
// and always beats a stale static script tag.
var strategies = []Strategy{
	liveState{},
	liveNextData{},
	staticNextData{},
	staticInitialState{},
}

// Extract runs the strategy chain and normalizes the first payload whose
// note-detail substructure resolves. noteID is the identifier from the
// URL path. On failure the returned error is a *models.ScrapeError
// carrying the diagnostic FailureDetail.
func Extract(p Page, noteID string) (*models.Note, error) {
	var lastPreview string
	detailMissing := false

	for _, st := range strategies {
		payload, ok := st.Attempt(p)
		if !ok {
			continue
		}
		if payload.Preview != "" {
			lastPreview = payload.Preview
		}
		data, err := parsePayload(payload.Text)
		if err != nil {
			// Unparseable candidate: the next strategy may still hold
			// a complete copy of the payload.
			continue
		}
		detail, ok := noteDetail(data, noteID)
		if !ok {
			// Structure present but incomplete (anti-bot pages often
			// ship a state object without the note namespace).
			detailMissing = true
			continue
		}
		return normalize(detail, p.URL()), nil
	}

	code := models.ErrCodeNoInitialState
	reason := models.ReasonNoInitialState
	if detailMissing {
		code = models.ErrCodeNoteDetailMissing
		reason = models.ReasonNoteDetailMissing
	}
	return nil, &models.ScrapeError{
		Code:    code,
		Message: reason,
		Failure: buildFailure(p, reason, lastPreview),
	}
}

// NoteID extracts the note identifier from the URL path (the last
// non-empty segment of /explore/<id> or /discovery/item/<id>).
func NoteID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// buildFailure assembles the diagnostic payload. The script preview falls
// back to the page's first script (or the HTML itself) so triage always
// has something to look at.
func buildFailure(p Page, reason, scriptPreview string) *models.FailureDetail {
	html := p.HTML()
	if scriptPreview == "" {
		if scripts := scriptTexts(html); len(scripts) > 0 {
			scriptPreview = bound(scripts[0], scriptPreviewMax)
		}
	}
	if scriptPreview == "" {
		scriptPreview = bound(html, scriptPreviewMax)
	}
	return &models.FailureDetail{
		Reason:        reason,
		PageTitle:     p.Title(),
		ScriptPreview: scriptPreview,
		HTMLPreview:   bound(html, htmlPreviewMax),
	}
}

// undefinedRe matches a bare `undefined` appearing in value position
// (after `:`, `,` or `[`). Anchoring on the preceding delimiter keeps the
// rewrite away from `undefined` occurring inside string contents.
var undefinedRe = regexp.MustCompile(`([:,\[]\s*)undefined\b`)

// parsePayload turns a candidate payload into a traversable JSON value.
// It tolerates the JSON.parse("...") assignment form and bare `undefined`
// property values.
func parsePayload(text string) (gson.JSON, error) {
	expr := strings.TrimSpace(text)
	if inner, ok := unwrapJSONParse(expr); ok {
		expr = inner
	}
	var v interface{}
	if err := json.Unmarshal([]byte(expr), &v); err == nil {
		return gson.New(v), nil
	}
	// Not valid JSON as-is: the page may have serialized missing fields as
	// the literal `undefined`. Rewrite those to null and try once more.
	expr = undefinedRe.ReplaceAllString(expr, "${1}null")
	if err := json.Unmarshal([]byte(expr), &v); err != nil {
		return gson.JSON{}, err
	}
	return gson.New(v), nil
}

// bound truncates s to at most max bytes without splitting a rune.
func bound(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
