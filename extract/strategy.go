package extract

import (
	"strings"
)

// liveState reads the __INITIAL_STATE__ global from the executing page.
// Preferred: it reflects post-hydration state, including data mounted by
// external scripts that never appears in the HTML source.
type liveState struct{}

func (liveState) Name() string { return "live_initial_state" }

func (liveState) Attempt(p Page) (RawPayload, bool) {
	raw := strings.TrimSpace(p.InitialStateJSON())
	if raw == "" {
		return RawPayload{}, false
	}
	return RawPayload{Text: raw, Preview: bound(raw, scriptPreviewMax)}, true
}

// liveNextData reads the text content of the DOM node with id
// __NEXT_DATA__ (Next.js pages insert it, sometimes after load).
type liveNextData struct{}

func (liveNextData) Name() string { return "live_next_data" }

func (liveNextData) Attempt(p Page) (RawPayload, bool) {
	raw := strings.TrimSpace(p.NextDataJSON())
	if raw == "" {
		return RawPayload{}, false
	}
	return RawPayload{Text: raw, Preview: bound(raw, scriptPreviewMax)}, true
}

// staticNextData finds the __NEXT_DATA__ script tag in the HTML snapshot.
// Covers pages where the live accessor ran before the node was inserted.
type staticNextData struct{}

func (staticNextData) Name() string { return "static_next_data" }

func (staticNextData) Attempt(p Page) (RawPayload, bool) {
	raw := strings.TrimSpace(nextDataFromHTML(p.HTML()))
	if raw == "" {
		return RawPayload{}, false
	}
	return RawPayload{Text: raw, Preview: bound(raw, scriptPreviewMax)}, true
}

// staticInitialState scans the HTML snapshot for an inline script that
// assigns window.__INITIAL_STATE__ and extracts the assigned expression.
// Last resort: script.text can be empty or truncated in the live DOM
// while the raw HTML still carries the full payload.
type staticInitialState struct{}

func (staticInitialState) Name() string { return "static_initial_state" }

func (staticInitialState) Attempt(p Page) (RawPayload, bool) {
	html := p.HTML()

	for _, script := range scriptTexts(html) {
		if !strings.Contains(script, stateMarker) {
			continue
		}
		if expr, ok := extractStateExpr(script); ok {
			return RawPayload{Text: expr, Preview: bound(script, scriptPreviewMax)}, true
		}
	}

	// Tokenizer came up empty: scan the full HTML text directly.
	if expr, ok := extractStateExpr(html); ok {
		return RawPayload{Text: expr, Preview: bound(expr, scriptPreviewMax)}, true
	}
	return RawPayload{}, false
}
