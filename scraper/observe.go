package scraper

import (
	"strings"

	"github.com/go-rod/rod"
)

// lockClass marks the login/risk-control overlay; while it is on the
// document element the page is a locked shell.
const lockClass = "reds-lock-scroll"

// Observation is an immutable snapshot of a rendered page. It satisfies
// extract.Page; the live accessors were already evaluated, so the
// extractor never touches the browser.
type Observation struct {
	PageURL     string
	PageTitle   string
	PageHTML    string
	InitState   string
	NextData    string
	LockOverlay bool
	CookieCount int
	CookieNames []string
}

func (o Observation) URL() string              { return o.PageURL }
func (o Observation) Title() string            { return o.PageTitle }
func (o Observation) HTML() string             { return o.PageHTML }
func (o Observation) InitialStateJSON() string { return o.InitState }
func (o Observation) NextDataJSON() string     { return o.NextData }

// Observe evaluates the page's live state into an Observation. Every
// read is best-effort: a page mid-navigation or behind an overlay must
// still produce a usable (if partial) snapshot.
func (s *Scraper) Observe(p *rod.Page, rawURL string) Observation {
	obs := Observation{PageURL: rawURL}

	if html, err := p.HTML(); err == nil {
		obs.PageHTML = html
	}
	obs.PageTitle = evalStringOrEmpty(p, `() => document.title`)

	obs.InitState = evalStringOrEmpty(p,
		`() => window.__INITIAL_STATE__ ? JSON.stringify(window.__INITIAL_STATE__) : ""`)
	obs.NextData = evalStringOrEmpty(p,
		`() => { const e = document.getElementById("__NEXT_DATA__"); return e ? (e.textContent || "") : ""; }`)

	// Prefer the live classList check; fall back to a substring match on
	// the snapshot when evaluation fails.
	if res, err := p.Eval(`() => document.documentElement.classList.contains("` + lockClass + `")`); err == nil {
		obs.LockOverlay = res.Value.Bool()
	} else {
		obs.LockOverlay = strings.Contains(obs.PageHTML, lockClass)
	}

	if cookies, err := s.browser.GetCookies(); err == nil {
		obs.CookieCount = len(cookies)
		for _, c := range cookies {
			obs.CookieNames = append(obs.CookieNames, c.Name)
		}
	}
	return obs
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}
