package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/rednote/extract"
	"github.com/use-agent/rednote/models"
)

// statePollStep is how often the live accessors are re-read while waiting
// for hydration to mount the initial-state payload.
const statePollStep = 500 * time.Millisecond

// riskTitleMarkers flag the verification interstitial the site serves
// when a request trips risk control; there is no note data behind it.
var riskTitleMarkers = []string{"验证", "安全"}

// ScrapeNote is the top-level scrape path.
//
// Lifecycle:
//
//  1. Timeout guard        – hard deadline on the entire operation
//  2. Share-link resolve   – canonical note URL before any navigation
//  3. Acquire page         – the capacity-1 pool serializes callers
//  4. DEFER: cleanup       – about:blank + return to pool
//  5. Stealth + hijack     – must be installed before navigation
//  6. Credential injection – cookies pinned to the site domain
//  7. Navigate + settle    – DOM stable, then hydration grace
//  8. Observe + extract    – snapshot, risk check, strategy chain
func (s *Scraper) ScrapeNote(ctx context.Context, req *models.ScrapeRequest) (*models.ScrapeResult, error) {
	// ── 1. Timeout guard ─────────────────────────────────────────────
	timeout := time.Duration(req.Timeout) * time.Second
	if timeout <= 0 {
		timeout = s.scraperCfg.DefaultTimeout
	}
	if timeout > s.scraperCfg.MaxTimeout {
		timeout = s.scraperCfg.MaxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// ── 2. Share-link resolution ─────────────────────────────────────
	target, err := s.resolver.Resolve(ctx, req.URL)
	if err != nil {
		return nil, categorizeError(err, "failed to resolve share link")
	}
	noteID := extract.NoteID(target)
	if noteID == "" {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("no note id in URL path: %s", target), nil)
	}

	// ── 3. Acquire the session page ──────────────────────────────────
	page, acquireErr := s.pagePool.Get(func() (*rod.Page, error) {
		return s.newScrapePage()
	})
	if acquireErr != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to acquire page from pool",
			acquireErr,
		)
	}

	// ── 4. CRITICAL DEFER: release the page even on timeout ─────────
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		s.pagePool.Put(page)
	}()

	// ── 5. Hijack heavy resources (the payload is JSON, not pixels) ─
	router := setupHijack(page, s.scraperCfg.BlockedResourceTypes)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	// ── 6. Credential injection before navigation ────────────────────
	if err := s.sess.Inject(page); err != nil {
		return nil, err
	}

	// ── 7. Navigate and settle ───────────────────────────────────────
	p := page.Context(ctx)
	if navErr := p.Navigate(target); navErr != nil {
		return nil, categorizeError(navErr, "navigation to note page failed")
	}
	s.settle(p)

	// ── 8. Observe, risk check, extract ──────────────────────────────
	obs := s.awaitState(ctx, p, target)

	if isRiskTitle(obs.PageTitle) {
		return nil, &models.ScrapeError{
			Code:    models.ErrCodeRiskControl,
			Message: fmt.Sprintf("risk control triggered, page title: %s", obs.PageTitle),
		}
	}

	note, err := extract.Extract(obs, noteID)
	if err != nil {
		return nil, err
	}

	result := &models.ScrapeResult{Note: note}
	if req.IncludeContent {
		result.ContentMD = extract.RenderContent(obs.PageHTML, target)
	}
	return result, nil
}

// newScrapePage creates a pooled page with stealth pre-applied.
func (s *Scraper) newScrapePage() (*rod.Page, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}
	return page, nil
}

// settle waits for the DOM to stop mutating, then grants the hydration
// grace period: the site delivers a shell first and mounts note data
// asynchronously.
func (s *Scraper) settle(p *rod.Page) {
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}
	s.sleep(p, s.scraperCfg.HydrationGrace)
}

// Settle is the exported settle for the login orchestrator.
func (s *Scraper) Settle(p *rod.Page) { s.settle(p) }

// awaitState observes the page, re-polling the live payload accessors
// until one yields data or the state-wait budget runs out. The final
// observation is returned either way; the extractor's static strategies
// still get their chance on the snapshot.
func (s *Scraper) awaitState(ctx context.Context, p *rod.Page, rawURL string) Observation {
	deadline := time.Now().Add(s.scraperCfg.StateWait)
	for {
		obs := s.Observe(p, rawURL)
		if obs.InitState != "" || obs.NextData != "" {
			return obs
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return obs
		}
		s.sleep(p, statePollStep)
	}
}

// sleep waits for d or until the page context is done.
func (s *Scraper) sleep(p *rod.Page, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-p.GetContext().Done():
	}
}

// isRiskTitle reports whether the page title is the verification shell.
func isRiskTitle(title string) bool {
	for _, marker := range riskTitleMarkers {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}

// categorizeError wraps raw errors into typed ScrapeErrors so the API layer
// can map them to appropriate HTTP status codes.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
