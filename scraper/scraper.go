// Package scraper owns the browser lifecycle and the page-loading path:
// navigate, wait for hydration, observe the rendered document, extract.
package scraper

import (
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/rednote/config"
	"github.com/use-agent/rednote/models"
	"github.com/use-agent/rednote/session"
)

// Scraper manages the browser lifecycle and the single-session page pool.
// The pool has capacity 1: the logical session is not safely shareable, so
// scrape operations queue behind it and run one at a time.
type Scraper struct {
	browser    *rod.Browser
	pagePool   rod.Pool[rod.Page]
	sess       *session.Session
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig
	resolver   *linkResolver
	startTime  time.Time
}

// NewScraper launches a headless browser bound to the configured identity.
// When a user-data path is set, the browser reopens the persisted profile
// so prior login state carries across restarts.
func NewScraper(sess *session.Session, browserCfg config.BrowserConfig,
	sessionCfg config.SessionConfig, scraperCfg config.ScraperConfig) (*Scraper, error) {

	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.Proxy != "" {
		l = l.Proxy(browserCfg.Proxy)
	}
	if sessionCfg.UserDataPath != "" {
		l = l.UserDataDir(sessionCfg.UserDataPath)
		// Pin the profile: a login written into one profile must not be
		// invisible to scrapes that open another.
		l.Set(flags.Flag("profile-directory"), sessionCfg.Profile)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("lang"), "zh-CN")
	l.Set(flags.Flag("window-size"), "1280,720")
	if browserCfg.UserAgent != "" {
		l.Set(flags.Flag("user-agent"), browserCfg.UserAgent)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL,
		"headless", browserCfg.Headless, "identity", sess.Source())

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	return &Scraper{
		browser:    browser,
		pagePool:   rod.NewPagePool(1),
		sess:       sess,
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
		resolver:   newLinkResolver(browserCfg.Proxy, browserCfg.UserAgent),
		startTime:  time.Now(),
	}, nil
}

// Session returns the resolved credential identity.
func (s *Scraper) Session() *session.Session { return s.sess }

// StartTime reports when the browser came up (health endpoint).
func (s *Scraper) StartTime() time.Time { return s.startTime }

// NewSessionPage creates a long-lived page outside the scrape pool with
// stealth applied and credentials injected. The login orchestrator uses
// it to hold a challenge session across calls; the caller owns Close.
func (s *Scraper) NewSessionPage() (*rod.Page, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to create session page",
			err,
		)
	}
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}
	if err := s.sess.Inject(page); err != nil {
		_ = page.Close()
		return nil, err
	}
	return page, nil
}

// BrowserCookies returns the full cookie jar across all domains.
func (s *Scraper) BrowserCookies() ([]*proto.NetworkCookie, error) {
	return s.browser.GetCookies()
}

// CookieCount is BrowserCookies reduced to a diagnostic number; it
// swallows errors because a jar read must never fail a poll tick.
func (s *Scraper) CookieCount() int {
	cookies, err := s.browser.GetCookies()
	if err != nil {
		return 0
	}
	return len(cookies)
}

// Close drains the page pool and kills the browser process.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (s *Scraper) Close() {
	slog.Info("scraper shutting down: draining page pool")
	s.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	slog.Info("scraper shutting down: closing browser")
	s.browser.MustClose()
	slog.Info("scraper shutdown complete")
}
