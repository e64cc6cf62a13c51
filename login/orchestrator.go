package login

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"log/slog"

	"github.com/andybalholm/cascadia"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/net/html"

	"github.com/use-agent/rednote/config"
	"github.com/use-agent/rednote/extract"
	"github.com/use-agent/rednote/models"
	"github.com/use-agent/rednote/scraper"
	"github.com/use-agent/rednote/session"
	"github.com/use-agent/rednote/webhook"
)

// Selector/text candidates for triggering the login modal. The site ships
// several shell variants, so each is tried in order until one clicks.
var loginClickCandidates = []struct {
	selector string
	pattern  string
}{
	{"button", "登录"},
	{"a", "登录"},
	{"div", "登录"},
}

// Close-control candidates for dismissing a login overlay that re-appeared
// after the credential landed. Text match first, attribute heuristics after.
var closeClickCandidates = []struct {
	selector string
	pattern  string
}{
	{"button", `^\s*[×✕]\s*$`},
	{"div", `^\s*[×✕]\s*$`},
	{"span", `^\s*[×✕]\s*$`},
}

var closeSelectors = []string{
	`[aria-label*="关闭"]`,
	`.close-button`,
	`.icon-btn-wrapper .close`,
	`div.close-circle`,
}

var closeMatchers = compileMatchers(closeSelectors)

// QR container candidates, most specific first. Screenshotting the
// container rather than the viewport keeps the code scannable at small
// client render sizes.
var qrSelectors = []string{
	".login-container .qrcode-img",
	".qrcode-img",
	"img.qrcode",
	".login-container .qrcode",
	".login-container",
}

var qrMarkerMatchers = compileMatchers([]string{
	".qrcode-img",
	"img.qrcode",
	".login-container",
})

func compileMatchers(selectors []string) []cascadia.Matcher {
	out := make([]cascadia.Matcher, 0, len(selectors))
	for _, sel := range selectors {
		m, err := cascadia.Compile(sel)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

const statePreviewMax = 200

// Orchestrator owns the dedicated login page and the state machine around
// it. The login page is deliberately not drawn from the scrape pool: it
// must stay alive across HTTP requests while the user scans, and a scrape
// racing it would reset the challenge.
type Orchestrator struct {
	mu       sync.Mutex
	sc       *scraper.Scraper
	cfg      config.LoginConfig
	hook     config.WebhookConfig
	page     *rod.Page
	state    State
	probeURL string
	baseline int
}

func New(sc *scraper.Scraper, cfg config.LoginConfig, hook config.WebhookConfig) *Orchestrator {
	return &Orchestrator{sc: sc, cfg: cfg, hook: hook, state: StateIdle}
}

// State reports the machine position for health reporting.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// IssueChallenge opens (or replaces) the login page, surfaces the QR
// modal and returns a PNG screenshot of the QR container. A previous
// challenge, if any, is superseded: its page is closed first so two
// challenges never race on the shared profile.
func (o *Orchestrator) IssueChallenge(ctx context.Context, probeURL string) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if probeURL == "" {
		probeURL = session.SiteExplore
	}

	if o.page != nil {
		_ = o.page.Close()
		o.page = nil
		o.state = StateIdle
	}

	page, err := o.sc.NewSessionPage()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "open login page", err)
	}

	p := page.Context(ctx)
	if err := p.Navigate(probeURL); err != nil {
		_ = page.Close()
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "navigate to login probe page", err)
	}
	o.sc.Settle(p)

	o.triggerModal(p, probeURL)

	img, err := o.captureQR(p)
	if err != nil {
		_ = page.Close()
		return nil, err
	}

	o.page = page
	o.probeURL = probeURL
	o.baseline = o.sc.CookieCount()
	o.state = StateChallengeIssued

	slog.Info("login challenge issued",
		"probe_url", probeURL,
		"baseline_cookies", o.baseline,
		"qr_bytes", len(img),
	)
	return img, nil
}

// triggerModal clicks a login entry point if the overlay is not already
// up, then waits up to ModalWait for the lock class or a QR container to
// appear. Best effort: some shells auto-open the modal on navigation.
func (o *Orchestrator) triggerModal(p *rod.Page, probeURL string) {
	obs := o.sc.Observe(p, probeURL)
	if obs.LockOverlay || hasAnyMatch(obs.PageHTML, qrMarkerMatchers) {
		return
	}

	for _, c := range loginClickCandidates {
		el, err := p.Timeout(time.Second).ElementR(c.selector, c.pattern)
		if err != nil {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			break
		}
	}

	deadline := time.Now().Add(o.cfg.ModalWait)
	for time.Now().Before(deadline) {
		obs = o.sc.Observe(p, probeURL)
		if obs.LockOverlay || hasAnyMatch(obs.PageHTML, qrMarkerMatchers) {
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// captureQR screenshots the first matching QR container, falling back to
// the viewport when no container is found.
func (o *Orchestrator) captureQR(p *rod.Page) ([]byte, error) {
	for _, sel := range qrSelectors {
		el, err := p.Timeout(time.Second).Element(sel)
		if err != nil {
			continue
		}
		img, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
		if err == nil && len(img) > 0 {
			return img, nil
		}
	}

	img, err := p.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil || len(img) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "capture login QR screenshot", err)
	}
	return img, nil
}

// Poll watches the login page until the credential validates against a
// real note fetch or the timeout elapses. A timeout is not an error: the
// user may simply not have scanned yet, so it returns status "waiting"
// with diagnostics and the challenge stays live for the next poll.
func (o *Orchestrator) Poll(ctx context.Context, timeout time.Duration, verifyURL string) (*models.LoginWaitResponse, error) {
	if timeout <= 0 {
		timeout = o.cfg.DefaultWait
	}
	if timeout > o.cfg.MaxWait {
		timeout = o.cfg.MaxWait
	}
	deadline := time.Now().Add(timeout)
	// Every blocking browser action below inherits the deadline, so a slow
	// verification navigation cannot hold the request past its timeout.
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	o.mu.Lock()
	page := o.page
	probe := o.probeURL
	baseline := o.baseline
	if o.state == StateChallengeIssued {
		o.state = StateWaiting
	}
	st := o.state
	o.mu.Unlock()

	if page == nil {
		return nil, models.NewScrapeError(models.ErrCodeNoLoginSession,
			"no login session: request a QR challenge first", nil)
	}
	target := verifyURL
	if target == "" {
		target = probe
	}

	var lastObs scraper.Observation
	var lastRecheck time.Time

	for {
		// Another challenge (or a concurrent poll that already validated)
		// may have retired this page; keep watching a closed page and the
		// poll would spin uselessly until the deadline.
		if cur, gone := o.superseded(page); gone {
			if cur == StateSuccess {
				return &models.LoginWaitResponse{
					Status: models.StatusSuccess,
					Data:   models.LoginWaitData{CookiesCount: lastObs.CookieCount},
				}, nil
			}
			return &models.LoginWaitResponse{
				Status: models.StatusWaiting,
				Data: models.LoginWaitData{
					CookiesCount: lastObs.CookieCount,
					TimeoutSec:   int(timeout / time.Second),
					Debug:        diagnosis(lastObs),
				},
			}, nil
		}

		obs := o.sc.Observe(page, target)
		lastObs = obs

		sig := Signals{
			OverlayPresent: obs.LockOverlay,
			CookieGained:   obs.CookieCount > baseline && obs.CookieCount >= o.cfg.CookieThreshold,
			DeadlineHit:    !time.Now().Before(deadline) || ctx.Err() != nil,
		}
		st = advance(st, sig)

		// Validation is rate limited: dismissing the overlay and
		// re-fetching the probe page are full page actions, so they run
		// at most once per RecheckInterval even though cookie checks
		// tick every PollInterval.
		if st == StateValidating && time.Since(lastRecheck) >= o.cfg.RecheckInterval {
			lastRecheck = time.Now()
			if obs.LockOverlay {
				o.dismissOverlay(page, obs.PageHTML)
			}
			verified, vobs := o.verify(ctx, page, target)
			lastObs = vobs
			sig.Verified = verified
			sig.OverlayPresent = vobs.LockOverlay
			st = advance(st, sig)
		}

		o.setStateFor(page, st)

		switch st {
		case StateSuccess:
			return o.finishSuccess(page, lastObs)
		case StateExpired:
			slog.Info("login poll timed out",
				"cookies", lastObs.CookieCount,
				"overlay", lastObs.LockOverlay,
			)
			return &models.LoginWaitResponse{
				Status: models.StatusWaiting,
				Data: models.LoginWaitData{
					CookiesCount: lastObs.CookieCount,
					TimeoutSec:   int(timeout / time.Second),
					Debug:        diagnosis(lastObs),
				},
			}, nil
		}

		if err := sleepCtx(ctx, o.cfg.PollInterval); err != nil {
			o.setStateFor(page, StateExpired)
			return &models.LoginWaitResponse{
				Status: models.StatusWaiting,
				Data: models.LoginWaitData{
					CookiesCount: lastObs.CookieCount,
					TimeoutSec:   int(timeout / time.Second),
					Debug:        diagnosis(lastObs),
				},
			}, nil
		}
	}
}

// verify re-navigates the login page to the target note and attempts a
// real extraction. Only a normalized note counts: cookie growth and a
// dismissed overlay are both spoofable by shell pages.
func (o *Orchestrator) verify(ctx context.Context, page *rod.Page, target string) (bool, scraper.Observation) {
	p := page.Context(ctx)
	if err := p.Navigate(target); err != nil {
		return false, o.sc.Observe(page, target)
	}
	o.sc.Settle(p)

	obs := o.sc.Observe(page, target)
	if obs.LockOverlay {
		return false, obs
	}
	if strings.Contains(obs.PageTitle, "不见了") {
		return false, obs
	}

	noteID := extract.NoteID(target)
	if noteID == "" {
		// Probe page is not a note URL; fall back to the overlay tier.
		return !obs.LockOverlay && obs.InitState != "", obs
	}
	_, err := extract.Extract(obs, noteID)
	return err == nil, obs
}

// dismissOverlay tries the close controls on a lingering login overlay.
// The static snapshot is consulted first so selectors that cannot match
// never cost a browser round trip.
func (o *Orchestrator) dismissOverlay(page *rod.Page, snapshot string) {
	for _, c := range closeClickCandidates {
		el, err := page.Timeout(time.Second).ElementR(c.selector, c.pattern)
		if err != nil {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			return
		}
	}

	doc, err := html.Parse(strings.NewReader(snapshot))
	if err != nil {
		return
	}
	for i, m := range closeMatchers {
		if cascadia.Query(doc, m) == nil {
			continue
		}
		el, err := page.Timeout(time.Second).Element(closeSelectors[i])
		if err != nil {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			return
		}
	}
}

// finishSuccess persists the validated cookie jar, notifies the webhook
// endpoint and retires the login page. Only the page this poll was
// watching is retired: a challenge issued in the meantime keeps its own.
func (o *Orchestrator) finishSuccess(page *rod.Page, obs scraper.Observation) (*models.LoginWaitResponse, error) {
	cookies, err := o.sc.BrowserCookies()
	if err == nil {
		if perr := o.sc.Session().Persist(session.CookiesFromProto(cookies)); perr != nil {
			slog.Warn("persist login cookies", "error", perr)
		}
	} else {
		slog.Warn("read browser cookies after login", "error", err)
	}

	o.mu.Lock()
	if o.page == page {
		_ = o.page.Close()
		o.page = nil
		o.state = StateSuccess
	}
	o.mu.Unlock()

	slog.Info("login validated", "cookies", obs.CookieCount)

	if o.hook.URL != "" {
		webhook.DeliverAsync(o.hook.URL, o.hook.Secret, &webhook.Event{
			Type:      webhook.EventLoginSucceeded,
			Timestamp: time.Now().Unix(),
			Data:      map[string]int{"cookies_count": obs.CookieCount},
		})
	}

	return &models.LoginWaitResponse{
		Status: models.StatusSuccess,
		Data: models.LoginWaitData{
			CookiesCount: obs.CookieCount,
		},
	}, nil
}

// Close abandons the current challenge, if any.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.page != nil {
		_ = o.page.Close()
		o.page = nil
	}
	if o.state != StateSuccess {
		o.state = StateIdle
	}
}

// setStateFor records st only while page is still the live challenge, so a
// stale poll cannot overwrite the state of a challenge that replaced it.
func (o *Orchestrator) setStateFor(page *rod.Page, st State) {
	o.mu.Lock()
	if o.page == page {
		o.state = st
	}
	o.mu.Unlock()
}

// superseded reports whether page is no longer the live challenge, along
// with the machine state at the moment of the check.
func (o *Orchestrator) superseded(page *rod.Page) (State, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state, o.page != page
}

func diagnosis(obs scraper.Observation) *models.LoginDiagnosis {
	names := obs.CookieNames
	if len(names) > 10 {
		names = names[:10]
	}
	preview := obs.InitState
	if len(preview) > statePreviewMax {
		preview = preview[:statePreviewMax]
		for len(preview) > 0 && !utf8.ValidString(preview) {
			preview = preview[:len(preview)-1]
		}
	}
	return &models.LoginDiagnosis{
		Title:              obs.PageTitle,
		URL:                obs.PageURL,
		OverlayPresent:     obs.LockOverlay,
		CookiesCount:       obs.CookieCount,
		CookieNamesPreview: names,
		StatePreview:       preview,
	}
}

func hasAnyMatch(rawHTML string, matchers []cascadia.Matcher) bool {
	if rawHTML == "" {
		return false
	}
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return false
	}
	for _, m := range matchers {
		if cascadia.Query(doc, m) != nil {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
