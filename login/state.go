// Package login drives the QR login flow: issue a scannable challenge,
// poll the browser session for credential acquisition, validate the
// credential against a real note fetch, and persist it.
package login

// State is the login state machine position.
type State int

const (
	StateIdle State = iota
	StateChallengeIssued
	StateWaiting
	StateValidating
	StateSuccess
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChallengeIssued:
		return "challenge_issued"
	case StateWaiting:
		return "waiting"
	case StateValidating:
		return "validating"
	case StateSuccess:
		return "success"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Signals are the observations a poll tick feeds the transition function.
type Signals struct {
	// OverlayPresent: the login/risk-control overlay still locks the page.
	OverlayPresent bool

	// CookieGained: the jar grew past the baseline and crossed the
	// threshold. Necessary but not sufficient — shell pages set tracking
	// cookies without a full login.
	CookieGained bool

	// Verified: a real note extraction succeeded against the target URL.
	// The only sufficient success signal.
	Verified bool

	// DeadlineHit: the caller's poll timeout elapsed.
	DeadlineHit bool
}

// advance is the pure transition function of the state machine. It takes
// the current state and the tick's observed signals and returns the next
// state; all side effects (overlay dismissal, refresh, persistence) hang
// off the transitions in the orchestrator, never in here.
func advance(s State, sig Signals) State {
	switch s {
	case StateIdle, StateSuccess, StateExpired:
		// Terminal until a new challenge is issued.
		return s
	}

	if sig.Verified {
		return StateSuccess
	}
	if sig.DeadlineHit {
		return StateExpired
	}

	switch s {
	case StateChallengeIssued, StateWaiting:
		if sig.CookieGained {
			return StateValidating
		}
		return StateWaiting
	case StateValidating:
		if !sig.CookieGained {
			// Jar shrank back below threshold (cookie expiry or a
			// cleared challenge); resume waiting.
			return StateWaiting
		}
		return StateValidating
	}
	return s
}
