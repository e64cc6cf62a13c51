package login

import "testing"

func TestAdvance_TransitionTable(t *testing.T) {
	tests := []struct {
		name string
		from State
		sig  Signals
		want State
	}{
		{"idle stays idle", StateIdle, Signals{CookieGained: true, Verified: true}, StateIdle},
		{"challenge to waiting", StateChallengeIssued, Signals{}, StateWaiting},
		{"challenge to validating on cookies", StateChallengeIssued, Signals{CookieGained: true}, StateValidating},
		{"waiting holds", StateWaiting, Signals{}, StateWaiting},
		{"waiting holds with overlay", StateWaiting, Signals{OverlayPresent: true}, StateWaiting},
		{"waiting to validating", StateWaiting, Signals{CookieGained: true}, StateValidating},
		{"validating holds", StateValidating, Signals{CookieGained: true}, StateValidating},
		{"validating back to waiting when jar shrinks", StateValidating, Signals{}, StateWaiting},
		{"verified wins from waiting", StateWaiting, Signals{Verified: true}, StateSuccess},
		{"verified wins from validating", StateValidating, Signals{CookieGained: true, Verified: true}, StateSuccess},
		{"verified beats deadline", StateValidating, Signals{Verified: true, DeadlineHit: true}, StateSuccess},
		{"deadline expires waiting", StateWaiting, Signals{DeadlineHit: true}, StateExpired},
		{"deadline expires validating", StateValidating, Signals{CookieGained: true, DeadlineHit: true}, StateExpired},
		{"cookies alone never succeed", StateValidating, Signals{CookieGained: true, OverlayPresent: false}, StateValidating},
		{"success is terminal", StateSuccess, Signals{DeadlineHit: true}, StateSuccess},
		{"expired is terminal", StateExpired, Signals{Verified: true}, StateExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := advance(tt.from, tt.sig); got != tt.want {
				t.Errorf("advance(%v, %+v) = %v, want %v", tt.from, tt.sig, got, tt.want)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateIdle, "idle"},
		{StateChallengeIssued, "challenge_issued"},
		{StateWaiting, "waiting"},
		{StateValidating, "validating"},
		{StateSuccess, "success"},
		{StateExpired, "expired"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestSniffHelpers_Matchers(t *testing.T) {
	if len(closeMatchers) != len(closeSelectors) {
		t.Errorf("close selector compiled count mismatch: %d matchers for %d selectors",
			len(closeMatchers), len(closeSelectors))
	}

	html := `<html><body><div class="login-container"><img class="qrcode-img" src="x.png"></div></body></html>`
	if !hasAnyMatch(html, qrMarkerMatchers) {
		t.Error("QR markers should match a login container snapshot")
	}
	if hasAnyMatch(`<html><body><p>plain</p></body></html>`, qrMarkerMatchers) {
		t.Error("QR markers should not match a plain page")
	}
	if hasAnyMatch("", qrMarkerMatchers) {
		t.Error("empty snapshot should never match")
	}
}
