package login

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-rod/rod"

	"github.com/use-agent/rednote/config"
	"github.com/use-agent/rednote/models"
)

func testLoginConfig() config.LoginConfig {
	return config.LoginConfig{
		DefaultWait:     2 * time.Second,
		MaxWait:         5 * time.Second,
		PollInterval:    10 * time.Millisecond,
		RecheckInterval: 50 * time.Millisecond,
		CookieThreshold: 8,
		ModalWait:       time.Second,
	}
}

func TestPoll_WithoutChallenge(t *testing.T) {
	o := New(nil, testLoginConfig(), config.WebhookConfig{})

	_, err := o.Poll(context.Background(), time.Second, "")
	if err == nil {
		t.Fatal("Poll without a challenge should fail")
	}
	var se *models.ScrapeError
	if !errors.As(err, &se) {
		t.Fatalf("error type = %T, want *models.ScrapeError", err)
	}
	if se.Code != models.ErrCodeNoLoginSession {
		t.Errorf("Code = %q, want %q", se.Code, models.ErrCodeNoLoginSession)
	}
}

func TestSuperseded_DetectsChallengeReplacement(t *testing.T) {
	o := New(nil, testLoginConfig(), config.WebhookConfig{})
	first := &rod.Page{}
	second := &rod.Page{}

	o.page = first
	o.state = StateWaiting
	if st, gone := o.superseded(first); gone {
		t.Errorf("live challenge reported as superseded (state %v)", st)
	}

	o.page = second
	st, gone := o.superseded(first)
	if !gone {
		t.Fatal("replaced challenge not reported as superseded")
	}
	if st != StateWaiting {
		t.Errorf("state = %v, want %v", st, StateWaiting)
	}
}

func TestSetStateFor_IgnoresStalePage(t *testing.T) {
	o := New(nil, testLoginConfig(), config.WebhookConfig{})
	live := &rod.Page{}
	stale := &rod.Page{}

	o.page = live
	o.state = StateChallengeIssued

	o.setStateFor(stale, StateExpired)
	if o.State() != StateChallengeIssued {
		t.Errorf("stale poll overwrote state: %v", o.State())
	}

	o.setStateFor(live, StateWaiting)
	if o.State() != StateWaiting {
		t.Errorf("live poll failed to update state: %v", o.State())
	}
}
