// Package session resolves a browser identity (inline cookies, persisted
// cookies file, or a bare profile directory), injects it into pages before
// navigation, and persists validated credentials back to disk.
package session

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/rednote/config"
	"github.com/use-agent/rednote/models"
)

// Site constants for the target platform.
const (
	SiteHome     = "https://www.xiaohongshu.com/"
	SiteExplore  = "https://www.xiaohongshu.com/explore"
	SiteHost     = "www.xiaohongshu.com"
	CookieDomain = ".xiaohongshu.com"
)

// Identity sources, in precedence order.
const (
	SourceJSON    = "cookies_json"
	SourceHeader  = "cookie_string"
	SourceFile    = "cookies_file"
	SourceProfile = "profile"
	SourceNone    = "none"
)

// Session is the resolved credential identity for the browser session.
// Cookies (when any) are injected into every page before its first
// navigation; validated credentials are written back through Persist.
type Session struct {
	cookies   []Cookie
	source    string
	storePath string
}

// Resolve builds a Session from the configured credential sources.
// Precedence: inline JSON > inline cookie string > persisted cookies file >
// bare profile directory (the profile carries whatever the browser stored).
// Malformed inline input is fatal; an unreadable cookies file is not (the
// file is an optimization, the profile may still hold a valid session).
func Resolve(cfg config.SessionConfig) (*Session, error) {
	s := &Session{
		source:    SourceNone,
		storePath: cfg.ResolvedCookiesFile(),
	}

	if cfg.CookiesJSON != "" {
		cookies, err := ParseCookieJSON([]byte(cfg.CookiesJSON))
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeCredential,
				"REDNOTE_COOKIES_JSON is not a valid cookie set", err)
		}
		s.cookies = cookies
		s.source = SourceJSON
		return s, nil
	}

	if cfg.Cookies != "" {
		cookies := ParseCookieHeader(cfg.Cookies)
		if len(cookies) == 0 {
			return nil, models.NewScrapeError(models.ErrCodeCredential,
				"REDNOTE_COOKIES contains no name=value pairs", nil)
		}
		s.cookies = cookies
		s.source = SourceHeader
		return s, nil
	}

	if s.storePath != "" {
		cookies, err := loadCookiesFile(s.storePath)
		if err != nil {
			slog.Warn("persisted cookies file unreadable, falling back to profile",
				"path", s.storePath, "error", err)
		} else if len(cookies) > 0 {
			s.cookies = cookies
			s.source = SourceFile
			return s, nil
		}
	}

	if cfg.UserDataPath != "" {
		s.source = SourceProfile
	}
	return s, nil
}

// Source reports which credential source won the precedence chain.
func (s *Session) Source() string { return s.source }

// HasCookies reports whether the session carries injectable cookies.
func (s *Session) HasCookies() bool { return len(s.cookies) > 0 }

// Inject sets the session's cookies on the page, pinned to the site
// domain, before any navigation. A cookie declaring a foreign domain is
// rejected outright: silently applying credentials to "any site" is how
// token leaks happen, so injection fails closed.
func (s *Session) Inject(page *rod.Page) error {
	for _, c := range s.cookies {
		domain := c.Domain
		if domain == "" {
			domain = CookieDomain
		}
		if !domainAllowed(domain) {
			return models.NewScrapeError(models.ErrCodeCredential,
				fmt.Sprintf("cookie %q is bound to foreign domain %q", c.Name, c.Domain), nil)
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		_, err := proto.NetworkSetCookie{
			Name:    c.Name,
			Value:   c.Value,
			Domain:  domain,
			Path:    path,
			Expires: proto.TimeSinceEpoch(c.Expires),
		}.Call(page)
		if err != nil {
			return models.NewScrapeError(models.ErrCodeCredential,
				fmt.Sprintf("failed to inject cookie %q", c.Name), err)
		}
	}
	if len(s.cookies) > 0 {
		slog.Debug("cookies injected", "count", len(s.cookies), "source", s.source)
	}
	return nil
}

// Persist writes the full cookie set to the persisted cookies file,
// replacing any previous contents. This is the only write path into
// durable storage; saving the same set twice produces identical bytes.
// A session without a configured store path persists nothing.
func (s *Session) Persist(cookies []Cookie) error {
	if s.storePath == "" {
		return nil
	}
	if err := saveCookiesFile(s.storePath, cookies); err != nil {
		return models.NewScrapeError(models.ErrCodeInternal,
			"failed to persist cookies", err)
	}
	slog.Info("cookies persisted", "path", s.storePath, "count", len(cookies))
	return nil
}

// CookiesFromProto converts browser cookies to the persisted form.
func CookiesFromProto(in []*proto.NetworkCookie) []Cookie {
	out := make([]Cookie, 0, len(in))
	for _, c := range in {
		if c == nil {
			continue
		}
		out = append(out, Cookie{
			Name:    c.Name,
			Value:   c.Value,
			Domain:  c.Domain,
			Path:    c.Path,
			Expires: float64(c.Expires),
		})
	}
	return out
}

// domainAllowed accepts the site apex domain and its subdomains only.
func domainAllowed(domain string) bool {
	d := strings.TrimPrefix(strings.ToLower(domain), ".")
	apex := strings.TrimPrefix(CookieDomain, ".")
	return d == apex || strings.HasSuffix(d, "."+apex)
}
