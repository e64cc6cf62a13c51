package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Session   SessionConfig
	Scraper   ScraperConfig
	Login     LoginConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for all browser traffic.
	Proxy string

	// UserAgent is the UA string presented to the target site.
	UserAgent string
}

// SessionConfig carries the credential identity the Session Provisioner
// resolves. Precedence: CookiesJSON > Cookies > CookiesFile > bare profile.
type SessionConfig struct {
	// CookiesJSON is an inline cookie set, either a list of cookie objects
	// (browser export format) or a name→value object.
	CookiesJSON string

	// Cookies is an inline "a=b; c=d" cookie header string.
	Cookies string

	// UserDataPath is the persisted browser profile directory. When set,
	// the browser itself carries whatever session state it already stored.
	UserDataPath string

	// Profile is the profile name inside UserDataPath. Default: "Default".
	Profile string

	// CookiesFile is the persisted cookies file. Defaults to
	// <UserDataPath>/rednote_cookies.json when UserDataPath is set.
	CookiesFile string
}

// ResolvedCookiesFile returns the effective cookies-file path, or "" when
// neither an explicit path nor a user-data path is configured.
func (s SessionConfig) ResolvedCookiesFile() string {
	if s.CookiesFile != "" {
		return s.CookiesFile
	}
	if s.UserDataPath != "" {
		return filepath.Join(s.UserDataPath, "rednote_cookies.json")
	}
	return ""
}

// ScraperConfig controls page loading and extraction.
type ScraperConfig struct {
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 120s

	// HydrationGrace is the extra wait after DOM readiness so client-side
	// hydration can mount the initial-state payload.
	HydrationGrace time.Duration // default: 3s

	// StateWait is how long the loader re-polls the live state accessors
	// before extraction falls back to the static strategies.
	StateWait time.Duration // default: 8s

	// BlockedResourceTypes lists resource types to block during loads.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// LoginConfig controls the QR login state machine.
type LoginConfig struct {
	// DefaultWait is the /login/wait timeout when the caller passes none.
	DefaultWait time.Duration // default: 120s

	// MaxWait is the ceiling for caller-supplied wait timeouts.
	MaxWait time.Duration // default: 300s

	// PollInterval is the tick interval of the wait loop.
	PollInterval time.Duration // default: 1s

	// RecheckInterval is the minimum spacing between probe-page refreshes
	// while validating a fresh cookie set.
	RecheckInterval time.Duration // default: 5s

	// CookieThreshold is the jar size at which a cookie delta is treated
	// as a (necessary, not sufficient) login signal.
	CookieThreshold int // default: 8

	// ModalWait bounds how long challenge issuance waits for the login
	// overlay to appear.
	ModalWait time.Duration // default: 8s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// CacheConfig controls the scrape response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 1000
}

// WebhookConfig controls event delivery on successful login.
type WebhookConfig struct {
	// URL is the webhook endpoint. Empty disables delivery.
	URL string

	// Secret signs the payload with HMAC-SHA256 when non-empty.
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("REDNOTE_HOST", "0.0.0.0"),
			Port: envIntOr("REDNOTE_PORT", 8000),
			Mode: envOr("REDNOTE_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("REDNOTE_HEADLESS", true),
			NoSandbox:  envBoolOr("REDNOTE_NO_SANDBOX", true),
			BrowserBin: os.Getenv("REDNOTE_BROWSER_BIN"),
			Proxy:      os.Getenv("REDNOTE_PROXY"),
			UserAgent: envOr("REDNOTE_USER_AGENT",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) "+
					"AppleWebKit/537.36 (KHTML, like Gecko) "+
					"Chrome/122.0.0.0 Safari/537.36"),
		},
		Session: SessionConfig{
			CookiesJSON:  strings.TrimSpace(os.Getenv("REDNOTE_COOKIES_JSON")),
			Cookies:      strings.TrimSpace(os.Getenv("REDNOTE_COOKIES")),
			UserDataPath: strings.TrimSpace(os.Getenv("REDNOTE_USER_DATA_PATH")),
			Profile:      envOr("REDNOTE_PROFILE", "Default"),
			CookiesFile:  strings.TrimSpace(os.Getenv("REDNOTE_COOKIES_FILE")),
		},
		Scraper: ScraperConfig{
			DefaultTimeout: envDurationOr("REDNOTE_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:     envDurationOr("REDNOTE_MAX_TIMEOUT", 120*time.Second),
			HydrationGrace: envDurationOr("REDNOTE_HYDRATION_GRACE", 3*time.Second),
			StateWait:      envDurationOr("REDNOTE_STATE_WAIT", 8*time.Second),
			BlockedResourceTypes: envSliceOr("REDNOTE_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Login: LoginConfig{
			DefaultWait:     envDurationOr("REDNOTE_LOGIN_WAIT", 120*time.Second),
			MaxWait:         envDurationOr("REDNOTE_LOGIN_MAX_WAIT", 300*time.Second),
			PollInterval:    envDurationOr("REDNOTE_LOGIN_POLL_INTERVAL", time.Second),
			RecheckInterval: envDurationOr("REDNOTE_LOGIN_RECHECK_INTERVAL", 5*time.Second),
			CookieThreshold: envIntOr("REDNOTE_LOGIN_COOKIE_THRESHOLD", 8),
			ModalWait:       envDurationOr("REDNOTE_LOGIN_MODAL_WAIT", 8*time.Second),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("REDNOTE_AUTH_ENABLED", false),
			APIKeys: envSliceOr("REDNOTE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("REDNOTE_RATE_RPS", 2.0),
			Burst:             envIntOr("REDNOTE_RATE_BURST", 5),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("REDNOTE_CACHE_MAX_ENTRIES", 1000),
		},
		Webhook: WebhookConfig{
			URL:    strings.TrimSpace(os.Getenv("REDNOTE_WEBHOOK_URL")),
			Secret: os.Getenv("REDNOTE_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("REDNOTE_LOG_LEVEL", "info"),
			Format: envOr("REDNOTE_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
