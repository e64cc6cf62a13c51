package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// loadCookiesFile reads the persisted cookie set wholesale. The file is
// a JSON list of cookie objects; the flat object form is accepted too so
// a hand-written file also works.
func loadCookiesFile(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return ParseCookieJSON(data)
}

// saveCookiesFile replaces the persisted cookie set wholesale. Cookies are
// sorted before marshalling so repeated saves of the same set are
// byte-identical.
func saveCookiesFile(path string, cookies []Cookie) error {
	sorted := make([]Cookie, len(cookies))
	copy(sorted, cookies)
	sortCookies(sorted)

	data, err := json.Marshal(sorted)
	if err != nil {
		return fmt.Errorf("marshal cookies: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cookies dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o600)
}

// sortCookies orders cookies by (domain, name, path) for deterministic output.
func sortCookies(cookies []Cookie) {
	sort.Slice(cookies, func(i, j int) bool {
		if cookies[i].Domain != cookies[j].Domain {
			return cookies[i].Domain < cookies[j].Domain
		}
		if cookies[i].Name != cookies[j].Name {
			return cookies[i].Name < cookies[j].Name
		}
		return cookies[i].Path < cookies[j].Path
	})
}
