package session

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Cookie is the injectable and persisted cookie form. Expires is seconds
// since the epoch; zero means a session cookie.
type Cookie struct {
	Name    string  `json:"name"`
	Value   string  `json:"value"`
	Domain  string  `json:"domain,omitempty"`
	Path    string  `json:"path,omitempty"`
	Expires float64 `json:"expires,omitempty"`
}

// jsonCookie tolerates the two field spellings browser exports use for
// the expiry timestamp.
type jsonCookie struct {
	Name           string  `json:"name"`
	Value          string  `json:"value"`
	Domain         string  `json:"domain"`
	Path           string  `json:"path"`
	Expires        float64 `json:"expires"`
	ExpirationDate float64 `json:"expirationDate"`
}

// ParseCookieHeader parses an "a=b; c=d" cookie header string. Parts
// without an "=" are skipped.
func ParseCookieHeader(text string) []Cookie {
	var cookies []Cookie
	for _, part := range strings.Split(text, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		cookies = append(cookies, Cookie{
			Name:  name,
			Value: strings.TrimSpace(value),
		})
	}
	return cookies
}

// ParseCookieJSON parses an inline cookie JSON blob in either of the two
// accepted shapes: a list of cookie objects (browser export format) or a
// flat name→value object.
func ParseCookieJSON(data []byte) ([]Cookie, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("empty cookie JSON")
	}

	if strings.HasPrefix(trimmed, "[") {
		var list []jsonCookie
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("cookie JSON list: %w", err)
		}
		cookies := make([]Cookie, 0, len(list))
		for _, jc := range list {
			if jc.Name == "" {
				continue
			}
			expires := jc.Expires
			if expires == 0 {
				expires = jc.ExpirationDate
			}
			cookies = append(cookies, Cookie{
				Name:    jc.Name,
				Value:   jc.Value,
				Domain:  jc.Domain,
				Path:    jc.Path,
				Expires: expires,
			})
		}
		if len(cookies) == 0 {
			return nil, fmt.Errorf("cookie JSON list contains no named cookies")
		}
		return cookies, nil
	}

	var kv map[string]string
	if err := json.Unmarshal(data, &kv); err != nil {
		return nil, fmt.Errorf("cookie JSON object: %w", err)
	}
	if len(kv) == 0 {
		return nil, fmt.Errorf("cookie JSON object is empty")
	}
	cookies := make([]Cookie, 0, len(kv))
	for name, value := range kv {
		cookies = append(cookies, Cookie{Name: name, Value: value})
	}
	sortCookies(cookies)
	return cookies, nil
}
