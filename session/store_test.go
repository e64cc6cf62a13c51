package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/use-agent/rednote/config"
)

func tempStore(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "cookies.json")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := tempStore(t)
	in := []Cookie{
		{Name: "web_session", Value: "abc", Domain: ".xiaohongshu.com", Path: "/", Expires: 1893456000},
		{Name: "a1", Value: "xyz", Domain: ".xiaohongshu.com", Path: "/"},
	}

	if err := saveCookiesFile(path, in); err != nil {
		t.Fatalf("saveCookiesFile: %v", err)
	}
	out, err := loadCookiesFile(path)
	if err != nil {
		t.Fatalf("loadCookiesFile: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d cookies, want 2", len(out))
	}
	// Stored sorted by (domain, name, path).
	if out[0].Name != "a1" || out[1].Name != "web_session" {
		t.Errorf("cookies = %v", out)
	}
}

func TestSave_Idempotent(t *testing.T) {
	path := tempStore(t)
	// Deliberately unsorted input; order must not leak into the bytes.
	set := []Cookie{
		{Name: "z", Value: "1", Domain: ".xiaohongshu.com"},
		{Name: "a", Value: "2", Domain: ".xiaohongshu.com"},
	}

	if err := saveCookiesFile(path, set); err != nil {
		t.Fatalf("first save: %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read first: %v", err)
	}

	reversed := []Cookie{set[1], set[0]}
	if err := saveCookiesFile(path, reversed); err != nil {
		t.Fatalf("second save: %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read second: %v", err)
	}

	if string(first) != string(second) {
		t.Errorf("repeat save of the same set changed the file:\n%s\nvs\n%s", first, second)
	}
}

func TestSave_DoesNotMutateInput(t *testing.T) {
	path := tempStore(t)
	set := []Cookie{
		{Name: "z", Value: "1"},
		{Name: "a", Value: "2"},
	}
	if err := saveCookiesFile(path, set); err != nil {
		t.Fatalf("saveCookiesFile: %v", err)
	}
	if set[0].Name != "z" {
		t.Error("saveCookiesFile sorted the caller's slice in place")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cookies, err := loadCookiesFile(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("missing file should not be an error, got: %v", err)
	}
	if cookies != nil {
		t.Errorf("got %v, want nil", cookies)
	}
}

func TestResolve_Precedence(t *testing.T) {
	path := tempStore(t)
	if err := saveCookiesFile(path, []Cookie{{Name: "from_file", Value: "1"}}); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	// Inline JSON wins over everything.
	s, err := Resolve(config.SessionConfig{
		CookiesJSON: `{"from_json":"1"}`,
		Cookies:     "from_header=1",
		CookiesFile: path,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.Source() != SourceJSON {
		t.Errorf("source = %q, want %q", s.Source(), SourceJSON)
	}

	// Header string next.
	s, err = Resolve(config.SessionConfig{
		Cookies:     "from_header=1",
		CookiesFile: path,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.Source() != SourceHeader {
		t.Errorf("source = %q, want %q", s.Source(), SourceHeader)
	}

	// Persisted file next.
	s, err = Resolve(config.SessionConfig{CookiesFile: path})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.Source() != SourceFile {
		t.Errorf("source = %q, want %q", s.Source(), SourceFile)
	}
	if !s.HasCookies() {
		t.Error("file-sourced session should carry cookies")
	}

	// Bare profile last.
	s, err = Resolve(config.SessionConfig{UserDataPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.Source() != SourceProfile {
		t.Errorf("source = %q, want %q", s.Source(), SourceProfile)
	}

	// Nothing configured.
	s, err = Resolve(config.SessionConfig{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.Source() != SourceNone {
		t.Errorf("source = %q, want %q", s.Source(), SourceNone)
	}
}

func TestResolve_MalformedInlineJSONIsFatal(t *testing.T) {
	if _, err := Resolve(config.SessionConfig{CookiesJSON: "{broken"}); err == nil {
		t.Error("malformed inline JSON should fail Resolve")
	}
}

func TestResolve_UnreadableFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := Resolve(config.SessionConfig{CookiesFile: path, UserDataPath: dir})
	if err != nil {
		t.Fatalf("Resolve should tolerate a corrupt cookies file, got: %v", err)
	}
	if s.Source() != SourceProfile {
		t.Errorf("source = %q, want fallback to %q", s.Source(), SourceProfile)
	}
}
