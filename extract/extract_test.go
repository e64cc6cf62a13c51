package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/use-agent/rednote/models"
)

// fakePage is a canned rendered-page view.
type fakePage struct {
	url       string
	title     string
	html      string
	initState string
	nextData  string
}

func (f fakePage) URL() string              { return f.url }
func (f fakePage) Title() string            { return f.title }
func (f fakePage) HTML() string             { return f.html }
func (f fakePage) InitialStateJSON() string { return f.initState }
func (f fakePage) NextDataJSON() string     { return f.nextData }

const noteURL = "https://www.xiaohongshu.com/explore/64a1b2c3d4"

func statePayload(noteID, title string) string {
	return `{"note":{"noteDetailMap":{"` + noteID + `":{"note":{` +
		`"title":"` + title + `",` +
		`"desc":"a lovely description",` +
		`"type":"normal",` +
		`"imageList":[{"urlDefault":"https://img.example.com/1.jpg"}],` +
		`"user":{"nickname":"tester"}}}}}}`
}

func TestExtract_LiveInitialState(t *testing.T) {
	p := fakePage{
		url:       noteURL,
		initState: statePayload("64a1b2c3d4", "hello"),
	}

	note, err := Extract(p, "64a1b2c3d4")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if note.Title != "hello" {
		t.Errorf("Title = %q, want %q", note.Title, "hello")
	}
	if note.Desc != "a lovely description" {
		t.Errorf("Desc = %q", note.Desc)
	}
	if note.User != "tester" {
		t.Errorf("User = %q, want %q", note.User, "tester")
	}
	if len(note.ImageList) != 1 || note.ImageList[0] != "https://img.example.com/1.jpg" {
		t.Errorf("ImageList = %v", note.ImageList)
	}
	if note.RawURL != noteURL {
		t.Errorf("RawURL = %q, want %q", note.RawURL, noteURL)
	}
}

func TestExtract_LiveStateBeatsStaticScript(t *testing.T) {
	p := fakePage{
		url:       noteURL,
		initState: statePayload("64a1b2c3d4", "live"),
		html: `<html><body><script>window.__INITIAL_STATE__ = ` +
			statePayload("64a1b2c3d4", "stale") + `</script></body></html>`,
	}

	note, err := Extract(p, "64a1b2c3d4")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if note.Title != "live" {
		t.Errorf("Title = %q, want the live payload to win", note.Title)
	}
}

func TestExtract_LiveNextData(t *testing.T) {
	p := fakePage{
		url:      noteURL,
		nextData: statePayload("64a1b2c3d4", "from next data"),
	}

	note, err := Extract(p, "64a1b2c3d4")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if note.Title != "from next data" {
		t.Errorf("Title = %q", note.Title)
	}
}

func TestExtract_StaticNextDataScript(t *testing.T) {
	p := fakePage{
		url: noteURL,
		html: `<html><body><script id="__NEXT_DATA__" type="application/json">` +
			statePayload("64a1b2c3d4", "static next") + `</script></body></html>`,
	}

	note, err := Extract(p, "64a1b2c3d4")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if note.Title != "static next" {
		t.Errorf("Title = %q", note.Title)
	}
}

func TestExtract_StaticInitialStateWithTrailingStatements(t *testing.T) {
	p := fakePage{
		url: noteURL,
		html: `<html><body><script>window.__INITIAL_STATE__ = ` +
			statePayload("64a1b2c3d4", "static state") +
			`;(function(){console.log("boot")})()</script></body></html>`,
	}

	note, err := Extract(p, "64a1b2c3d4")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if note.Title != "static state" {
		t.Errorf("Title = %q", note.Title)
	}
}

func TestExtract_JSONParseAssignment(t *testing.T) {
	payload := statePayload("64a1b2c3d4", "wrapped")
	escaped := strings.ReplaceAll(payload, `"`, `\"`)
	p := fakePage{
		url:  noteURL,
		html: `<html><body><script>window.__INITIAL_STATE__ = JSON.parse("` + escaped + `");</script></body></html>`,
	}

	note, err := Extract(p, "64a1b2c3d4")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if note.Title != "wrapped" {
		t.Errorf("Title = %q", note.Title)
	}
}

func TestExtract_UndefinedValuesTolerated(t *testing.T) {
	payload := `{"note":{"noteDetailMap":{"64a1b2c3d4":{"note":{` +
		`"title":"has undefined",` +
		`"desc":undefined,` +
		`"imageList":undefined,` +
		`"user":{"nickname":"tester"}}}}}}`
	p := fakePage{
		url:  noteURL,
		html: `<html><body><script>window.__INITIAL_STATE__ = ` + payload + `</script></body></html>`,
	}

	note, err := Extract(p, "64a1b2c3d4")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if note.Title != "has undefined" {
		t.Errorf("Title = %q", note.Title)
	}
	if note.Desc != "" {
		t.Errorf("Desc = %q, want empty for undefined", note.Desc)
	}
	if note.Type != "normal" {
		t.Errorf("Type = %q, want fallback %q", note.Type, "normal")
	}
}

func TestExtract_NullFieldsNormalizeToEmpty(t *testing.T) {
	payload := `{"note":{"noteDetailMap":{"64a1b2c3d4":{"note":{` +
		`"title":"only a title",` +
		`"desc":null,` +
		`"type":null,` +
		`"imageList":[{"urlDefault":null,"url":null}],` +
		`"user":{"nickname":null}}}}}}`
	p := fakePage{url: noteURL, initState: payload}

	note, err := Extract(p, "64a1b2c3d4")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if note.Desc != "" {
		t.Errorf("Desc = %q, want empty for null", note.Desc)
	}
	if note.Type != "normal" {
		t.Errorf("Type = %q, want fallback %q", note.Type, "normal")
	}
	if note.User != "" {
		t.Errorf("User = %q, want empty for null nickname", note.User)
	}
	if len(note.ImageList) != 0 {
		t.Errorf("ImageList = %v, want entry without URLs skipped", note.ImageList)
	}
}

func TestExtract_UndefinedInsideStringPreserved(t *testing.T) {
	// A payload that is already valid JSON must parse untouched even when
	// a string value happens to contain the word undefined.
	p := fakePage{
		url:       noteURL,
		initState: statePayload("64a1b2c3d4", "behavior is undefined here"),
	}

	note, err := Extract(p, "64a1b2c3d4")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if note.Title != "behavior is undefined here" {
		t.Errorf("Title = %q, string contents must not be rewritten", note.Title)
	}
}

func TestExtract_FirstNoteIDBeatsSortedFallback(t *testing.T) {
	// When the URL id misses the detail map, the payload's own
	// firstNoteId pointer decides, not key order.
	payload := `{"note":{"firstNoteId":"zzz-real","noteDetailMap":{` +
		`"aaa-decoy":{"note":{"title":"decoy"}},` +
		`"zzz-real":{"note":{"title":"real"}}}}}`
	p := fakePage{url: noteURL, initState: payload}

	note, err := Extract(p, "missing-id")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if note.Title != "real" {
		t.Errorf("Title = %q, want the firstNoteId entry", note.Title)
	}
}

func TestExtract_NoInitialState(t *testing.T) {
	p := fakePage{
		url:   noteURL,
		title: "你访问的页面不见了",
		html:  `<html><head><script>var boot = 1;</script></head><body><p>nothing here</p></body></html>`,
	}

	_, err := Extract(p, "64a1b2c3d4")
	if err == nil {
		t.Fatal("Extract should fail when no strategy yields a payload")
	}

	var se *models.ScrapeError
	if !errors.As(err, &se) {
		t.Fatalf("error type = %T, want *models.ScrapeError", err)
	}
	if se.Code != models.ErrCodeNoInitialState {
		t.Errorf("Code = %q, want %q", se.Code, models.ErrCodeNoInitialState)
	}
	if se.Failure == nil {
		t.Fatal("Failure detail missing")
	}
	if se.Failure.Reason != models.ReasonNoInitialState {
		t.Errorf("Reason = %q", se.Failure.Reason)
	}
	if se.Failure.PageTitle != "你访问的页面不见了" {
		t.Errorf("PageTitle = %q", se.Failure.PageTitle)
	}
	if se.Failure.ScriptPreview == "" {
		t.Error("ScriptPreview should never be empty when the page has scripts")
	}
	if se.Failure.HTMLPreview == "" {
		t.Error("HTMLPreview should never be empty for a non-empty page")
	}
}

func TestExtract_NoteDetailMissing(t *testing.T) {
	p := fakePage{
		url:       noteURL,
		initState: `{"user":{"loggedIn":false}}`,
	}

	_, err := Extract(p, "64a1b2c3d4")
	var se *models.ScrapeError
	if !errors.As(err, &se) {
		t.Fatalf("error type = %T, want *models.ScrapeError", err)
	}
	if se.Code != models.ErrCodeNoteDetailMissing {
		t.Errorf("Code = %q, want %q", se.Code, models.ErrCodeNoteDetailMissing)
	}
	if se.Failure == nil || se.Failure.Reason != models.ReasonNoteDetailMissing {
		t.Errorf("Failure = %+v, want reason %q", se.Failure, models.ReasonNoteDetailMissing)
	}
}

func TestExtract_PreviewsBounded(t *testing.T) {
	big := `<html><body><script>var x = "` + strings.Repeat("长", 600) + `";</script></body></html>`
	p := fakePage{url: noteURL, html: big}

	_, err := Extract(p, "64a1b2c3d4")
	var se *models.ScrapeError
	if !errors.As(err, &se) {
		t.Fatalf("error type = %T", err)
	}
	if n := len(se.Failure.ScriptPreview); n > scriptPreviewMax {
		t.Errorf("ScriptPreview length = %d, want <= %d", n, scriptPreviewMax)
	}
	if n := len(se.Failure.HTMLPreview); n > htmlPreviewMax {
		t.Errorf("HTMLPreview length = %d, want <= %d", n, htmlPreviewMax)
	}
}

func TestExtract_FallsBackToSoleEntry(t *testing.T) {
	// Share links can redirect to a canonical id that differs from the
	// one in the request URL.
	p := fakePage{
		url:       noteURL,
		initState: statePayload("other-id", "canonical"),
	}

	note, err := Extract(p, "64a1b2c3d4")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if note.Title != "canonical" {
		t.Errorf("Title = %q", note.Title)
	}
}

func TestExtract_ImageListPrefersUrlDefault(t *testing.T) {
	payload := `{"note":{"noteDetailMap":{"n1":{"note":{` +
		`"title":"imgs",` +
		`"imageList":[` +
		`{"urlDefault":"https://img.example.com/a.jpg","url":"https://tmpl.example.com/{size}"},` +
		`{"url":"https://img.example.com/b.jpg"}]}}}}}`
	p := fakePage{url: noteURL, initState: payload}

	note, err := Extract(p, "n1")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	want := []string{"https://img.example.com/a.jpg", "https://img.example.com/b.jpg"}
	if len(note.ImageList) != len(want) {
		t.Fatalf("ImageList = %v, want %v", note.ImageList, want)
	}
	for i := range want {
		if note.ImageList[i] != want[i] {
			t.Errorf("ImageList[%d] = %q, want %q", i, note.ImageList[i], want[i])
		}
	}
}

func TestNoteID(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"explore", "https://www.xiaohongshu.com/explore/64a1b2c3d4", "64a1b2c3d4"},
		{"discovery item", "https://www.xiaohongshu.com/discovery/item/64a1b2c3d4", "64a1b2c3d4"},
		{"trailing slash", "https://www.xiaohongshu.com/explore/64a1b2c3d4/", "64a1b2c3d4"},
		{"query string", "https://www.xiaohongshu.com/explore/64a1b2c3d4?xsec_token=AB", "64a1b2c3d4"},
		{"bare host", "https://www.xiaohongshu.com/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NoteID(tt.url); got != tt.want {
				t.Errorf("NoteID(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestBound_NeverSplitsRune(t *testing.T) {
	s := strings.Repeat("红", 100)
	got := bound(s, 10)
	if len(got) > 10 {
		t.Errorf("bound returned %d bytes, want <= 10", len(got))
	}
	for _, r := range got {
		if r != '红' {
			t.Errorf("bound split a rune: %q", got)
		}
	}
}
