package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const stateMarker = "__INITIAL_STATE__"

// stateAssignRe matches both assignment spellings:
//
//	window.__INITIAL_STATE__ = ...
//	window["__INITIAL_STATE__"] = ... / window['__INITIAL_STATE__'] = ...
var stateAssignRe = regexp.MustCompile(`window(?:\.__INITIAL_STATE__|\[["']__INITIAL_STATE__["']\])\s*=\s*`)

// jsonParseRe matches a whole JSON.parse("...") / JSON.parse('...')
// expression, tolerating a trailing semicolon.
var jsonParseRe = regexp.MustCompile(`(?s)^JSON\.parse\(\s*(["'])(.*)(["'])\s*\)\s*;?\s*$`)

// nextDataFromHTML returns the text of <script id="__NEXT_DATA__"> from
// the HTML snapshot, or "".
func nextDataFromHTML(htmlText string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return ""
	}
	return doc.Find(`script#__NEXT_DATA__`).First().Text()
}

// scriptTexts returns the text content of every <script> element in
// document order.
func scriptTexts(htmlText string) []string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlText))
	var scripts []string
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return scripts
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) != "script" {
				continue
			}
			if tokenizer.Next() == html.TextToken {
				if text := string(tokenizer.Text()); strings.TrimSpace(text) != "" {
					scripts = append(scripts, text)
				}
			}
		}
	}
}

// extractStateExpr finds the __INITIAL_STATE__ assignment in text and
// returns the assigned expression: either a balanced object literal
// (tolerant of trailing statements after it) or a JSON.parse(...) call.
func extractStateExpr(text string) (string, bool) {
	loc := stateAssignRe.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	rest := strings.TrimSpace(text[loc[1]:])

	if strings.HasPrefix(rest, "JSON.parse(") {
		if expr, ok := jsonParseCall(rest); ok {
			return expr, true
		}
		return "", false
	}

	if obj, ok := balancedObject(rest); ok {
		return obj, true
	}
	return "", false
}

// balancedObject extracts the first balanced {...} from text by brace
// counting. Braces inside string literals are not tracked; for a
// top-level state object this has never mattered in practice because the
// payload is itself valid JSON produced by a serializer.
func balancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// jsonParseCall isolates the complete JSON.parse("...") expression from
// the head of text (which may be followed by further statements) by
// scanning the quoted argument with escape awareness.
func jsonParseCall(text string) (string, bool) {
	const prefix = "JSON.parse("
	rest := text[len(prefix):]
	i := 0
	for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t' || rest[i] == '\n') {
		i++
	}
	if i >= len(rest) || (rest[i] != '"' && rest[i] != '\'') {
		return "", false
	}
	quote := rest[i]
	j := i + 1
	for j < len(rest) {
		switch rest[j] {
		case '\\':
			j += 2
			continue
		case quote:
			// Include up to the closing paren.
			end := strings.IndexByte(rest[j:], ')')
			if end < 0 {
				return "", false
			}
			return prefix + rest[:j+end+1], true
		}
		j++
	}
	return "", false
}

// unwrapJSONParse unwraps a JSON.parse("...") expression into the decoded
// JSON document it carries. Returns false when expr is not that form.
func unwrapJSONParse(expr string) (string, bool) {
	m := jsonParseRe.FindStringSubmatch(expr)
	if m == nil || m[1] != m[3] {
		return "", false
	}
	return unescapeJSString(m[2], m[1][0]), true
}

// unescapeJSString resolves JavaScript string escapes (\", \\, \n,
// \uXXXX, ...). On any irregularity the raw string is returned so the
// caller's JSON parse can still have a go at it.
func unescapeJSString(s string, quote byte) string {
	if quote == '\'' {
		s = strings.ReplaceAll(s, `\'`, "'")
		s = strings.ReplaceAll(s, `"`, `\"`)
	}
	out, err := strconv.Unquote(`"` + s + `"`)
	if err != nil {
		return s
	}
	return out
}
