package extract

import (
	"log/slog"
	nurl "net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// minContentLength is the minimum readability TextContent length for the
// output to be considered valid; below it the extraction likely grabbed
// navigation chrome instead of the note body.
const minContentLength = 50

// noteBodySelectors are the containers the note body renders into, most
// specific first.
var noteBodySelectors = []string{
	"#detail-desc",
	".note-content",
	".note-container",
}

// mdConverter is goroutine-safe and reused across requests.
var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
	),
)

// RenderContent renders the note body from the rendered page HTML as
// Markdown. It prefers the known note-body containers and falls back to
// readability's main-content extraction; it never fails the scrape — an
// empty string means no usable body was found.
func RenderContent(rawHTML, sourceURL string) string {
	content := noteBodyHTML(rawHTML)
	if content == "" {
		content = readableHTML(rawHTML, sourceURL)
	}
	if content == "" {
		return ""
	}

	domain := ""
	if u, err := nurl.Parse(sourceURL); err == nil {
		domain = u.Scheme + "://" + u.Host
	}
	md, err := mdConverter.ConvertString(content, converter.WithDomain(domain))
	if err != nil {
		slog.Warn("markdown conversion failed", "url", sourceURL, "error", err)
		return ""
	}
	return strings.TrimSpace(md)
}

// noteBodyHTML returns the outer HTML of the first matching note-body
// container, or "".
func noteBodyHTML(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	for _, sel := range noteBodySelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if h, err := goquery.OuterHtml(node); err == nil && strings.TrimSpace(node.Text()) != "" {
			return h
		}
	}
	return ""
}

// readableHTML runs the Mozilla Readability algorithm and returns the
// main-content HTML, or "" when extraction fails or is too short to be
// the note body.
func readableHTML(rawHTML, sourceURL string) string {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Warn("readability extraction failed", "url", sourceURL, "error", err)
		return ""
	}
	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		return ""
	}
	return article.Content
}
