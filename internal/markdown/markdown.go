package markdown

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// ArticleBaseURL is where [[Title]] references point.
var ArticleBaseURL = "https://en.wikipedia.org/wiki/"

var md goldmark.Markdown

func init() {
	md = goldmark.New(
		goldmark.WithExtensions(
			extension.Strikethrough,
			extension.Linkify,
			extension.Typographer,
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)
}

// Render converts commentary markdown to HTML. Raw HTML in the input is
// escaped, [[Title]] becomes a link to the article, and external links open
// in a new tab.
func Render(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := md.Convert([]byte(expandArticleRefs(content)), &buf); err != nil {
		return ""
	}
	return processExternalLinks(buf.String())
}

// articleRefRe matches [[Title]] and [[Title|label]].
var articleRefRe = regexp.MustCompile(`\[\[([^\[\]|]+)(?:\|([^\[\]]+))?\]\]`)

func expandArticleRefs(s string) string {
	return articleRefRe.ReplaceAllStringFunc(s, func(match string) string {
		sub := articleRefRe.FindStringSubmatch(match)
		title := strings.TrimSpace(sub[1])
		label := strings.TrimSpace(sub[2])
		if label == "" {
			label = title
		}
		href := ArticleBaseURL + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
		return "[" + label + "](" + href + ")"
	})
}

// processExternalLinks adds target="_blank" rel="noopener noreferrer" to external links.
var linkRe = regexp.MustCompile(`<a href="(https?://[^"]*)"`)

func processExternalLinks(s string) string {
	return linkRe.ReplaceAllStringFunc(s, func(match string) string {
		return match + ` target="_blank" rel="noopener noreferrer"`
	})
}
