package markdown

import (
	"strings"
	"testing"
)

func TestRenderEmpty(t *testing.T) {
	if got := Render("  "); got != "" {
		t.Errorf("Render(\"  \") = %q, want \"\"", got)
	}
}

func TestRenderBasicMarkdown(t *testing.T) {
	html := Render("**bold** and *italic*")
	if !strings.Contains(html, "<strong>bold</strong>") {
		t.Errorf("Expected <strong>bold</strong>, got: %s", html)
	}
	if !strings.Contains(html, "<em>italic</em>") {
		t.Errorf("Expected <em>italic</em>, got: %s", html)
	}
}

func TestRenderStrikethrough(t *testing.T) {
	html := Render("~~slow~~")
	if !strings.Contains(html, "<del>slow</del>") {
		t.Errorf("Expected <del>slow</del>, got: %s", html)
	}
}

func TestRenderEscapesRawHTML(t *testing.T) {
	html := Render("<script>alert(1)</script> done")
	if strings.Contains(html, "<script>") {
		t.Errorf("Expected raw HTML to be dropped, got: %s", html)
	}
}

func TestRenderArticleRefs(t *testing.T) {
	html := Render("Straight through [[Albert Einstein]] and [[Theory of relativity|relativity]].")
	if !strings.Contains(html, `href="https://en.wikipedia.org/wiki/Albert_Einstein"`) {
		t.Errorf("Expected article link, got: %s", html)
	}
	if !strings.Contains(html, `>relativity</a>`) {
		t.Errorf("Expected piped label, got: %s", html)
	}
}

func TestRenderExternalLinks(t *testing.T) {
	html := Render("[Pizza](https://en.wikipedia.org/wiki/Pizza)")
	if !strings.Contains(html, `target="_blank"`) {
		t.Errorf("Expected target=_blank on external link, got: %s", html)
	}
	if !strings.Contains(html, `rel="noopener noreferrer"`) {
		t.Errorf("Expected rel=noopener on external link, got: %s", html)
	}
}
