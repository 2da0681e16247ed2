// Package links picks the next hyperlink for the automated racer.
//
// Candidates come from the page currently loaded in the automation driver.
// The engine asks a Reasoner for a recommendation, maps the free-text answer
// back onto one of the candidates, and falls back to a random pick when the
// reasoner is unavailable. It keeps no state between calls.
package links

import (
	"net/url"
	"regexp"
	"strings"
)

// Candidate is a single outbound link on the current page.
type Candidate struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// nonArticleNamespaces are page prefixes that never hold article content.
var nonArticleNamespaces = []string{
	"special", "wikipedia", "file", "image", "category", "talk", "template",
	"help", "portal", "user", "draft", "module", "mediawiki", "timedtext",
	"book", "education_program", "gadget", "topic",
}

// citationRe matches bare reference markers such as [12], [a] or [note 3].
var citationRe = regexp.MustCompile(`^\[\s*(?:\d+|[a-z]|note\s*\d+|citation needed|[a-z]+\s+\d+)\s*\]$`)

// FilterArticleLinks drops links that are not plausible article hops and
// removes duplicate hrefs, keeping the first occurrence in page order.
func FilterArticleLinks(in []Candidate) []Candidate {
	out := make([]Candidate, 0, len(in))
	seen := make(map[string]bool, len(in))

	for _, c := range in {
		text := strings.TrimSpace(c.Text)
		if len([]rune(text)) <= 1 {
			continue
		}
		if citationRe.MatchString(strings.ToLower(text)) {
			continue
		}
		title, ok := ArticleTitle(c.Href)
		if !ok || IsNonArticleTitle(title) {
			continue
		}
		key := strings.ToLower(title)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Candidate{Text: text, Href: c.Href})
	}
	return out
}

// ArticleTitle extracts the article title from a /wiki/ href, absolute or
// relative. Fragments and query strings are discarded.
func ArticleTitle(href string) (string, bool) {
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if u.Host != "" && !strings.HasSuffix(u.Host, "wikipedia.org") {
		return "", false
	}
	// index.php?title=...&action=edit and friends
	if u.RawQuery != "" && !strings.HasPrefix(u.Path, "/wiki/") {
		return "", false
	}
	path := u.Path
	if !strings.HasPrefix(path, "/wiki/") {
		return "", false
	}
	title := strings.TrimPrefix(path, "/wiki/")
	if title == "" {
		return "", false
	}
	return title, true
}

// IsNonArticleTitle reports whether title lives in an administrative namespace.
func IsNonArticleTitle(title string) bool {
	i := strings.IndexByte(title, ':')
	if i <= 0 {
		return false
	}
	ns := strings.ToLower(title[:i])
	ns = strings.TrimSuffix(ns, "_talk")
	for _, n := range nonArticleNamespaces {
		if ns == n {
			return true
		}
	}
	return false
}

// NormalizeTopic converts a display title into its locator form.
func NormalizeTopic(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
}

// DisplayTopic converts a locator-form topic into a display title.
func DisplayTopic(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "_", " ")
}
