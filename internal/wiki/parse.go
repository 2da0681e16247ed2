package wiki

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/neboloop/wikirace/internal/links"
)

// skipElements are subtrees that never hold racing links.
var skipElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Sup:      true, // citation markers
}

// skipClasses mark boilerplate blocks inside the content area.
var skipClasses = []string{
	"mw-editsection",
	"navbox",
	"reflist",
	"references",
	"hatnote",
	"metadata",
	"sistersitebox",
}

type parsedArticle struct {
	title string
	links []links.Candidate
}

func parseArticle(r io.Reader) (*parsedArticle, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	page := &parsedArticle{}
	if h := findByID(doc, "firstHeading"); h != nil {
		page.title = strings.TrimSpace(textOf(h))
	}
	if page.title == "" {
		if t := findAtom(doc, atom.Title); t != nil {
			page.title = strings.TrimSuffix(strings.TrimSpace(textOf(t)), " - Wikipedia")
		}
	}

	root := findByID(doc, "mw-content-text")
	if root == nil {
		root = doc
	}
	collectLinks(root, &page.links)
	return page, nil
}

func collectLinks(n *html.Node, out *[]links.Candidate) {
	if n.Type == html.ElementNode {
		if skipElements[n.DataAtom] || hasAnyClass(n, skipClasses) {
			return
		}
		if n.DataAtom == atom.A {
			if href := getAttr(n, "href"); href != "" {
				text := strings.Join(strings.Fields(textOf(n)), " ")
				*out = append(*out, links.Candidate{Text: text, Href: href})
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectLinks(c, out)
	}
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && getAttr(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func findAtom(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findAtom(c, a); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAnyClass(n *html.Node, classes []string) bool {
	attr := getAttr(n, "class")
	if attr == "" {
		return false
	}
	for _, have := range strings.Fields(attr) {
		for _, want := range classes {
			if have == want {
				return true
			}
		}
	}
	return false
}
