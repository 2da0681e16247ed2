// Package wiki fetches Wikipedia articles and extracts their outbound
// article links.
package wiki

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/neboloop/wikirace/internal/links"
)

// DefaultBaseURL is English Wikipedia.
const DefaultBaseURL = "https://en.wikipedia.org"

const userAgent = "Mozilla/5.0 (compatible; wikirace/1.0)"

// maxBodyBytes caps a single article download.
const maxBodyBytes = 8 << 20

// ErrNotFound is returned when the article does not exist.
var ErrNotFound = errors.New("article not found")

// Article is a fetched page.
type Article struct {
	Title   string            `json:"title"`
	Locator string            `json:"locator"`
	Links   []links.Candidate `json:"links"`
}

// Client talks to one wiki.
type Client struct {
	BaseURL string
	client  *http.Client
}

// NewClient creates a client for baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Article fetches the page named by locator (full URL, /wiki/ path or bare
// title) and returns its title and filtered article links.
func (c *Client) Article(ctx context.Context, locator string) (*Article, error) {
	title := TitleFromLocator(locator)
	if title == "" {
		return nil, fmt.Errorf("invalid locator %q", locator)
	}
	pageURL := c.ArticleURL(title)

	body, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", title, err)
	}
	defer body.Close()

	page, err := parseArticle(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", title, err)
	}
	if page.title == "" {
		page.title = links.DisplayTopic(title)
	}
	return &Article{
		Title:   page.title,
		Locator: pageURL,
		Links:   links.FilterArticleLinks(page.links),
	}, nil
}

// Links returns the filtered article links on the page at locator.
func (c *Client) Links(ctx context.Context, locator string) ([]links.Candidate, error) {
	a, err := c.Article(ctx, locator)
	if err != nil {
		return nil, err
	}
	return a.Links, nil
}

// ArticleURL returns the canonical URL of title.
func (c *Client) ArticleURL(title string) string {
	return c.BaseURL + "/wiki/" + url.PathEscape(links.NormalizeTopic(title))
}

// TitleFromLocator extracts an article title from a URL, a /wiki/ path or
// a bare title. It returns "" when nothing usable is found.
func TitleFromLocator(locator string) string {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return ""
	}
	if title, ok := links.ArticleTitle(locator); ok {
		return title
	}
	if strings.Contains(locator, "://") || strings.HasPrefix(locator, "/") {
		return ""
	}
	return links.NormalizeTopic(locator)
}

func (c *Client) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
