package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// SearchResult is one autocomplete suggestion.
type SearchResult struct {
	Title   string `json:"title"`
	Locator string `json:"locator"`
}

// Search returns up to limit article titles matching the prefix q.
func (c *Client) Search(ctx context.Context, q string, limit int) ([]SearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	params := url.Values{}
	params.Set("action", "opensearch")
	params.Set("search", q)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("namespace", "0")
	params.Set("format", "json")

	// [query, [titles], [descriptions], [urls]]
	var raw []json.RawMessage
	if err := c.getJSON(ctx, params, &raw); err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("search %q: unexpected response shape", q)
	}
	var titles []string
	if err := json.Unmarshal(raw[1], &titles); err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}

	results := make([]SearchResult, 0, len(titles))
	for _, t := range titles {
		results = append(results, SearchResult{Title: t, Locator: c.ArticleURL(t)})
	}
	return results, nil
}

// Random returns n random main-namespace article titles.
func (c *Client) Random(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		n = 1
	}
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "random")
	params.Set("rnnamespace", "0")
	params.Set("rnlimit", strconv.Itoa(n))
	params.Set("format", "json")

	var resp struct {
		Query struct {
			Random []struct {
				Title string `json:"title"`
			} `json:"random"`
		} `json:"query"`
	}
	if err := c.getJSON(ctx, params, &resp); err != nil {
		return nil, fmt.Errorf("random articles: %w", err)
	}

	titles := make([]string, 0, len(resp.Query.Random))
	for _, r := range resp.Query.Random {
		titles = append(titles, r.Title)
	}
	if len(titles) == 0 {
		return nil, fmt.Errorf("random articles: empty response")
	}
	return titles, nil
}

func (c *Client) getJSON(ctx context.Context, params url.Values, v any) error {
	body, err := c.get(ctx, c.BaseURL+"/w/api.php?"+params.Encode())
	if err != nil {
		return err
	}
	defer body.Close()
	return json.NewDecoder(body).Decode(v)
}
