package wiki

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pizzaHTML = `<!DOCTYPE html>
<html><head><title>Pizza - Wikipedia</title></head>
<body>
<div id="mw-navigation"><a href="/wiki/Main_Page">Main page</a></div>
<h1 id="firstHeading"><span>Pizza</span></h1>
<div id="mw-content-text">
  <div class="hatnote">For other uses, see <a href="/wiki/Pizza_(disambiguation)">Pizza (disambiguation)</a></div>
  <p>Pizza is a dish of <a href="/wiki/Italy">Italian</a> origin
     from <a href="/wiki/Naples" title="Naples">Naples</a>.<sup class="reference"><a href="#cite_note-1">[1]</a></sup></p>
  <p><a href="/wiki/Category:Foods">Category: Foods</a>
     <a href="/wiki/Tomato">  tomato
     sauce </a>
     <a href="/wiki/Italy">Italy</a></p>
  <span class="mw-editsection"><a href="/w/index.php?title=Pizza&amp;action=edit">edit</a></span>
  <div class="navbox"><a href="/wiki/Pasta">Pasta</a></div>
</div>
</body></html>`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/wiki/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/wiki/Pizza":
			w.Write([]byte(pizzaHTML))
		case "/wiki/Café":
			w.Write([]byte(`<html><head><title>Café - Wikipedia</title></head><body><p><a href="/wiki/Coffee">Coffee</a></p></body></html>`))
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/w/api.php", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("action") {
		case "opensearch":
			assert.Equal(t, "Einst", r.URL.Query().Get("search"))
			w.Write([]byte(`["Einst",["Einstein","Einsteinium"],["",""],["https://en.wikipedia.org/wiki/Einstein","https://en.wikipedia.org/wiki/Einsteinium"]]`))
		case "query":
			assert.Equal(t, "2", r.URL.Query().Get("rnlimit"))
			w.Write([]byte(`{"batchcomplete":"","query":{"random":[{"id":1,"ns":0,"title":"Pizza"},{"id":2,"ns":0,"title":"Albert Einstein"}]}}`))
		default:
			http.Error(w, "bad action", http.StatusBadRequest)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestArticle(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL, time.Second)

	a, err := c.Article(context.Background(), "Pizza")
	require.NoError(t, err)
	assert.Equal(t, "Pizza", a.Title)
	assert.Equal(t, srv.URL+"/wiki/Pizza", a.Locator)

	var texts []string
	for _, l := range a.Links {
		texts = append(texts, l.Text)
	}
	assert.Equal(t, []string{"Italian", "Naples", "tomato sauce"}, texts)
}

func TestArticleFromFullURL(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL, time.Second)

	a, err := c.Article(context.Background(), "https://en.wikipedia.org/wiki/Pizza#History")
	require.NoError(t, err)
	assert.Equal(t, "Pizza", a.Title)
}

func TestArticleTitleFallsBackToTitleTag(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL, time.Second)

	a, err := c.Article(context.Background(), "Café")
	require.NoError(t, err)
	assert.Equal(t, "Café", a.Title)
	require.Len(t, a.Links, 1)
	assert.Equal(t, "/wiki/Coffee", a.Links[0].Href)
}

func TestArticleNotFound(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL, time.Second)

	_, err := c.Article(context.Background(), "Nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestArticleInvalidLocator(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", time.Second)
	_, err := c.Article(context.Background(), "https://example.com/page")
	assert.Error(t, err)
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL, time.Second)

	res, err := c.Search(context.Background(), "Einst", 5)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "Einstein", res[0].Title)
	assert.Equal(t, srv.URL+"/wiki/Einstein", res[0].Locator)

	res, err = c.Search(context.Background(), "  ", 5)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestRandom(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL, time.Second)

	titles, err := c.Random(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Pizza", "Albert Einstein"}, titles)
}

func TestTitleFromLocator(t *testing.T) {
	assert.Equal(t, "Albert_Einstein", TitleFromLocator("Albert Einstein"))
	assert.Equal(t, "Albert_Einstein", TitleFromLocator("/wiki/Albert_Einstein"))
	assert.Equal(t, "Albert_Einstein", TitleFromLocator("https://en.wikipedia.org/wiki/Albert_Einstein"))
	assert.Equal(t, "", TitleFromLocator("https://example.com/x"))
	assert.Equal(t, "", TitleFromLocator(""))
}
