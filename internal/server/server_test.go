package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/wikirace/internal/browser"
	"github.com/neboloop/wikirace/internal/commentary"
	"github.com/neboloop/wikirace/internal/config"
	"github.com/neboloop/wikirace/internal/daily"
	"github.com/neboloop/wikirace/internal/game"
	"github.com/neboloop/wikirace/internal/links"
	"github.com/neboloop/wikirace/internal/observe"
	"github.com/neboloop/wikirace/internal/race"
	"github.com/neboloop/wikirace/internal/realtime"
	"github.com/neboloop/wikirace/internal/svc"
	"github.com/neboloop/wikirace/internal/types"
	"github.com/neboloop/wikirace/internal/wiki"
)

const pizzaHTML = `<html><head><title>Pizza - Wikipedia</title></head><body>
<h1 id="firstHeading">Pizza</h1>
<div id="mw-content-text"><p>From <a href="/wiki/Italy">Italy</a> and <a href="/wiki/Naples">Naples</a>.</p></div>
</body></html>`

func newWikiServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/wiki/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wiki/Pizza" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(pizzaHTML))
	})
	mux.HandleFunc("/w/api.php", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "opensearch":
			w.Write([]byte(`["piz",["Pizza","Pizzicato"],["",""],["",""]]`))
		case "query":
			w.Write([]byte(`{"query":{"random":[{"title":"Tokyo"},{"title":"Jazz"}]}}`))
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// idleDriver loads pages but never finishes a click, so the agent stays put.
type idleDriver struct {
	mu  sync.Mutex
	url string
}

func (d *idleDriver) GoTo(ctx context.Context, locator string) (browser.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = locator
	return browser.Page{URL: locator}, nil
}

func (d *idleDriver) ActivateLink(ctx context.Context, text string, exact bool) (browser.Page, error) {
	<-ctx.Done()
	return browser.Page{}, ctx.Err()
}

func (d *idleDriver) Current(ctx context.Context) (browser.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return browser.Page{URL: d.url, Title: "Pizza"}, nil
}

func (d *idleDriver) Back(ctx context.Context) (browser.Page, error) { return d.Current(ctx) }
func (d *idleDriver) Close() error                                     { return nil }

func newTestService(t *testing.T) *svc.ServiceContext {
	t.Helper()
	wikiSrv := newWikiServer(t)
	client := wiki.NewClient(wikiSrv.URL, 2*time.Second)

	var c config.Config
	c.Server.AllowedOrigins = []string{"https://race.example"}

	tuning := game.DefaultTuning()
	tuning.PollInterval = 10 * time.Millisecond

	s := &svc.ServiceContext{
		Config:   c,
		Wiki:     client,
		Registry: observe.NewRegistry(),
		Daily:    daily.New(client),
	}
	s.Game = game.New(game.Deps{
		Open:        func(ctx context.Context) (browser.Driver, error) { return &idleDriver{}, nil },
		Source:      client,
		Chooser:     links.NewSelector(nil, nil),
		Registry:    s.Registry,
		Tuning:      func() game.Tuning { return tuning },
		Placeholder: commentary.Placeholder,
	})
	s.Hub = realtime.NewHub(nil, c.Server.AllowedOrigins)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Game.Run(ctx)
	go s.Hub.Run(ctx)
	t.Cleanup(cancel)
	return s
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeRace(t *testing.T, rec *httptest.ResponseRecorder) types.RaceView {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp types.RaceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Race
}

func TestRaceLifecycle(t *testing.T) {
	h := NewRouter(newTestService(t), ServerOptions{Quiet: true})

	v := decodeRace(t, do(t, h, http.MethodGet, "/api/v1/race", nil))
	assert.Equal(t, race.StatusNotStarted, v.Status)

	rec := do(t, h, http.MethodPost, "/api/v1/race/step", types.HumanStepRequest{Locator: "/wiki/Pizza"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	v = decodeRace(t, do(t, h, http.MethodPost, "/api/v1/race", types.StartRaceRequest{Start: "Pizza", Target: "Albert_Einstein"}))
	assert.Equal(t, race.StatusInProgress, v.Status)
	assert.Equal(t, "Albert_Einstein", v.TargetTopic)

	rec = do(t, h, http.MethodPost, "/api/v1/race", types.StartRaceRequest{Start: "Pizza", Target: "Albert_Einstein"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	v = decodeRace(t, do(t, h, http.MethodPost, "/api/v1/race/step", types.HumanStepRequest{Locator: "/wiki/Pizza", Label: "Pizza"}))
	require.Len(t, v.HumanPath, 1)

	v = decodeRace(t, do(t, h, http.MethodPost, "/api/v1/race/complete", nil))
	assert.Equal(t, race.StatusCompleted, v.Status)
	require.NotNil(t, v.Outcome)
	assert.Equal(t, race.SideAgent, v.Outcome.Winner)
	assert.Contains(t, v.FlavorHTML, "<p>")

	rec = do(t, h, http.MethodPost, "/api/v1/race/complete", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	v = decodeRace(t, do(t, h, http.MethodPost, "/api/v1/race/replay", nil))
	assert.Equal(t, race.StatusNotStarted, v.Status)
	assert.Nil(t, v.Outcome)
}

func TestStartRejectsEmptyTopic(t *testing.T) {
	h := NewRouter(newTestService(t), ServerOptions{Quiet: true})
	rec := do(t, h, http.MethodPost, "/api/v1/race", types.StartRaceRequest{Start: "Pizza"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArticleAndSearch(t *testing.T) {
	h := NewRouter(newTestService(t), ServerOptions{Quiet: true})

	rec := do(t, h, http.MethodGet, "/api/v1/article?locator=Pizza", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var article types.GetArticleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &article))
	assert.Equal(t, "Pizza", article.Title)
	assert.Len(t, article.Links, 2)

	rec = do(t, h, http.MethodGet, "/api/v1/article?locator=Nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/article", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/search?q=piz&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var search types.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &search))
	require.Len(t, search.Results, 2)
	assert.Equal(t, "Pizza", search.Results[0].Title)
}

func TestDaily(t *testing.T) {
	h := NewRouter(newTestService(t), ServerOptions{Quiet: true})
	rec := do(t, h, http.MethodGet, "/api/v1/daily", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp types.DailyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Tokyo", resp.Challenge.Start)
	assert.Equal(t, "Jazz", resp.Challenge.Target)
}

func TestHealthMetricsAndCORS(t *testing.T) {
	h := NewRouter(newTestService(t), ServerOptions{Quiet: true})

	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wikirace_")

	for origin, allowed := range map[string]bool{
		"http://localhost:5173": true,
		"https://race.example":  true,
		"https://evil.example":  false,
	} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if allowed {
			assert.Equal(t, origin, rec.Header().Get("Access-Control-Allow-Origin"), origin)
		} else {
			assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"), origin)
		}
	}
}
