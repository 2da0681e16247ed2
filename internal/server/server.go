package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/neboloop/wikirace/internal/handler"
	"github.com/neboloop/wikirace/internal/handler/daily"
	"github.com/neboloop/wikirace/internal/handler/race"
	"github.com/neboloop/wikirace/internal/handler/wiki"
	"github.com/neboloop/wikirace/internal/logging"
	"github.com/neboloop/wikirace/internal/metrics"
	"github.com/neboloop/wikirace/internal/middleware"
	"github.com/neboloop/wikirace/internal/svc"
)

// ServerOptions holds optional server behavior.
type ServerOptions struct {
	Quiet bool // no request logging
}

// Run serves the API until ctx is cancelled. svcCtx must already be
// started.
func Run(ctx context.Context, svcCtx *svc.ServiceContext, opts ...ServerOptions) error {
	var o ServerOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	addr := svcCtx.Config.Addr()
	if err := checkPortAvailable(addr); err != nil {
		return fmt.Errorf("%s is already in use: %w", addr, err)
	}

	// ReadTimeout/WriteTimeout are omitted: they set deadlines on the
	// underlying net.Conn and break hijacked websocket connections.
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(svcCtx, o),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	logging.Infof("[Server] ready at http://%s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("[Server] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// NewRouter builds the HTTP handler.
func NewRouter(svcCtx *svc.ServiceContext, opts ServerOptions) http.Handler {
	r := chi.NewRouter()

	if !opts.Quiet {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", handler.HealthCheckHandler(svcCtx))
	r.Handle("/metrics", metrics.Handler())
	if svcCtx.Hub != nil {
		r.Get("/ws", svcCtx.Hub.HandleWebSocket)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.NoCache)
		registerRaceRoutes(r, svcCtx)
		registerWikiRoutes(r, svcCtx)
	})

	return corsHandler(svcCtx.Config.Server.AllowedOrigins).Handler(r)
}

func registerRaceRoutes(r chi.Router, svcCtx *svc.ServiceContext) {
	r.Route("/race", func(r chi.Router) {
		r.Get("/", race.GetRaceHandler(svcCtx))
		r.Post("/", race.StartRaceHandler(svcCtx))
		r.Post("/step", race.HumanStepHandler(svcCtx))
		r.Post("/complete", race.CompleteRaceHandler(svcCtx))
		r.Post("/replay", race.ReplayRaceHandler(svcCtx))
	})
}

func registerWikiRoutes(r chi.Router, svcCtx *svc.ServiceContext) {
	r.Get("/article", wiki.GetArticleHandler(svcCtx))
	r.Get("/search", wiki.SearchHandler(svcCtx))
	r.Get("/daily", daily.GetDailyHandler(svcCtx))
}

// corsHandler allows localhost on any port plus the configured origins.
func corsHandler(allowed []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowOriginFunc: func(origin string) bool {
			return middleware.OriginAllowed(origin, allowed)
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})
}

// checkPortAvailable checks if addr is available for binding
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}
