package svc

import (
	"context"
	"fmt"

	"github.com/neboloop/wikirace/internal/ai"
	"github.com/neboloop/wikirace/internal/browser"
	"github.com/neboloop/wikirace/internal/commentary"
	"github.com/neboloop/wikirace/internal/config"
	"github.com/neboloop/wikirace/internal/daily"
	"github.com/neboloop/wikirace/internal/game"
	"github.com/neboloop/wikirace/internal/links"
	"github.com/neboloop/wikirace/internal/logging"
	"github.com/neboloop/wikirace/internal/markdown"
	"github.com/neboloop/wikirace/internal/observe"
	"github.com/neboloop/wikirace/internal/race"
	"github.com/neboloop/wikirace/internal/realtime"
	"github.com/neboloop/wikirace/internal/types"
	"github.com/neboloop/wikirace/internal/wiki"
)

// Version is the build version reported by /health.
var Version = "dev"

type ServiceContext struct {
	Config config.Config

	Provider ai.Provider // nil when no provider could be configured
	Wiki     *wiki.Client
	Registry *observe.Registry
	Game     *game.Session
	Hub      *realtime.Hub
	Daily    *daily.Picker
	Tuning   *config.TuningStore
}

// NewServiceContext wires every race component from c. Nothing runs until
// Start.
func NewServiceContext(c config.Config) (*ServiceContext, error) {
	tuning, err := config.NewTuningStore(c.Game.TuningFile)
	if err != nil {
		return nil, fmt.Errorf("load tuning: %w", err)
	}

	wikiClient := wiki.NewClient(c.Wiki.BaseURL, c.Wiki.Timeout)
	markdown.ArticleBaseURL = c.Wiki.BaseURL + "/wiki/"

	provider, err := BuildProvider(c)
	if err != nil {
		logging.Warnf("[Svc] %v; the agent will pick links at random", err)
	}

	svc := &ServiceContext{
		Config:   c,
		Provider: provider,
		Wiki:     wikiClient,
		Registry: observe.NewRegistry(),
		Daily:    daily.New(wikiClient),
		Tuning:   tuning,
	}

	deps := game.Deps{
		Open: func(ctx context.Context) (browser.Driver, error) {
			return browser.Open(ctx, c.BrowserConfig())
		},
		Source:      wikiClient,
		Chooser:     NewChooser(provider, c),
		Registry:    svc.Registry,
		Tuning:      tuning.Get,
		Placeholder: commentary.Placeholder,
	}
	if provider != nil {
		deps.Flavor = commentary.New(provider, commentaryModel(c))
	}
	svc.Game = game.New(deps)

	svc.Hub = realtime.NewHub(func(ctx context.Context) (any, error) {
		snap, err := svc.Game.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		return types.NewRaceView(snap), nil
	}, c.Server.AllowedOrigins)

	svc.Game.Subscribe(func(snap race.Snapshot) {
		svc.Hub.BroadcastEvent(realtime.MethodRace, types.NewRaceView(snap))
	})

	return svc, nil
}

// NewChooser returns the link selector, backed by the provider when one is
// configured.
func NewChooser(provider ai.Provider, c config.Config) *links.Selector {
	if provider == nil {
		return links.NewSelector(nil, nil)
	}
	return links.NewSelector(links.NewAIReasoner(provider, reasonerModel(c)), nil)
}

// Start runs the background loops until ctx is cancelled.
func (svc *ServiceContext) Start(ctx context.Context) error {
	go svc.Game.Run(ctx)
	go svc.Hub.Run(ctx)

	if svc.Config.Game.TuningFile != "" && svc.Config.IsTuningWatchEnabled() {
		svc.Tuning.OnReload(logTuning)
		go func() {
			if err := svc.Tuning.Watch(ctx); err != nil {
				logging.Warnf("[Svc] tuning watcher: %v", err)
			}
		}()
	}

	if svc.Config.IsDailyEnabled() {
		if err := svc.Daily.Start(svc.Config.Daily.Schedule); err != nil {
			return err
		}
	}
	return nil
}

// logTuning reports a reloaded tuning file. It applies from the next race.
func logTuning(t game.Tuning) {
	logging.Infof("[Svc] tuning reloaded: top tier <= %d steps, bottom tier >= %d steps, budget %d, poll %s",
		t.Thresholds.TopTierMaxSteps, t.Thresholds.BottomTierMinSteps, t.Navigator.Budget, t.PollInterval)
}

// Close stops the scheduled jobs. The game session and hub stop with the
// context passed to Start.
func (svc *ServiceContext) Close() {
	if svc.Config.IsDailyEnabled() {
		svc.Daily.Stop()
	}
}
