// Package game owns the current race and everything attached to it: the
// agent's browser, the page poller and the navigator.
//
// All race mutations run on one event-loop goroutine (Run). Other
// goroutines hand work to it with do (wait for the result) or post (fire
// and forget), and every asynchronous result is checked against the race
// ID and status when it lands.
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neboloop/wikirace/internal/browser"
	"github.com/neboloop/wikirace/internal/logging"
	"github.com/neboloop/wikirace/internal/metrics"
	"github.com/neboloop/wikirace/internal/navigator"
	"github.com/neboloop/wikirace/internal/observe"
	"github.com/neboloop/wikirace/internal/race"
)

var (
	// ErrSetupInProgress is returned when Start is called while another
	// Start is still opening its browser.
	ErrSetupInProgress = errors.New("race setup already in progress")
	// ErrClosed is returned after the event loop has stopped.
	ErrClosed = errors.New("game session closed")
)

// Source is the article source the agent reads links from.
type Source interface {
	navigator.Source
	ArticleURL(title string) string
}

// FlavorWriter produces the post-race commentary.
type FlavorWriter interface {
	Generate(ctx context.Context, snap race.Snapshot) (string, error)
}

// Tuning is the hot-reloadable part of the game configuration. It is read
// once per race.
type Tuning struct {
	Thresholds   race.Thresholds
	Navigator    navigator.Config
	PollInterval time.Duration
}

// DefaultTuning returns the built-in tuning.
func DefaultTuning() Tuning {
	return Tuning{
		Thresholds:   race.DefaultThresholds(),
		Navigator:    navigator.DefaultConfig(),
		PollInterval: 2 * time.Second,
	}
}

// Deps are the collaborators of a session.
type Deps struct {
	Open        func(ctx context.Context) (browser.Driver, error)
	Source      Source
	Chooser     navigator.Chooser
	Registry    *observe.Registry
	Flavor      FlavorWriter             // optional
	Tuning      func() Tuning            // optional, DefaultTuning when nil
	Placeholder func(race.Outcome) string // optional
	Clock       func() time.Time         // optional
}

// Session is the single owner of the current race.
type Session struct {
	deps    Deps
	events  chan func()
	stopped chan struct{}

	subsMu sync.RWMutex
	subs   map[int]func(race.Snapshot)
	nextID int

	// Owned by the event loop.
	race      *race.Race
	setupRace string // ID of the race whose browser is being opened
	attached  *attachment
}

// attachment is the agent machinery bound to one in-progress race.
type attachment struct {
	raceID    string
	driver    browser.Driver
	sessionID string
	poller    *race.Poller
	cancelNav context.CancelFunc

	// backtracks is bumped when a navigator backtrack begins and again when
	// it ends; odd means one is in progress. Poller observations taken
	// under a different value are dropped.
	backtracks atomic.Uint64
}

// New creates a session holding a fresh not-started race. Call Run to
// start processing.
func New(deps Deps) *Session {
	if deps.Tuning == nil {
		deps.Tuning = DefaultTuning
	}
	if deps.Registry == nil {
		deps.Registry = observe.NewRegistry()
	}
	s := &Session{
		deps:    deps,
		events:  make(chan func()),
		stopped: make(chan struct{}),
		subs:    make(map[int]func(race.Snapshot)),
	}
	s.race = s.newRace()
	return s
}

// Run processes events until ctx is cancelled, then tears down any
// attached agent.
func (s *Session) Run(ctx context.Context) {
	defer close(s.stopped)
	for {
		select {
		case <-ctx.Done():
			s.detach()
			return
		case fn := <-s.events:
			fn()
		}
	}
}

// do runs fn on the event loop and waits for it.
func (s *Session) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case s.events <- func() { defer close(done); fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-s.stopped:
		return ErrClosed
	}
}

// post queues fn without waiting. It gives up when ctx is cancelled, so a
// poller delivering here never blocks its own Stop.
func (s *Session) post(ctx context.Context, fn func()) bool {
	select {
	case s.events <- fn:
		return true
	case <-ctx.Done():
		return false
	case <-s.stopped:
		return false
	}
}

// Subscribe registers fn to receive a snapshot after every change. fn runs
// on the event loop and must not block.
func (s *Session) Subscribe(fn func(race.Snapshot)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Session) publish() {
	snap := s.race.Snapshot()
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, fn := range s.subs {
		fn(snap)
	}
}

func (s *Session) newRace() *race.Race {
	opts := []race.Option{race.WithThresholds(s.deps.Tuning().Thresholds)}
	if s.deps.Placeholder != nil {
		opts = append(opts, race.WithPlaceholder(s.deps.Placeholder))
	}
	if s.deps.Clock != nil {
		opts = append(opts, race.WithClock(s.deps.Clock))
	}
	return race.New(opts...)
}

// Snapshot returns the current race state.
func (s *Session) Snapshot(ctx context.Context) (race.Snapshot, error) {
	var snap race.Snapshot
	err := s.do(ctx, func() { snap = s.race.Snapshot() })
	return snap, err
}

// Start opens the agent's browser on the start page and then starts the
// race. A setup failure returns one error and leaves the race not-started.
func (s *Session) Start(ctx context.Context, startTopic, targetTopic string) error {
	var raceID string
	var err error
	if derr := s.do(ctx, func() {
		switch {
		case s.setupRace != "":
			err = ErrSetupInProgress
		case s.race.Status() != race.StatusNotStarted:
			err = &race.StateError{Op: "start", Status: s.race.Status()}
		case startTopic == "" || targetTopic == "":
			err = race.ErrInvalidTopic
		default:
			raceID = s.race.ID()
			s.setupRace = raceID
		}
	}); derr != nil {
		return derr
	}
	if err != nil {
		return err
	}

	driver, err := s.openAgent(ctx, startTopic)
	if err != nil {
		metrics.SetupFailures.Inc()
		_ = s.do(context.Background(), func() { s.endSetup(raceID) })
		return err
	}

	// Background: the setup marker must be cleared even if ctx is done.
	if derr := s.do(context.Background(), func() {
		s.endSetup(raceID)
		if s.race.ID() != raceID {
			err = fmt.Errorf("race was replaced during setup")
			return
		}
		if err = s.race.StartRace(startTopic, targetTopic); err != nil {
			return
		}
		s.attach(driver)
		metrics.RacesStarted.Inc()
		logging.Infof("[Game] race %s started: %s -> %s", raceID, s.race.StartTopic(), s.race.TargetTopic())
		s.publish()
	}); derr != nil {
		err = derr
	}
	if err != nil {
		go driver.Close()
		return err
	}
	return nil
}

func (s *Session) endSetup(raceID string) {
	if s.setupRace == raceID {
		s.setupRace = ""
	}
}

func (s *Session) openAgent(ctx context.Context, startTopic string) (browser.Driver, error) {
	if s.deps.Open == nil {
		return nil, fmt.Errorf("no browser configured")
	}
	driver, err := s.deps.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	if _, err := driver.GoTo(ctx, s.deps.Source.ArticleURL(startTopic)); err != nil {
		driver.Close()
		return nil, fmt.Errorf("load start page: %w", err)
	}
	return driver, nil
}

// attach wires the agent machinery to the freshly started race. Runs on
// the event loop.
func (s *Session) attach(driver browser.Driver) {
	raceID := s.race.ID()
	tuning := s.deps.Tuning()

	a := &attachment{raceID: raceID, driver: driver}
	a.sessionID = s.deps.Registry.Register(driver)

	// Observe and Deliver run on the poller goroutine, one after the other.
	var mark uint64
	a.poller = race.NewPoller(race.PollerConfig{
		Interval: tuning.PollInterval,
		Observe: func(ctx context.Context) (race.Observation, error) {
			mark = a.backtracks.Load()
			page, err := s.deps.Registry.Observe(ctx, a.sessionID)
			if err != nil {
				return race.Observation{}, err
			}
			return race.Observation{Locator: page.URL, Label: page.Title}, nil
		},
		Deliver: func(ctx context.Context, obs race.Observation) {
			seen := mark
			s.post(ctx, func() {
				if seen%2 == 1 || a.backtracks.Load() != seen {
					return
				}
				s.applyAgentStep(raceID, obs.Locator, obs.Label)
			})
		},
	})

	navCtx, cancel := context.WithCancel(logging.WithFields(context.Background(), "race", raceID))
	a.cancelNav = cancel
	s.attached = a

	a.poller.Start(navCtx)

	nav := navigator.New(tuning.Navigator, driver, s.deps.Source, s.deps.Chooser, &reporter{s: s, raceID: raceID})
	target := s.race.TargetTopic()
	go func() {
		res, err := nav.Run(navCtx, target)
		logging.Infof("[Game] navigator finished after %d attempts (reached=%v, err=%v)", res.Attempts, res.Reached, err)
		if errors.Is(err, navigator.ErrTargetNotReached) || errors.Is(err, navigator.ErrDriverUnrecoverable) {
			s.post(navCtx, func() { s.abortAgent(raceID, err) })
		}
	}()
}

// detach stops the poller synchronously and releases the agent's browser.
// Runs on the event loop.
func (s *Session) detach() {
	a := s.attached
	if a == nil {
		return
	}
	s.attached = nil

	a.cancelNav()
	a.poller.Stop()
	s.deps.Registry.Unregister(a.sessionID)
	go func() {
		if err := a.driver.Close(); err != nil {
			logging.Warnf("[Game] close browser: %v", err)
		}
	}()
}

// applyAgentStep records an agent page. It reports whether the race is
// over for the agent. Runs on the event loop.
func (s *Session) applyAgentStep(raceID, locator, label string) (finished bool, err error) {
	if s.race.ID() != raceID || s.race.Status() != race.StatusInProgress {
		return true, nil
	}
	if err := s.race.RecordAgentStep(locator, label); err != nil {
		return true, err
	}
	if s.race.Status() == race.StatusCompleted {
		s.onCompleted()
		return true, nil
	}
	s.publish()
	return false, nil
}

func (s *Session) abortAgent(raceID string, cause error) {
	if s.race.ID() != raceID || s.race.Status() != race.StatusInProgress {
		return
	}
	logging.Warnf("[Game] agent gave up: %v", cause)
	if _, err := s.race.CompleteRace(race.TriggerAgentAborted); err != nil {
		logging.Errorf("[Game] abort race: %v", err)
		return
	}
	s.onCompleted()
}

// onCompleted runs once per race right after it completes. Runs on the
// event loop.
func (s *Session) onCompleted() {
	s.detach()

	snap := s.race.Snapshot()
	o := snap.Outcome
	metrics.RacesCompleted.WithLabelValues(string(o.Winner), string(o.Trigger), string(o.Tier)).Inc()
	metrics.RaceDuration.Observe(o.CompletedAt.Sub(snap.StartedAt).Seconds())
	logging.Infof("[Game] race %s completed: winner=%s trigger=%s human=%d agent=%d",
		snap.ID, o.Winner, o.Trigger, o.HumanSteps, o.AgentSteps)

	s.publish()
	s.requestFlavor(snap)
}

func (s *Session) requestFlavor(snap race.Snapshot) {
	if s.deps.Flavor == nil {
		return
	}
	go func() {
		text, err := s.deps.Flavor.Generate(context.Background(), snap)
		if err != nil {
			logging.Warnf("[Game] commentary for %s: %v", snap.ID, err)
			return
		}
		s.post(context.Background(), func() {
			if s.race.ID() != snap.ID {
				return
			}
			if s.race.SetFlavorText(text) {
				s.publish()
			}
		})
	}()
}

// HumanStep records the human's current page.
func (s *Session) HumanStep(ctx context.Context, locator, label string) (race.Snapshot, error) {
	var snap race.Snapshot
	var err error
	if derr := s.do(ctx, func() {
		before := len(s.race.Snapshot().HumanPath)
		if err = s.race.RecordHumanStep(locator, label); err != nil {
			return
		}
		snap = s.race.Snapshot()
		if len(snap.HumanPath) != before {
			s.publish()
		}
	}); derr != nil {
		return race.Snapshot{}, derr
	}
	return snap, err
}

// Complete is the human declaring the race over.
func (s *Session) Complete(ctx context.Context) (race.Snapshot, error) {
	var snap race.Snapshot
	var err error
	if derr := s.do(ctx, func() {
		if _, err = s.race.CompleteRace(race.TriggerHumanDeclared); err != nil {
			return
		}
		s.onCompleted()
		snap = s.race.Snapshot()
	}); derr != nil {
		return race.Snapshot{}, derr
	}
	return snap, err
}

// Replay discards the current race and starts over with a fresh one.
func (s *Session) Replay(ctx context.Context) (race.Snapshot, error) {
	var snap race.Snapshot
	err := s.do(ctx, func() {
		s.detach()
		s.race = s.newRace()
		s.setupRace = ""
		snap = s.race.Snapshot()
		s.publish()
	})
	return snap, err
}

// reporter feeds navigator progress into the event loop.
type reporter struct {
	s      *Session
	raceID string
}

func (r *reporter) ReportStep(ctx context.Context, page browser.Page) (bool, error) {
	var finished bool
	var err error
	if derr := r.s.do(ctx, func() {
		finished, err = r.s.applyAgentStep(r.raceID, page.URL, page.Title)
	}); derr != nil {
		return true, derr
	}
	return finished, err
}

// current returns the attachment of the reporter's race, or nil once that
// race is over or replaced. Runs on the event loop.
func (r *reporter) current() *attachment {
	s := r.s
	if s.race.ID() != r.raceID || s.race.Status() != race.StatusInProgress {
		return nil
	}
	if s.attached == nil || s.attached.raceID != r.raceID {
		return nil
	}
	return s.attached
}

func (r *reporter) BeginBacktrack(ctx context.Context) error {
	return r.s.do(ctx, func() {
		if a := r.current(); a != nil && a.backtracks.Load()%2 == 0 {
			a.backtracks.Add(1)
		}
	})
}

// EndBacktrack drops the step the agent backed out of and records the page
// it landed on. Nothing is dropped when the driver did not move.
func (r *reporter) EndBacktrack(ctx context.Context, landed browser.Page, moved bool) error {
	var err error
	if derr := r.s.do(ctx, func() {
		a := r.current()
		if a == nil {
			return
		}
		if a.backtracks.Load()%2 == 1 {
			a.backtracks.Add(1)
		}
		if !moved {
			return
		}
		path := r.s.race.Snapshot().AgentPath
		if len(path) < 2 || path[len(path)-1].Locator == landed.URL {
			return
		}
		if _, err = r.s.race.PopAgentStep(); err != nil {
			return
		}
		if landed.URL == "" || path[len(path)-2].Locator == landed.URL {
			r.s.publish()
			return
		}
		_, err = r.s.applyAgentStep(r.raceID, landed.URL, landed.Title)
	}); derr != nil {
		return derr
	}
	return err
}
