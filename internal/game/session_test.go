package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/wikirace/internal/browser"
	"github.com/neboloop/wikirace/internal/links"
	"github.com/neboloop/wikirace/internal/navigator"
	"github.com/neboloop/wikirace/internal/race"
)

const base = "https://en.wikipedia.org/wiki/"

type graph map[string][]string

func (g graph) Links(ctx context.Context, locator string) ([]links.Candidate, error) {
	title, _ := links.ArticleTitle(locator)
	var out []links.Candidate
	for _, t := range g[title] {
		out = append(out, links.Candidate{Text: links.DisplayTopic(t), Href: "/wiki/" + t})
	}
	return out, nil
}

func (g graph) ArticleURL(title string) string { return base + links.NormalizeTopic(title) }

type fakeDriver struct {
	mu        sync.Mutex
	g         graph
	history   []string
	closed    bool
	stall     bool // ActivateLink blocks until cancelled
	gotoErr   error
	backDelay time.Duration // the old page stays visible this long
}

func (d *fakeDriver) current() string {
	if len(d.history) == 0 {
		return ""
	}
	return d.history[len(d.history)-1]
}

func (d *fakeDriver) page() browser.Page {
	return browser.Page{URL: base + d.current(), Title: links.DisplayTopic(d.current())}
}

func (d *fakeDriver) GoTo(ctx context.Context, locator string) (browser.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gotoErr != nil {
		return browser.Page{}, d.gotoErr
	}
	title, _ := links.ArticleTitle(locator)
	d.history = append(d.history, title)
	return d.page(), nil
}

func (d *fakeDriver) ActivateLink(ctx context.Context, text string, exact bool) (browser.Page, error) {
	d.mu.Lock()
	stall := d.stall
	d.mu.Unlock()
	if stall {
		<-ctx.Done()
		return browser.Page{}, ctx.Err()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.g[d.current()] {
		if links.DisplayTopic(t) == text {
			d.history = append(d.history, t)
			return d.page(), nil
		}
	}
	return browser.Page{}, browser.ErrLinkNotFound
}

func (d *fakeDriver) Current(ctx context.Context) (browser.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.page(), nil
}

func (d *fakeDriver) Back(ctx context.Context) (browser.Page, error) {
	if d.backDelay > 0 {
		select {
		case <-time.After(d.backDelay):
		case <-ctx.Done():
			return browser.Page{}, ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.history) < 2 {
		return browser.Page{}, errors.New("no history")
	}
	d.history = d.history[:len(d.history)-1]
	return d.page(), nil
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDriver) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// firstLink picks the target when offered, otherwise the first candidate.
type firstLink struct{}

func (firstLink) SelectNextLink(ctx context.Context, cands []links.Candidate, target, current string) *links.Candidate {
	if len(cands) == 0 {
		return nil
	}
	for i := range cands {
		if links.NormalizeTopic(cands[i].Text) == target {
			return &cands[i]
		}
	}
	return &cands[0]
}

type flavorFunc func(ctx context.Context, snap race.Snapshot) (string, error)

func (f flavorFunc) Generate(ctx context.Context, snap race.Snapshot) (string, error) {
	return f(ctx, snap)
}

func testTuning() Tuning {
	t := DefaultTuning()
	t.PollInterval = 5 * time.Millisecond
	t.Navigator = navigator.Config{Budget: 10, MaxRecoveryFailures: 2}
	return t
}

func runSession(t *testing.T, deps Deps) *Session {
	t.Helper()
	if deps.Tuning == nil {
		deps.Tuning = testTuning
	}
	if deps.Chooser == nil {
		deps.Chooser = firstLink{}
	}
	s := New(deps)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(cancel)
	return s
}

func opener(d *fakeDriver) func(ctx context.Context) (browser.Driver, error) {
	return func(ctx context.Context) (browser.Driver, error) { return d, nil }
}

func waitFor(t *testing.T, s *Session, cond func(race.Snapshot) bool) race.Snapshot {
	t.Helper()
	var snap race.Snapshot
	require.Eventually(t, func() bool {
		var err error
		snap, err = s.Snapshot(context.Background())
		return err == nil && cond(snap)
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

func TestStartSetupFailureLeavesRaceNotStarted(t *testing.T) {
	s := runSession(t, Deps{
		Source: graph{},
		Open: func(ctx context.Context) (browser.Driver, error) {
			return nil, errors.New("chromium missing")
		},
	})

	err := s.Start(context.Background(), "Pizza", "Albert_Einstein")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chromium missing")

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, race.StatusNotStarted, snap.Status)

	// A later attempt is not blocked by the failed one.
	err = s.Start(context.Background(), "Pizza", "Albert_Einstein")
	assert.NotErrorIs(t, err, ErrSetupInProgress)
}

func TestStartPageLoadFailureClosesDriver(t *testing.T) {
	d := &fakeDriver{gotoErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	s := runSession(t, Deps{Source: graph{}, Open: opener(d)})

	err := s.Start(context.Background(), "Pizza", "Albert_Einstein")
	require.Error(t, err)
	assert.True(t, d.isClosed())

	snap, _ := s.Snapshot(context.Background())
	assert.Equal(t, race.StatusNotStarted, snap.Status)
}

func TestAgentReachesTargetAndWins(t *testing.T) {
	g := graph{"Pizza": {"Italy"}, "Italy": {"Albert_Einstein"}, "Albert_Einstein": {}}
	d := &fakeDriver{g: g}
	s := runSession(t, Deps{Source: g, Open: opener(d)})

	var mu sync.Mutex
	var statuses []race.Status
	s.Subscribe(func(snap race.Snapshot) {
		mu.Lock()
		statuses = append(statuses, snap.Status)
		mu.Unlock()
	})

	require.NoError(t, s.Start(context.Background(), "Pizza", "Albert_Einstein"))

	snap := waitFor(t, s, func(s race.Snapshot) bool { return s.Status == race.StatusCompleted })
	require.NotNil(t, snap.Outcome)
	assert.Equal(t, race.SideAgent, snap.Outcome.Winner)
	assert.Equal(t, race.TriggerAgentDetected, snap.Outcome.Trigger)
	require.NotEmpty(t, snap.AgentPath)
	assert.Equal(t, base+"Albert_Einstein", snap.AgentPath[len(snap.AgentPath)-1].Locator)

	require.Eventually(t, d.isClosed, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, statuses)
	assert.Equal(t, race.StatusInProgress, statuses[0])
	assert.Equal(t, race.StatusCompleted, statuses[len(statuses)-1])
}

func TestHumanDeclaresAndFlavorArrives(t *testing.T) {
	g := graph{"Pizza": {"Italy"}, "Italy": {"Albert_Einstein"}}
	d := &fakeDriver{g: g, stall: true}
	s := runSession(t, Deps{
		Source: g,
		Open:   opener(d),
		Flavor: flavorFunc(func(ctx context.Context, snap race.Snapshot) (string, error) {
			return "A photo finish.", nil
		}),
	})
	ctx := context.Background()

	require.NoError(t, s.Start(ctx, "Pizza", "Albert_Einstein"))
	for _, title := range []string{"Pizza", "Italy", "Albert_Einstein"} {
		_, err := s.HumanStep(ctx, base+title, links.DisplayTopic(title))
		require.NoError(t, err)
	}
	_, err := s.HumanStep(ctx, base+"Albert_Einstein", "Albert Einstein")
	require.NoError(t, err)

	snap, err := s.Complete(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.Outcome)
	assert.Equal(t, race.SideHuman, snap.Outcome.Winner)
	assert.Equal(t, 3, snap.Outcome.HumanSteps)
	assert.Equal(t, race.TierTop, snap.Outcome.Tier)

	snap = waitFor(t, s, func(s race.Snapshot) bool { return !s.Outcome.FlavorProvisional })
	assert.Equal(t, "A photo finish.", snap.Outcome.FlavorText)
	require.Eventually(t, d.isClosed, time.Second, 5*time.Millisecond)

	// Agent path is frozen after completion.
	frozen := len(snap.AgentPath)
	time.Sleep(30 * time.Millisecond)
	snap, _ = s.Snapshot(ctx)
	assert.Len(t, snap.AgentPath, frozen)
}

func TestStaleFlavorIgnoredAfterReplay(t *testing.T) {
	g := graph{"Pizza": {"Italy"}}
	d := &fakeDriver{g: g, stall: true}
	release := make(chan struct{})
	returned := make(chan struct{})
	s := runSession(t, Deps{
		Source: g,
		Open:   opener(d),
		Flavor: flavorFunc(func(ctx context.Context, snap race.Snapshot) (string, error) {
			<-release
			defer close(returned)
			return "Too late.", nil
		}),
	})
	ctx := context.Background()

	require.NoError(t, s.Start(ctx, "Pizza", "Albert_Einstein"))
	_, err := s.Complete(ctx)
	require.NoError(t, err)

	fresh, err := s.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, race.StatusNotStarted, fresh.Status)

	close(release)
	<-returned
	time.Sleep(30 * time.Millisecond)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, snap.ID)
	assert.Nil(t, snap.Outcome)
}

func agentLocators(snap race.Snapshot) []string {
	out := make([]string, 0, len(snap.AgentPath))
	for _, st := range snap.AgentPath {
		out = append(out, st.Locator)
	}
	return out
}

func TestBacktrackSurvivesSlowBack(t *testing.T) {
	g := graph{
		"Pizza":           {"Dead_end", "Italy"},
		"Dead_end":        {},
		"Italy":           {"Albert_Einstein"},
		"Albert_Einstein": {},
	}
	d := &fakeDriver{g: g, backDelay: 40 * time.Millisecond}
	s := runSession(t, Deps{Source: g, Open: opener(d)})

	var mu sync.Mutex
	var paths [][]string
	s.Subscribe(func(snap race.Snapshot) {
		mu.Lock()
		paths = append(paths, agentLocators(snap))
		mu.Unlock()
	})

	require.NoError(t, s.Start(context.Background(), "Pizza", "Albert_Einstein"))

	snap := waitFor(t, s, func(s race.Snapshot) bool { return s.Status == race.StatusCompleted })
	assert.Equal(t, []string{base + "Pizza", base + "Italy", base + "Albert_Einstein"}, agentLocators(snap))
	assert.Equal(t, 3, snap.Outcome.AgentSteps)
	assert.Equal(t, race.SideAgent, snap.Outcome.Winner)

	mu.Lock()
	defer mu.Unlock()
	sawDeadEnd, popped := false, false
	for _, p := range paths {
		has := false
		for _, l := range p {
			if l == base+"Dead_end" {
				has = true
			}
		}
		switch {
		case has && popped:
			t.Fatalf("dead end recorded again after backtrack: %v", p)
		case has:
			sawDeadEnd = true
		case sawDeadEnd:
			popped = true
		}
	}
	assert.True(t, sawDeadEnd)
	assert.True(t, popped)
}

func TestBacktrackWithoutHistoryKeepsPath(t *testing.T) {
	g := graph{"Pizza": {}}
	d := &fakeDriver{g: g}
	s := runSession(t, Deps{Source: g, Open: opener(d)})

	require.NoError(t, s.Start(context.Background(), "Pizza", "Albert_Einstein"))

	snap := waitFor(t, s, func(s race.Snapshot) bool { return s.Status == race.StatusCompleted })
	assert.Equal(t, race.TriggerAgentAborted, snap.Outcome.Trigger)
	assert.Equal(t, []string{base + "Pizza"}, agentLocators(snap))
}

func TestAgentBudgetExhaustedEndsRace(t *testing.T) {
	g := graph{"Pizza": {"Bread"}, "Bread": {"Pizza"}}
	d := &fakeDriver{g: g}
	s := runSession(t, Deps{Source: g, Open: opener(d)})

	require.NoError(t, s.Start(context.Background(), "Pizza", "Albert_Einstein"))

	snap := waitFor(t, s, func(s race.Snapshot) bool { return s.Status == race.StatusCompleted })
	assert.Equal(t, race.TriggerAgentAborted, snap.Outcome.Trigger)
	assert.Equal(t, race.SideHuman, snap.Outcome.Winner)
	assert.False(t, snap.Outcome.AgentReached)
}

func TestMisuseIsReported(t *testing.T) {
	g := graph{"Pizza": {"Italy"}}
	d := &fakeDriver{g: g, stall: true}
	s := runSession(t, Deps{Source: g, Open: opener(d)})
	ctx := context.Background()

	_, err := s.HumanStep(ctx, base+"Pizza", "Pizza")
	assert.ErrorIs(t, err, race.ErrInvalidState)
	_, err = s.Complete(ctx)
	assert.ErrorIs(t, err, race.ErrInvalidState)

	require.NoError(t, s.Start(ctx, "Pizza", "Albert_Einstein"))
	err = s.Start(ctx, "Pizza", "Albert_Einstein")
	assert.ErrorIs(t, err, race.ErrInvalidState)

	assert.ErrorIs(t, s.Start(ctx, "", "x"), race.ErrInvalidState)
}

func TestStartRejectsEmptyTopics(t *testing.T) {
	s := runSession(t, Deps{Source: graph{}, Open: opener(&fakeDriver{})})
	assert.ErrorIs(t, s.Start(context.Background(), "", "Albert_Einstein"), race.ErrInvalidTopic)
}

func TestClosedSession(t *testing.T) {
	s := New(Deps{Source: graph{}})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	_, err := s.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
