// Package daily picks the daily challenge: one start/target pair shared by
// everyone for the day.
package daily

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/neboloop/wikirace/internal/links"
	"github.com/neboloop/wikirace/internal/logging"
)

const (
	batchSize   = 6
	maxAttempts = 3
	pickTimeout = 20 * time.Second
)

// ErrNoPair is returned when the source keeps returning too few usable titles.
var ErrNoPair = errors.New("could not pick a start/target pair")

// Challenge is a start/target pair.
type Challenge struct {
	Start    string    `json:"start"`
	Target   string    `json:"target"`
	Date     string    `json:"date"`
	PickedAt time.Time `json:"pickedAt"`
}

// RandomSource returns random article titles.
type RandomSource interface {
	Random(ctx context.Context, n int) ([]string, error)
}

// Picker holds the current challenge and refreshes it on a cron schedule.
type Picker struct {
	src   RandomSource
	clock func() time.Time

	mu      sync.Mutex
	current *Challenge

	scheduler *cronlib.Cron
}

// New creates a picker.
func New(src RandomSource) *Picker {
	return &Picker{
		src:       src,
		clock:     time.Now,
		scheduler: cronlib.New(),
	}
}

// Pick draws a fresh random pair. It does not replace the current challenge.
func (p *Picker) Pick(ctx context.Context) (Challenge, error) {
	var lastErr error
	for range maxAttempts {
		titles, err := p.src.Random(ctx, batchSize)
		if err != nil {
			lastErr = err
			continue
		}
		if start, target, ok := pair(titles); ok {
			now := p.clock()
			return Challenge{Start: start, Target: target, Date: now.Format(time.DateOnly), PickedAt: now}, nil
		}
	}
	if lastErr != nil {
		return Challenge{}, fmt.Errorf("%w: %v", ErrNoPair, lastErr)
	}
	return Challenge{}, ErrNoPair
}

// pair returns the first two distinct article titles in locator form.
func pair(titles []string) (start, target string, ok bool) {
	var picked []string
	for _, t := range titles {
		t = links.NormalizeTopic(t)
		if t == "" || links.IsNonArticleTitle(t) {
			continue
		}
		if len(picked) == 1 && picked[0] == t {
			continue
		}
		picked = append(picked, t)
		if len(picked) == 2 {
			return picked[0], picked[1], true
		}
	}
	return "", "", false
}

// Current returns today's challenge, picking one if none exists yet or the
// stored one is from an earlier day.
func (p *Picker) Current(ctx context.Context) (Challenge, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	today := p.clock().Format(time.DateOnly)
	if p.current != nil && p.current.Date == today {
		return *p.current, nil
	}
	c, err := p.Pick(ctx)
	if err != nil {
		return Challenge{}, err
	}
	p.current = &c
	return c, nil
}

// Refresh replaces the current challenge.
func (p *Picker) Refresh(ctx context.Context) (Challenge, error) {
	c, err := p.Pick(ctx)
	if err != nil {
		return Challenge{}, err
	}
	p.mu.Lock()
	p.current = &c
	p.mu.Unlock()
	logging.Infof("[Daily] new challenge: %s -> %s", c.Start, c.Target)
	return c, nil
}

// Start schedules Refresh. schedule is a cron spec or descriptor such as
// "@daily".
func (p *Picker) Start(schedule string) error {
	_, err := p.scheduler.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), pickTimeout)
		defer cancel()
		if _, err := p.Refresh(ctx); err != nil {
			logging.Warnf("[Daily] refresh failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}
	p.scheduler.Start()
	return nil
}

// Stop halts the schedule and waits for a running refresh.
func (p *Picker) Stop() {
	<-p.scheduler.Stop().Done()
}
