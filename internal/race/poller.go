package race

import (
	"context"
	"sync"
	"time"

	"github.com/neboloop/wikirace/internal/logging"
	"github.com/neboloop/wikirace/internal/metrics"
)

// Observation is a page seen on the agent's session.
type Observation struct {
	Locator string
	Label   string
}

// PollerConfig configures the agent page poller
type PollerConfig struct {
	Interval time.Duration // How often to observe (default: 2s)
	Observe  func(ctx context.Context) (Observation, error)
	// Deliver hands an observation to the race owner. ctx is cancelled when
	// Stop is called, so a blocked delivery must give up on ctx.Done().
	Deliver func(ctx context.Context, obs Observation)
}

// Poller watches the agent's session on a fixed interval.
type Poller struct {
	cfg    PollerConfig
	cancel context.CancelFunc
	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.Mutex
	running bool
	stopped bool
}

// NewPoller creates a poller. It does nothing until Start.
func NewPoller(cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	return &Poller{
		cfg:    cfg,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins polling. A stopped poller cannot be restarted.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running || p.stopped {
		return
	}
	p.running = true

	ctx, p.cancel = context.WithCancel(ctx)
	go p.run(ctx)
}

// Stop halts polling and waits for the loop to exit. No delivery happens
// after Stop returns. Safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	running := p.running
	p.mu.Unlock()

	if !running {
		return
	}
	p.cancel()
	close(p.stopCh)
	<-p.doneCh
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	obs, err := p.cfg.Observe(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logging.Debugf("[Poller] observe failed: %v", err)
		}
		metrics.PollTicks.WithLabelValues("error").Inc()
		return
	}
	metrics.PollTicks.WithLabelValues("ok").Inc()

	// Stop may have landed while Observe was in flight.
	select {
	case <-p.stopCh:
		return
	default:
	}
	p.cfg.Deliver(ctx, obs)
}
