// Package navigator runs the agent's side of a race: read the page, pick a
// link, click it, report where it landed, with a bounded attempt budget.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/neboloop/wikirace/internal/browser"
	"github.com/neboloop/wikirace/internal/links"
	"github.com/neboloop/wikirace/internal/logging"
	"github.com/neboloop/wikirace/internal/metrics"
	"github.com/neboloop/wikirace/internal/race"
)

var (
	// ErrTargetNotReached is returned when the attempt budget runs out.
	ErrTargetNotReached = errors.New("target not reached")
	// ErrDriverUnrecoverable is returned after too many failed recoveries in a row.
	ErrDriverUnrecoverable = errors.New("driver unrecoverable")
)

// Driver is the subset of browser.Driver the navigator needs.
type Driver interface {
	GoTo(ctx context.Context, locator string) (browser.Page, error)
	ActivateLink(ctx context.Context, text string, exact bool) (browser.Page, error)
	Current(ctx context.Context) (browser.Page, error)
	Back(ctx context.Context) (browser.Page, error)
}

// Source lists the article links on a page.
type Source interface {
	Links(ctx context.Context, locator string) ([]links.Candidate, error)
}

// Chooser picks the next link.
type Chooser interface {
	SelectNextLink(ctx context.Context, candidates []links.Candidate, targetTopic, currentPageTitle string) *links.Candidate
}

// Reporter feeds the agent's path into the race.
type Reporter interface {
	// ReportStep records the page the agent is on. finished is true once
	// the race is no longer in progress.
	ReportStep(ctx context.Context, page browser.Page) (finished bool, err error)
	// BeginBacktrack is called before the driver goes back. Pages seen
	// until EndBacktrack must not be recorded.
	BeginBacktrack(ctx context.Context) error
	// EndBacktrack removes the step the agent backed out of and records
	// landed. moved is false when Back failed.
	EndBacktrack(ctx context.Context, landed browser.Page, moved bool) error
}

// Config bounds a run.
type Config struct {
	Budget              int `yaml:"budget" json:"budget"`
	MaxRecoveryFailures int `yaml:"max_recovery_failures" json:"maxRecoveryFailures"`
}

// DefaultConfig returns the default navigation limits.
func DefaultConfig() Config {
	return Config{Budget: 40, MaxRecoveryFailures: 3}
}

// Result summarizes a run.
type Result struct {
	Attempts int
	Reached  bool
	Final    browser.Page
}

// Navigator steers one driver toward a target.
type Navigator struct {
	cfg      Config
	driver   Driver
	source   Source
	chooser  Chooser
	reporter Reporter
}

// New creates a navigator.
func New(cfg Config, driver Driver, source Source, chooser Chooser, reporter Reporter) *Navigator {
	def := DefaultConfig()
	if cfg.Budget <= 0 {
		cfg.Budget = def.Budget
	}
	if cfg.MaxRecoveryFailures <= 0 {
		cfg.MaxRecoveryFailures = def.MaxRecoveryFailures
	}
	return &Navigator{cfg: cfg, driver: driver, source: source, chooser: chooser, reporter: reporter}
}

// Run navigates until the target is reached, the race finishes elsewhere,
// ctx is cancelled, or the budget runs out.
func (n *Navigator) Run(ctx context.Context, targetTopic string) (Result, error) {
	var res Result
	defer func() { metrics.NavigatorAttempts.Observe(float64(res.Attempts)) }()

	log := logging.WithContext(ctx)
	visited := make(map[string]bool)
	deadEnds := make(map[string]bool)
	failures := 0

	for res.Attempts < n.cfg.Budget {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Attempts++

		page, err := n.driver.Current(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Warnf("[Navigator] read current page: %v", err)
			if !n.backtrack(ctx) {
				failures++
				if failures >= n.cfg.MaxRecoveryFailures {
					return res, fmt.Errorf("%w: %v", ErrDriverUnrecoverable, err)
				}
			}
			continue
		}
		res.Final = page

		finished, err := n.reporter.ReportStep(ctx, page)
		if err != nil {
			return res, err
		}
		if finished {
			return res, nil
		}
		if race.MatchesTopic(page.Title, targetTopic) || race.MatchesTopic(page.URL, targetTopic) {
			res.Reached = true
			return res, nil
		}
		visited[pageKey(page.URL)] = true

		cands, err := n.source.Links(ctx, page.URL)
		if err != nil {
			log.Warnf("[Navigator] links for %s: %v", page.URL, err)
			cands = nil
		}
		pool := prefer(cands, visited, deadEnds)

		choice := n.chooser.SelectNextLink(ctx, pool, targetTopic, page.Title)
		if choice == nil {
			log.Infof("[Navigator] dead end at %q, backing up", page.Title)
			deadEnds[pageKey(page.URL)] = true
			n.backtrack(ctx)
			continue
		}

		if _, err := n.driver.ActivateLink(ctx, choice.Text, true); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Warnf("[Navigator] activate %q: %v", choice.Text, err)
			if err := n.recover(ctx, page, *choice, pool); err != nil {
				metrics.NavigatorRecoveries.WithLabelValues("failed").Inc()
				failures++
				if failures >= n.cfg.MaxRecoveryFailures {
					return res, fmt.Errorf("%w: %v", ErrDriverUnrecoverable, err)
				}
				continue
			}
			metrics.NavigatorRecoveries.WithLabelValues("ok").Inc()
		}
		failures = 0
	}

	return res, ErrTargetNotReached
}

// recover retries a failed click with broader instructions: a loose text
// match, then direct navigation to the link, then another candidate. When
// all of those fail the last step is dropped and the driver goes back.
func (n *Navigator) recover(ctx context.Context, page browser.Page, failed links.Candidate, pool []links.Candidate) error {
	if _, err := n.driver.ActivateLink(ctx, failed.Text, false); err == nil {
		return nil
	}
	if href := resolveHref(page.URL, failed.Href); href != "" {
		if _, err := n.driver.GoTo(ctx, href); err == nil {
			return nil
		}
	}
	for _, c := range pool {
		if c.Href == failed.Href {
			continue
		}
		if href := resolveHref(page.URL, c.Href); href != "" {
			if _, err := n.driver.GoTo(ctx, href); err == nil {
				return nil
			}
		}
		break
	}

	if !n.backtrack(ctx) {
		return fmt.Errorf("recovery from %q failed", failed.Text)
	}
	return nil
}

// backtrack goes back one page and drops the agent's last step once the
// driver has moved. It reports whether the driver moved.
func (n *Navigator) backtrack(ctx context.Context) bool {
	log := logging.WithContext(ctx)
	if err := n.reporter.BeginBacktrack(ctx); err != nil {
		log.Debugf("[Navigator] begin backtrack: %v", err)
	}
	page, err := n.driver.Back(ctx)
	if rerr := n.reporter.EndBacktrack(ctx, page, err == nil); rerr != nil {
		log.Debugf("[Navigator] pop step: %v", rerr)
	}
	if err != nil {
		log.Warnf("[Navigator] go back: %v", err)
		return false
	}
	return true
}

// prefer drops known dead ends and, when possible, pages already visited.
func prefer(cands []links.Candidate, visited, deadEnds map[string]bool) []links.Candidate {
	var alive, fresh []links.Candidate
	for _, c := range cands {
		key := pageKey(c.Href)
		if deadEnds[key] {
			continue
		}
		alive = append(alive, c)
		if !visited[key] {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		return alive
	}
	return fresh
}

func pageKey(locator string) string {
	if title, ok := links.ArticleTitle(locator); ok {
		return strings.ToLower(title)
	}
	return strings.ToLower(locator)
}

func resolveHref(base, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		if ref.IsAbs() {
			return ref.String()
		}
		return ""
	}
	return b.ResolveReference(ref).String()
}
