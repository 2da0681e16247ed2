// Package race holds the canonical state of one human-versus-agent race.
//
// A Race is a small state machine (not-started -> in-progress -> completed)
// fed by two independent writers: the human's navigation events and the
// agent's observed pages. It is not safe for concurrent use; the owner
// serializes every call onto a single goroutine.
package race

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/neboloop/wikirace/internal/links"
)

// Status is the lifecycle position of a race.
type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Side identifies a racer.
type Side string

const (
	SideHuman Side = "human"
	SideAgent Side = "agent"
)

// Trigger is what ended the race.
type Trigger string

const (
	// TriggerHumanDeclared is the human saying "I've reached it" (or giving up).
	TriggerHumanDeclared Trigger = "human-declared"
	// TriggerAgentDetected is the agent landing on the target.
	TriggerAgentDetected Trigger = "agent-detected"
	// TriggerAgentAborted is the agent running out of attempts or hitting an
	// unrecoverable driver error; the agent did not reach the target.
	TriggerAgentAborted Trigger = "agent-aborted"
)

// Tier grades the human's path length.
type Tier string

const (
	TierTop     Tier = "top-tier"
	TierBottom  Tier = "bottom-tier"
	TierAverage Tier = "average"
)

// Errors reported for misuse.
var (
	ErrInvalidState = errors.New("invalid race state")
	ErrInvalidTopic = errors.New("start and target topics are required")
)

// StateError reports an operation attempted in the wrong status.
type StateError struct {
	Op     string
	Status Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("race: %s not allowed while %s", e.Op, e.Status)
}

// Is makes errors.Is(err, ErrInvalidState) match.
func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

// Step is one page on a racer's path.
type Step struct {
	Locator string    `json:"locator"`
	Label   string    `json:"label"`
	At      time.Time `json:"at"`
	Seq     uint64    `json:"seq"`
}

// Outcome is the verdict of a completed race.
type Outcome struct {
	Winner            Side          `json:"winner"`
	Trigger           Trigger       `json:"trigger"`
	Reason            string        `json:"reason"`
	HumanSteps        int           `json:"humanSteps"`
	AgentSteps        int           `json:"agentSteps"`
	HumanReached      bool          `json:"humanReached"`
	AgentReached      bool          `json:"agentReached"`
	HumanElapsed      time.Duration `json:"-"`
	AgentElapsed      time.Duration `json:"-"`
	Tier              Tier          `json:"tier"`
	FlavorText        string        `json:"flavorText"`
	FlavorProvisional bool          `json:"flavorProvisional"`
	CompletedAt       time.Time     `json:"completedAt"`
}

// MarshalJSON adds millisecond elapsed times for the UI.
func (o Outcome) MarshalJSON() ([]byte, error) {
	type alias Outcome
	return json.Marshal(struct {
		alias
		HumanElapsedMs int64 `json:"humanElapsedMs"`
		AgentElapsedMs int64 `json:"agentElapsedMs"`
	}{
		alias:          alias(o),
		HumanElapsedMs: o.HumanElapsed.Milliseconds(),
		AgentElapsedMs: o.AgentElapsed.Milliseconds(),
	})
}

// Thresholds configure the performance tier on human steps.
type Thresholds struct {
	TopTierMaxSteps    int `yaml:"top_tier_max_steps" json:"topTierMaxSteps"`
	BottomTierMinSteps int `yaml:"bottom_tier_min_steps" json:"bottomTierMinSteps"`
}

// DefaultThresholds returns the tier thresholds used when none are configured.
func DefaultThresholds() Thresholds {
	return Thresholds{TopTierMaxSteps: 4, BottomTierMinSteps: 9}
}

// TierFor grades a step count.
func (t Thresholds) TierFor(steps int) Tier {
	switch {
	case steps <= t.TopTierMaxSteps:
		return TierTop
	case steps >= t.BottomTierMinSteps:
		return TierBottom
	default:
		return TierAverage
	}
}

// Race is the shared state of one race.
type Race struct {
	id          string
	status      Status
	startTopic  string
	targetTopic string
	humanPath   []Step
	agentPath   []Step
	startedAt   time.Time
	outcome     *Outcome
	seq         uint64

	thresholds  Thresholds
	now         func() time.Time
	placeholder func(Outcome) string
}

// Option configures a Race.
type Option func(*Race)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Race) { r.now = now }
}

// WithThresholds sets the tier thresholds.
func WithThresholds(t Thresholds) Option {
	return func(r *Race) { r.thresholds = t }
}

// WithPlaceholder sets the synchronous flavor text shown until the
// asynchronous commentary arrives.
func WithPlaceholder(fn func(Outcome) string) Option {
	return func(r *Race) { r.placeholder = fn }
}

// New creates a race in the not-started state.
func New(opts ...Option) *Race {
	r := &Race{
		id:          uuid.New().String(),
		status:      StatusNotStarted,
		thresholds:  DefaultThresholds(),
		now:         time.Now,
		placeholder: defaultPlaceholder,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ID identifies this race instance.
func (r *Race) ID() string { return r.id }

// Status returns the current status.
func (r *Race) Status() Status { return r.status }

// TargetTopic returns the target in locator form.
func (r *Race) TargetTopic() string { return r.targetTopic }

// StartTopic returns the start in locator form.
func (r *Race) StartTopic() string { return r.startTopic }

// StartRace sets the topics and moves the race to in-progress.
func (r *Race) StartRace(startTopic, targetTopic string) error {
	if r.status != StatusNotStarted {
		return &StateError{Op: "start", Status: r.status}
	}
	startTopic = links.NormalizeTopic(startTopic)
	targetTopic = links.NormalizeTopic(targetTopic)
	if startTopic == "" || targetTopic == "" {
		return ErrInvalidTopic
	}

	r.startTopic = startTopic
	r.targetTopic = targetTopic
	r.humanPath = nil
	r.agentPath = nil
	r.startedAt = r.now()
	r.status = StatusInProgress
	return nil
}

// RecordHumanStep appends a page to the human path. Reaching the target does
// not end the race; the human declares completion separately.
func (r *Race) RecordHumanStep(locator, label string) error {
	if r.status != StatusInProgress {
		return &StateError{Op: "record human step", Status: r.status}
	}
	r.humanPath = r.appendStep(r.humanPath, locator, label)
	return nil
}

// RecordAgentStep appends a page to the agent path. Landing on the target
// completes the race on the spot.
func (r *Race) RecordAgentStep(locator, label string) error {
	if r.status != StatusInProgress {
		return &StateError{Op: "record agent step", Status: r.status}
	}
	before := len(r.agentPath)
	r.agentPath = r.appendStep(r.agentPath, locator, label)
	if len(r.agentPath) == before {
		return nil
	}
	if r.reached(r.agentPath) {
		_, err := r.CompleteRace(TriggerAgentDetected)
		return err
	}
	return nil
}

// PopAgentStep removes the agent's last step when it backtracks.
func (r *Race) PopAgentStep() (Step, error) {
	if r.status != StatusInProgress {
		return Step{}, &StateError{Op: "pop agent step", Status: r.status}
	}
	if len(r.agentPath) == 0 {
		return Step{}, nil
	}
	last := r.agentPath[len(r.agentPath)-1]
	r.agentPath = r.agentPath[:len(r.agentPath)-1]
	return last, nil
}

// CompleteRace ends the race and computes the outcome.
func (r *Race) CompleteRace(trigger Trigger) (*Outcome, error) {
	if r.status != StatusInProgress {
		return nil, &StateError{Op: "complete", Status: r.status}
	}
	switch trigger {
	case TriggerHumanDeclared, TriggerAgentDetected, TriggerAgentAborted:
	default:
		return nil, fmt.Errorf("race: unknown trigger %q", trigger)
	}

	completedAt := r.now()
	hr, ar := r.reached(r.humanPath), r.reached(r.agentPath)

	o := Outcome{
		Trigger:      trigger,
		HumanSteps:   len(r.humanPath),
		AgentSteps:   len(r.agentPath),
		HumanReached: hr,
		AgentReached: ar,
		HumanElapsed: r.elapsed(r.humanPath, hr, completedAt),
		AgentElapsed: r.elapsed(r.agentPath, ar, completedAt),
		CompletedAt:  completedAt,
	}

	switch {
	case hr && ar:
		o.Winner = r.tieBreak(o)
		o.Reason = "both reached the target"
	case hr:
		o.Winner = SideHuman
		o.Reason = "human reached the target"
	case ar:
		o.Winner = SideAgent
		o.Reason = "agent reached the target"
	case trigger == TriggerAgentAborted:
		o.Winner = SideHuman
		o.Reason = "agent did not reach the target"
	default:
		o.Winner = SideAgent
		o.Reason = "human ended the race without reaching the target"
	}

	o.Tier = r.thresholds.TierFor(o.HumanSteps)
	o.FlavorText = r.placeholder(o)
	o.FlavorProvisional = true

	r.outcome = &o
	r.status = StatusCompleted

	out := o
	return &out, nil
}

// SetFlavorText replaces the provisional flavor text once. It reports
// whether the text was applied.
func (r *Race) SetFlavorText(text string) bool {
	if r.status != StatusCompleted || r.outcome == nil || !r.outcome.FlavorProvisional {
		return false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	r.outcome.FlavorText = text
	r.outcome.FlavorProvisional = false
	return true
}

// Outcome returns a copy of the outcome, or nil before completion.
func (r *Race) Outcome() *Outcome {
	if r.outcome == nil {
		return nil
	}
	o := *r.outcome
	return &o
}

// Snapshot is a read-only view for rendering.
type Snapshot struct {
	ID          string    `json:"id"`
	Status      Status    `json:"status"`
	StartTopic  string    `json:"startTopic"`
	TargetTopic string    `json:"targetTopic"`
	HumanPath   []Step    `json:"humanPath"`
	AgentPath   []Step    `json:"agentPath"`
	StartedAt   time.Time `json:"startedAt,omitzero"`
	Outcome     *Outcome  `json:"outcome,omitempty"`
}

// Snapshot copies the current state.
func (r *Race) Snapshot() Snapshot {
	return Snapshot{
		ID:          r.id,
		Status:      r.status,
		StartTopic:  r.startTopic,
		TargetTopic: r.targetTopic,
		HumanPath:   append([]Step{}, r.humanPath...),
		AgentPath:   append([]Step{}, r.agentPath...),
		StartedAt:   r.startedAt,
		Outcome:     r.Outcome(),
	}
}

func (r *Race) appendStep(path []Step, locator, label string) []Step {
	if len(path) > 0 && path[len(path)-1].Locator == locator {
		return path
	}
	r.seq++
	return append(path, Step{Locator: locator, Label: label, At: r.now(), Seq: r.seq})
}

func (r *Race) reached(path []Step) bool {
	if len(path) == 0 {
		return false
	}
	last := path[len(path)-1]
	return MatchesTopic(last.Label, r.targetTopic) || MatchesTopic(last.Locator, r.targetTopic)
}

func (r *Race) elapsed(path []Step, reached bool, completedAt time.Time) time.Duration {
	if reached {
		return path[len(path)-1].At.Sub(r.startedAt)
	}
	return completedAt.Sub(r.startedAt)
}

// tieBreak picks a winner when both sides reached the target: fewer steps,
// then less time, then whoever reported the terminal step first.
func (r *Race) tieBreak(o Outcome) Side {
	switch {
	case o.HumanSteps != o.AgentSteps:
		if o.HumanSteps < o.AgentSteps {
			return SideHuman
		}
		return SideAgent
	case o.HumanElapsed != o.AgentElapsed:
		if o.HumanElapsed < o.AgentElapsed {
			return SideHuman
		}
		return SideAgent
	}
	if r.humanPath[len(r.humanPath)-1].Seq < r.agentPath[len(r.agentPath)-1].Seq {
		return SideHuman
	}
	return SideAgent
}

// MatchesTopic reports whether a page label or locator names topic.
// Labels are compared after spaces become underscores; locators by their
// /wiki/ title.
func MatchesTopic(s, topic string) bool {
	if s == "" || topic == "" {
		return false
	}
	topic = links.NormalizeTopic(topic)
	if strings.EqualFold(links.NormalizeTopic(s), topic) {
		return true
	}
	if title, ok := links.ArticleTitle(s); ok {
		if unescaped, err := url.PathUnescape(title); err == nil {
			title = unescaped
		}
		return strings.EqualFold(links.NormalizeTopic(title), topic)
	}
	return false
}

func defaultPlaceholder(o Outcome) string {
	if o.Winner == SideHuman {
		return "You beat the machine! Writing up the match report..."
	}
	return "The machine got there first. Writing up the match report..."
}
