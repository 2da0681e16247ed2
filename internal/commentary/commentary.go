// Package commentary writes the post-race flavor text.
package commentary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neboloop/wikirace/internal/ai"
	"github.com/neboloop/wikirace/internal/links"
	"github.com/neboloop/wikirace/internal/race"
)

const systemPrompt = `You are a witty sports commentator covering a Wikipedia race between a human and an AI agent.
Write two or three sentences of match commentary in markdown. Mention the winner, one notable hop from either path, and the margin.
Refer to articles as [[Title]]. No headings, no lists.`

// Generator asks an LLM for commentary.
type Generator struct {
	Provider ai.Provider
	Model    string
	Timeout  time.Duration
}

// New creates a generator backed by provider.
func New(provider ai.Provider, model string) *Generator {
	return &Generator{Provider: provider, Model: model, Timeout: 30 * time.Second}
}

// Generate returns markdown commentary for a completed race.
func (g *Generator) Generate(ctx context.Context, snap race.Snapshot) (string, error) {
	if snap.Outcome == nil {
		return "", fmt.Errorf("race %s has no outcome", snap.ID)
	}
	if g.Provider == nil {
		return "", fmt.Errorf("no provider configured")
	}
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	return ai.Complete(ctx, g.Provider, &ai.ChatRequest{
		System:      systemPrompt,
		Model:       g.Model,
		MaxTokens:   256,
		Temperature: 0.9,
		Messages:    []ai.Message{{Role: "user", Content: BuildPrompt(snap)}},
	})
}

// BuildPrompt summarizes the race for the commentator.
func BuildPrompt(snap race.Snapshot) string {
	o := snap.Outcome
	var sb strings.Builder
	fmt.Fprintf(&sb, "Start: %s\nTarget: %s\n", links.DisplayTopic(snap.StartTopic), links.DisplayTopic(snap.TargetTopic))
	fmt.Fprintf(&sb, "Winner: %s (%s)\n", o.Winner, o.Reason)
	fmt.Fprintf(&sb, "Human: %d steps in %s, path: %s\n", o.HumanSteps, o.HumanElapsed.Round(time.Second), pathString(snap.HumanPath))
	fmt.Fprintf(&sb, "Agent: %d steps in %s, path: %s\n", o.AgentSteps, o.AgentElapsed.Round(time.Second), pathString(snap.AgentPath))
	fmt.Fprintf(&sb, "Human rating: %s\n", o.Tier)
	return sb.String()
}

func pathString(path []race.Step) string {
	if len(path) == 0 {
		return "(none)"
	}
	labels := make([]string, len(path))
	for i, s := range path {
		labels[i] = s.Label
		if labels[i] == "" {
			labels[i] = s.Locator
		}
	}
	return strings.Join(labels, " > ")
}

// Placeholder is the flavor text shown until the commentary arrives.
func Placeholder(o race.Outcome) string {
	if o.Winner == race.SideAgent {
		if !o.HumanReached && o.Trigger == race.TriggerHumanDeclared {
			return "You threw in the towel. The machine takes this one."
		}
		return "The machine got there first. Better luck next round."
	}
	if !o.HumanReached && o.Trigger == race.TriggerAgentAborted {
		return "The machine got lost in the stacks. You win by default."
	}
	switch o.Tier {
	case race.TierTop:
		return "A masterclass in link-hopping. The machine never stood a chance."
	case race.TierBottom:
		return "You got there in the end, scenic route and all."
	default:
		return "A solid win over the machine."
	}
}
