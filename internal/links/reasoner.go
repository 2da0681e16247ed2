package links

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neboloop/wikirace/internal/ai"
)

const reasonerSystemPrompt = `You are playing a Wikipedia race. From the current article you must reach the target article by following links only.
Pick the single link most likely to bring you closer to the target. Prefer broad hub articles (countries, fields of study, famous people) when the target is far away, and specific links when it is close.
Answer with the exact link text and nothing else.`

// AIReasoner asks an LLM provider which link to follow.
type AIReasoner struct {
	Provider ai.Provider
	Model    string
	Timeout  time.Duration
}

// NewAIReasoner creates a reasoner backed by provider.
func NewAIReasoner(provider ai.Provider, model string) *AIReasoner {
	return &AIReasoner{Provider: provider, Model: model, Timeout: 20 * time.Second}
}

// Recommend returns the provider's answer with quoting and list markers removed.
func (r *AIReasoner) Recommend(ctx context.Context, req Request) (string, error) {
	if r.Provider == nil {
		return "", fmt.Errorf("no provider configured")
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	text, err := ai.Complete(ctx, r.Provider, &ai.ChatRequest{
		System:    reasonerSystemPrompt,
		Model:     r.Model,
		MaxTokens: 64,
		Messages:  []ai.Message{{Role: "user", Content: BuildPrompt(req)}},
	})
	if err != nil {
		return "", err
	}
	return CleanAnswer(text), nil
}

// BuildPrompt renders the user turn for a hop.
func BuildPrompt(req Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current article: %s\n", req.CurrentTitle)
	fmt.Fprintf(&sb, "Target article: %s\n\n", req.Target)
	sb.WriteString("Available links:\n")
	for _, c := range req.Candidates {
		fmt.Fprintf(&sb, "- %s\n", c.Text)
	}
	sb.WriteString("\nWhich link should be clicked next?")
	return sb.String()
}

// CleanAnswer strips the decoration models tend to add around a link name.
func CleanAnswer(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), ".")
	text = strings.TrimLeft(text, "-*• ")
	text = strings.Trim(text, "\"'`*[] ")
	return strings.TrimSpace(text)
}
