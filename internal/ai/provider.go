package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// StreamEventType defines the type of streaming event
type StreamEventType string

const (
	EventTypeText  StreamEventType = "text"
	EventTypeError StreamEventType = "error"
	EventTypeDone  StreamEventType = "done"
)

// StreamEvent represents a streaming response event
type StreamEvent struct {
	Type  StreamEventType `json:"type"`
	Text  string          `json:"text,omitempty"`
	Error error           `json:"error,omitempty"`
}

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"` // user, assistant
	Content string `json:"content"`
}

// ChatRequest represents a request to the AI provider
type ChatRequest struct {
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	System      string    `json:"system,omitempty"`
	Model       string    `json:"model,omitempty"` // Model override
}

// Provider interface for AI providers
type Provider interface {
	// ID returns the provider identifier (e.g., "anthropic", "openai")
	ID() string

	// Stream sends a request and returns a channel of streaming events
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error)
}

// ErrEmptyResponse is returned when a provider finishes without any text.
var ErrEmptyResponse = errors.New("empty response from provider")

// Complete sends req and collects the streamed text into one string.
func Complete(ctx context.Context, p Provider, req *ChatRequest) (string, error) {
	events, err := p.Stream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.ID(), err)
	}

	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return finish(p, sb.String())
			}
			switch ev.Type {
			case EventTypeText:
				sb.WriteString(ev.Text)
			case EventTypeError:
				return "", fmt.Errorf("%s: %w", p.ID(), ev.Error)
			case EventTypeDone:
				return finish(p, sb.String())
			}
		}
	}
}

func finish(p Provider, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", p.ID(), ErrEmptyResponse)
	}
	return text, nil
}

// ProviderError represents an error from a provider
type ProviderError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

func (e *ProviderError) Error() string {
	return e.Message
}

// ClassifyErrorReason buckets a provider error for the reasoner error metric:
// "rate_limit", "auth", "timeout", or "other".
func ClassifyErrorReason(err error) string {
	if err == nil {
		return "other"
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.Code {
		case "rate_limit_exceeded":
			return "rate_limit"
		case "authentication_error", "invalid_api_key", "unauthorized":
			return "auth"
		}
		switch pe.Type {
		case "rate_limit_error":
			return "rate_limit"
		case "authentication_error":
			return "auth"
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}

	lowerMsg := strings.ToLower(err.Error())
	patterns := []struct {
		reason string
		words  []string
	}{
		{"rate_limit", []string{"rate limit", "rate_limit", "too many requests", "429", "throttl"}},
		{"auth", []string{"authentication", "unauthorized", "api key", "401", "forbidden", "403"}},
		{"timeout", []string{"timeout", "timed out", "deadline exceeded"}},
	}
	for _, p := range patterns {
		for _, w := range p.words {
			if strings.Contains(lowerMsg, w) {
				return p.reason
			}
		}
	}
	return "other"
}

// FallbackProvider tries each provider in order until one opens a stream.
type FallbackProvider struct {
	Providers []Provider
}

// ID returns the first provider's identifier
func (f *FallbackProvider) ID() string {
	if len(f.Providers) == 0 {
		return "none"
	}
	return f.Providers[0].ID()
}

// Stream opens a stream on the first provider that accepts the request
func (f *FallbackProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	var errs []error
	for _, p := range f.Providers {
		events, err := p.Stream(ctx, req)
		if err == nil {
			return events, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.ID(), err))
	}
	if len(errs) == 0 {
		return nil, errors.New("no providers configured")
	}
	return nil, errors.Join(errs...)
}
