package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/neboloop/wikirace/internal/logging"
)

// OllamaProvider implements the Provider interface for Ollama (local models) using the official SDK
type OllamaProvider struct {
	client *api.Client
	model  string
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "qwen3:4b"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		parsedURL, _ = url.Parse("http://localhost:11434")
	}

	httpClient := &http.Client{
		Timeout: 2 * time.Minute, // local inference is slow on first load
	}

	return &OllamaProvider{
		client: api.NewClient(parsedURL, httpClient),
		model:  model,
	}
}

// ID returns the provider identifier
func (p *OllamaProvider) ID() string {
	return "ollama"
}

// Stream sends a request to Ollama and streams the response
func (p *OllamaProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	messages := p.buildMessages(req)
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}

	model := p.model
	if req.Model != "" {
		model = req.Model
	}

	stream := true
	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
	}

	if req.Temperature > 0 || req.MaxTokens > 0 {
		chatReq.Options = make(map[string]any)
		if req.Temperature > 0 {
			chatReq.Options["temperature"] = req.Temperature
		}
		if req.MaxTokens > 0 {
			chatReq.Options["num_predict"] = req.MaxTokens
		}
	}

	logging.Debugf("[Ollama] Sending request: model=%s messages=%d", model, len(messages))

	resultCh := make(chan StreamEvent, 100)
	go func() {
		defer close(resultCh)

		err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				resultCh <- StreamEvent{Type: EventTypeText, Text: resp.Message.Content}
			}
			if resp.Done {
				resultCh <- StreamEvent{Type: EventTypeDone}
			}
			return nil
		})
		if err != nil {
			logging.Warnf("[Ollama] Stream error: %v", err)
			resultCh <- StreamEvent{Type: EventTypeError, Error: err}
		}
	}()

	return resultCh, nil
}

// buildMessages converts chat messages to Ollama format
func (p *OllamaProvider) buildMessages(req *ChatRequest) []api.Message {
	messages := make([]api.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}
	for _, msg := range req.Messages {
		if msg.Content == "" {
			continue
		}
		role := msg.Role
		if role != "assistant" {
			role = "user"
		}
		messages = append(messages, api.Message{Role: role, Content: msg.Content})
	}
	return messages
}
