package svc

import (
	"errors"
	"fmt"

	"github.com/neboloop/wikirace/internal/ai"
	"github.com/neboloop/wikirace/internal/config"
)

// ErrNoProvider is returned when no configured provider has credentials.
var ErrNoProvider = errors.New("no AI provider configured")

// BuildProvider creates the configured provider, wrapped with the fallback
// provider when one is set. Providers without credentials are skipped.
func BuildProvider(c config.Config) (ai.Provider, error) {
	var providers []ai.Provider
	var errs []error
	for _, name := range []string{c.AI.Provider, c.AI.Fallback} {
		if name == "" {
			continue
		}
		p, err := newProvider(c, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		providers = append(providers, p)
	}

	switch len(providers) {
	case 0:
		if len(errs) > 0 {
			return nil, fmt.Errorf("%w: %w", ErrNoProvider, errors.Join(errs...))
		}
		return nil, ErrNoProvider
	case 1:
		return providers[0], nil
	default:
		return &ai.FallbackProvider{Providers: providers}, nil
	}
}

func newProvider(c config.Config, name string) (ai.Provider, error) {
	switch name {
	case config.ProviderAnthropic:
		key := c.APIKey(name)
		if key == "" {
			return nil, fmt.Errorf("%s: no API key", name)
		}
		return ai.NewAnthropicProvider(key, c.AI.Model), nil
	case config.ProviderOpenAI:
		key := c.APIKey(name)
		if key == "" && c.AI.OpenAIBaseURL == "" {
			return nil, fmt.Errorf("%s: no API key", name)
		}
		return ai.NewOpenAIProvider(key, c.AI.Model, c.AI.OpenAIBaseURL), nil
	case config.ProviderOllama:
		return ai.NewOllamaProvider(c.AI.OllamaURL, c.AI.OllamaModel), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// Model overrides are only sent when one provider is in play; each provider
// in a fallback chain keeps its own default model.
func reasonerModel(c config.Config) string {
	if c.AI.Fallback != "" {
		return ""
	}
	return c.AI.Model
}

func commentaryModel(c config.Config) string {
	if c.AI.Fallback != "" {
		return ""
	}
	if c.AI.CommentaryModel != "" {
		return c.AI.CommentaryModel
	}
	return c.AI.Model
}
