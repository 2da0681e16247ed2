package config

import (
	"errors"

	"github.com/neboloop/wikirace/internal/keyring"
	"github.com/neboloop/wikirace/internal/logging"
)

// Provider names accepted in AI.Provider and AI.Fallback.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// keychainGet is swapped out in tests.
var keychainGet = keyring.Get

// APIKey resolves the key for provider: config (already env-expanded and
// env-overridden) first, then the OS keychain. Ollama needs no key.
func (c Config) APIKey(provider string) string {
	var key string
	switch provider {
	case ProviderAnthropic:
		key = c.AI.AnthropicAPIKey
	case ProviderOpenAI:
		key = c.AI.OpenAIAPIKey
	case ProviderOllama:
		return ""
	}
	if key != "" {
		return key
	}

	key, err := keychainGet(provider)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			logging.Warnf("[Config] keychain lookup for %s: %v", provider, err)
		}
		return ""
	}
	return key
}
