// Package keyring stores provider API keys in the OS keychain.
package keyring

import (
	"errors"
	"fmt"
	"os"

	zkr "github.com/zalando/go-keyring"
)

const serviceName = "wikirace"

// ErrNotFound is returned when no key is stored for a provider.
var ErrNotFound = errors.New("no key in keychain")

// Get retrieves the API key stored for provider.
func Get(provider string) (string, error) {
	if disabled() {
		return "", ErrNotFound
	}
	key, err := zkr.Get(serviceName, provider)
	if errors.Is(err, zkr.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keychain get: %w", err)
	}
	return key, nil
}

// Set stores the API key for provider.
func Set(provider, key string) error {
	return zkr.Set(serviceName, provider, key)
}

// Delete removes the API key for provider.
func Delete(provider string) error {
	return zkr.Delete(serviceName, provider)
}

// Available returns true if the OS keychain is functional.
// Returns false if WIKIRACE_KEYRING_DISABLED=1 is set (headless/CI/Docker).
// Otherwise probes the keychain with a test write/read/delete cycle.
func Available() bool {
	if disabled() {
		return false
	}
	testService := "wikirace-keyring-probe"
	testAccount := "probe"
	if err := zkr.Set(testService, testAccount, "ok"); err != nil {
		return false
	}
	_ = zkr.Delete(testService, testAccount)
	return true
}

func disabled() bool {
	return os.Getenv("WIKIRACE_KEYRING_DISABLED") == "1"
}
