// Package credentials resolves per-provider API keys. Resolution order is
// environment variable first, then the config file entry; the orchestrator
// only sees the Store interface and a resolved key string.
package credentials

import (
	"fmt"
	"os"

	"github.com/aaleccoder/taulechat-sub000/internal/config"
	"github.com/aaleccoder/taulechat-sub000/internal/types"
)

// Store resolves the API key for a provider. An empty key with a nil error is
// valid for backends that accept unauthenticated calls; callers that require
// a key should use Require.
type Store interface {
	APIKey(provider types.ProviderName) (string, error)
}

// envVarFor maps a provider to its conventional environment variable.
func envVarFor(provider types.ProviderName) string {
	switch provider {
	case types.ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	case types.ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// ConfigStore resolves keys from the environment, falling back to the loaded
// config file.
type ConfigStore struct {
	creds config.CredentialsConfig
}

// NewConfigStore wraps the credentials section of a loaded config.
func NewConfigStore(creds config.CredentialsConfig) *ConfigStore {
	return &ConfigStore{creds: creds}
}

// APIKey returns the key for a provider, or "" when none is configured.
func (s *ConfigStore) APIKey(provider types.ProviderName) (string, error) {
	if env := envVarFor(provider); env != "" {
		if v := os.Getenv(env); v != "" {
			return v, nil
		}
	}
	switch provider {
	case types.ProviderOpenRouter:
		return s.creds.OpenRouterAPIKey, nil
	case types.ProviderGemini:
		return s.creds.GeminiAPIKey, nil
	default:
		return "", fmt.Errorf("unknown provider: %s", provider)
	}
}

// Require resolves a key and errors when none is available, naming the
// environment variable the user can set.
func Require(s Store, provider types.ProviderName) (string, error) {
	key, err := s.APIKey(provider)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("no API key for %s: set %s or add it to the config file", provider, envVarFor(provider))
	}
	return key, nil
}

// StaticStore returns fixed keys; used by tests.
type StaticStore map[types.ProviderName]string

// APIKey implements Store.
func (s StaticStore) APIKey(provider types.ProviderName) (string, error) {
	return s[provider], nil
}
