// Package registry is the read-only catalog of models the application can
// talk to. The built-in set covers the supported backends; config can add or
// override entries at startup.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aaleccoder/taulechat-sub000/internal/types"
)

// Registry resolves model ids to descriptors.
type Registry struct {
	mu     sync.RWMutex
	models map[string]types.ModelDescriptor
}

// builtins are the models available without any configuration.
var builtins = []types.ModelDescriptor{
	{
		ID:       "google/gemini-2.5-flash",
		Name:     "Gemini 2.5 Flash",
		Provider: types.ProviderGemini,
		Capabilities: types.ModelCapabilities{
			ImageInput: true,
			Thinking:   true,
		},
		SupportedGenerationMethods: []string{"generateContent", "streamGenerateContent"},
		ContextTokens:              1048576,
		MaxOutputTokens:            65536,
	},
	{
		ID:       "google/gemini-2.5-pro",
		Name:     "Gemini 2.5 Pro",
		Provider: types.ProviderGemini,
		Capabilities: types.ModelCapabilities{
			ImageInput: true,
			Thinking:   true,
		},
		SupportedGenerationMethods: []string{"generateContent", "streamGenerateContent"},
		ContextTokens:              1048576,
		MaxOutputTokens:            65536,
	},
	{
		ID:       "google/imagen-4.0-generate-001",
		Name:     "Imagen 4",
		Provider: types.ProviderGemini,
		Capabilities: types.ModelCapabilities{
			ImageOutput: true,
		},
		SupportedGenerationMethods: []string{"predict"},
	},
	{
		ID:       "openai/gpt-4o-mini",
		Name:     "GPT-4o mini",
		Provider: types.ProviderOpenRouter,
		Capabilities: types.ModelCapabilities{
			ImageInput: true,
		},
		ContextTokens:   128000,
		MaxOutputTokens: 16384,
	},
	{
		ID:       "anthropic/claude-sonnet-4",
		Name:     "Claude Sonnet 4",
		Provider: types.ProviderOpenRouter,
		Capabilities: types.ModelCapabilities{
			ImageInput: true,
			Thinking:   true,
		},
		ContextTokens:   200000,
		MaxOutputTokens: 64000,
	},
	{
		ID:              "deepseek/deepseek-chat-v3-0324",
		Name:            "DeepSeek V3",
		Provider:        types.ProviderOpenRouter,
		ContextTokens:   163840,
		MaxOutputTokens: 16384,
	},
}

// New creates a registry with the built-in models.
func New() *Registry {
	r := &Registry{models: make(map[string]types.ModelDescriptor, len(builtins))}
	for _, m := range builtins {
		r.models[m.ID] = m
	}
	return r
}

// Register adds or replaces a model descriptor.
func (r *Registry) Register(model types.ModelDescriptor) error {
	if model.ID == "" {
		return fmt.Errorf("model id required")
	}
	if model.Provider != types.ProviderGemini && model.Provider != types.ProviderOpenRouter {
		return fmt.Errorf("unknown provider %q for model %s", model.Provider, model.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[model.ID] = model
	return nil
}

// Get resolves a model id.
func (r *Registry) Get(id string) (types.ModelDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	if !ok {
		return types.ModelDescriptor{}, fmt.Errorf("unknown model: %s", id)
	}
	return m, nil
}

// List returns all models sorted by id.
func (r *Registry) List() []types.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ModelDescriptor, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
