// Package registry maps provider type names to adapter factories. The
// set of variants is closed at construction; custom factories may be
// registered before clients are built.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/modelrelay/modelrelay/internal/provider"
	"github.com/modelrelay/modelrelay/internal/provider/anthropic"
	"github.com/modelrelay/modelrelay/internal/provider/gemini"
	"github.com/modelrelay/modelrelay/internal/provider/openai"
	"github.com/modelrelay/modelrelay/pkg/types"
)

var (
	mu        sync.RWMutex
	factories = map[string]provider.Factory{
		"openai":    openai.New,
		"grok":      openai.New, // OpenAI-compatible wire format
		"anthropic": anthropic.New,
		"gemini":    gemini.New,
	}
)

// Register adds or replaces a factory for a provider type.
func Register(providerType string, factory provider.Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[providerType] = factory
}

// New builds a provider from its configuration. The adapter is selected
// by cfg.Type, falling back to cfg.Name.
func New(cfg types.ProviderConfig) (provider.Provider, error) {
	providerType := cfg.Type
	if providerType == "" {
		providerType = cfg.Name
	}

	mu.RLock()
	factory, ok := factories[providerType]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider type %q (known: %v)", providerType, Types())
	}
	return factory(cfg)
}

// Types returns the registered provider types, sorted.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for t := range factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
