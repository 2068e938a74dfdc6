// Package config provides configuration loading, preset resolution, and
// hot reload. Presets, provider credentials, rate-limit rules, and the
// pricing table all live in one YAML document.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/modelrelay/modelrelay/internal/pricing"
	"github.com/modelrelay/modelrelay/internal/ratelimit"
	"github.com/modelrelay/modelrelay/internal/retry"
	gwerrors "github.com/modelrelay/modelrelay/pkg/errors"
	"github.com/modelrelay/modelrelay/pkg/types"
)

// File is the complete on-disk configuration.
type File struct {
	Defaults   map[string]any          `yaml:"defaults"`
	Presets    map[string]types.Preset `yaml:"presets"`
	Providers  []types.ProviderConfig  `yaml:"providers"`
	RateLimits []ratelimit.Rule        `yaml:"rate_limits"`
	Pricing    pricing.Table           `yaml:"pricing"`
	Cost       CostConfig              `yaml:"cost"`
	Retry      retry.Policy            `yaml:"retry"`
	CacheTTL   time.Duration           `yaml:"cache_ttl"`
}

// CostConfig controls cost display: a fixed USD exchange rate and the
// rounding precision.
type CostConfig struct {
	CurrencyRate float64 `yaml:"currency_rate"`
	Precision    int     `yaml:"precision"`
}

// LoadFromFile reads and validates a configuration file.
func LoadFromFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks structural invariants.
func (f *File) Validate() error {
	seen := make(map[string]bool, len(f.Providers))
	for i, p := range f.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider %d: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("provider %q declared twice", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// PresetSource supplies presets by name.
type PresetSource interface {
	// Preset returns the named preset, or a preset-not-found error.
	Preset(name string) (*types.Preset, error)
}

// ProviderSource supplies provider configurations by name.
type ProviderSource interface {
	// Provider returns the named provider config, or a
	// provider-config-missing error.
	Provider(name string) (*types.ProviderConfig, error)
}

// StaticPresets is an in-memory PresetSource. A missing "default" preset
// resolves to an empty one so zero-config setups still work; any other
// missing name is an error.
type StaticPresets map[string]types.Preset

// Preset implements PresetSource.
func (s StaticPresets) Preset(name string) (*types.Preset, error) {
	if p, ok := s[name]; ok {
		return &p, nil
	}
	if name == types.DefaultPreset {
		return &types.Preset{}, nil
	}
	return nil, gwerrors.NewPresetNotFound(name)
}
