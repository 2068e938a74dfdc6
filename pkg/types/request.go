// Package types defines the shared request, response, and configuration
// types used across the modelrelay pipeline.
package types

import "time"

// DefaultPreset is the preset used when a request does not name one.
const DefaultPreset = "default"

// RequestSpec is the caller-facing request shape. It is treated as
// immutable once submitted to the pipeline.
type RequestSpec struct {
	Prompt       string            `json:"prompt"`
	SystemPrompt string            `json:"system_prompt,omitempty"`
	Provider     string            `json:"provider,omitempty"`
	Model        string            `json:"model,omitempty"`
	Options      map[string]any    `json:"options,omitempty"`
	Vars         map[string]string `json:"vars,omitempty"`
	Stream       bool              `json:"stream,omitempty"`
	Preset       string            `json:"preset,omitempty"`

	// CallerID scopes rate-limit counters. Empty means the shared
	// anonymous scope.
	CallerID string `json:"caller_id,omitempty"`

	// Cache controls for this call only.
	CacheTTL       time.Duration `json:"cache_ttl,omitempty"`
	CacheNamespace string        `json:"cache_namespace,omitempty"`
	NoCache        bool          `json:"no_cache,omitempty"` // skip cache read
	NoStore        bool          `json:"no_store,omitempty"` // skip cache write
}

// PresetName returns the preset to resolve against, falling back to
// DefaultPreset when the request does not name one.
func (s *RequestSpec) PresetName() string {
	if s.Preset == "" {
		return DefaultPreset
	}
	return s.Preset
}

// Preset is a named, reusable bundle of provider/model/system-prompt/option
// defaults. Presets are loaded from an external repository; the pipeline
// only reads them.
type Preset struct {
	Provider     string         `json:"provider" yaml:"provider"`
	Model        string         `json:"model" yaml:"model"`
	SystemPrompt string         `json:"system_prompt,omitempty" yaml:"system_prompt"`
	Options      map[string]any `json:"options,omitempty" yaml:"options"`
}

// ResolvedConfig is a fully merged, ready-to-dispatch request
// configuration. Provider and Model are always non-empty after
// resolution; no further lookups are needed downstream.
type ResolvedConfig struct {
	Provider     string            `json:"provider"`
	Model        string            `json:"model"`
	Prompt       string            `json:"prompt"`
	SystemPrompt string            `json:"system_prompt,omitempty"`
	Options      map[string]any    `json:"options,omitempty"`
	Vars         map[string]string `json:"vars,omitempty"`
	Stream       bool              `json:"stream,omitempty"`
}

// ProviderConfig defines a single upstream provider configuration.
type ProviderConfig struct {
	Name    string            `json:"name" yaml:"name"`
	Type    string            `json:"type" yaml:"type"` // adapter type; defaults to Name
	APIKey  string            `json:"-" yaml:"api_key"`
	BaseURL string            `json:"base_url,omitempty" yaml:"base_url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers"`
	Timeout time.Duration     `json:"timeout,omitempty" yaml:"timeout"`
}
