package config

import (
	"strings"

	gwerrors "github.com/modelrelay/modelrelay/pkg/errors"
	"github.com/modelrelay/modelrelay/pkg/types"
)

// Resolver merges a request against its preset and the global defaults
// to produce a dispatch-ready configuration.
//
// Option precedence, lowest to highest: defaults, preset options,
// request options.
type Resolver struct {
	presets  PresetSource
	defaults map[string]any
}

// NewResolver builds a resolver. presets may be nil, in which case only
// the default preset (empty) resolves.
func NewResolver(presets PresetSource, defaults map[string]any) *Resolver {
	if presets == nil {
		presets = StaticPresets{}
	}
	return &Resolver{presets: presets, defaults: defaults}
}

// Resolve produces a ResolvedConfig for the given request. It fails when
// the named preset does not exist or when no provider/model can be
// determined after merging.
func (r *Resolver) Resolve(spec *types.RequestSpec) (*types.ResolvedConfig, error) {
	preset, err := r.presets.Preset(spec.PresetName())
	if err != nil {
		return nil, err
	}

	provider := spec.Provider
	if provider == "" {
		provider = preset.Provider
	}
	model := spec.Model
	if model == "" {
		model = preset.Model
	}
	if provider == "" || model == "" {
		return nil, gwerrors.NewInvalidRequest("provider and model must be set by the request or its preset")
	}

	systemPrompt := spec.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = preset.SystemPrompt
	}

	options := mergeOptions(r.defaults, preset.Options, spec.Options)
	adjustForModelFamily(model, options)

	resolved := &types.ResolvedConfig{
		Provider:     provider,
		Model:        model,
		Prompt:       interpolate(spec.Prompt, spec.Vars),
		SystemPrompt: interpolate(systemPrompt, spec.Vars),
		Options:      options,
		Vars:         spec.Vars,
		Stream:       spec.Stream,
	}
	return resolved, nil
}

// mergeOptions overlays option maps left to right. Inputs are never
// mutated; the result is always a fresh map.
func mergeOptions(layers ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// interpolate substitutes {name} placeholders from vars. Placeholders
// without a matching var are left as-is.
func interpolate(s string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(s, "{") {
		return s
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// reasoningFamilies lists model-name prefixes whose API rejects the
// standard sampling knobs and renames the token limit.
var reasoningFamilies = []string{"o1", "o3", "o4", "gpt-5"}

func isReasoningModel(model string) bool {
	for _, family := range reasoningFamilies {
		if !strings.HasPrefix(model, family) {
			continue
		}
		rest := model[len(family):]
		if rest == "" || rest[0] == '-' || rest[0] == '.' {
			return true
		}
	}
	return false
}

// adjustForModelFamily rewrites options in place for models that reject
// the standard chat parameters: max_tokens becomes max_completion_tokens
// and the sampling knobs are dropped.
func adjustForModelFamily(model string, options map[string]any) {
	if !isReasoningModel(model) {
		return
	}
	if v, ok := options["max_tokens"]; ok {
		if _, exists := options["max_completion_tokens"]; !exists {
			options["max_completion_tokens"] = v
		}
		delete(options, "max_tokens")
	}
	delete(options, "temperature")
	delete(options, "top_p")
}
