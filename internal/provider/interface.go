// Package provider defines the adapter interface for upstream LLM
// providers. Each variant translates a resolved request into its wire
// format and folds the heterogeneous reply back into one normalized shape.
package provider

import (
	"context"
	"net/http"

	"github.com/modelrelay/modelrelay/pkg/types"
)

// Completion is the normalized payload parsed from a provider reply.
type Completion struct {
	Content string         `json:"content"`
	Usage   types.Usage    `json:"usage"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Provider is the contract every adapter implements.
type Provider interface {
	// Name returns the configured provider identifier.
	Name() string

	// BuildRequest translates a resolved config into a provider-specific
	// HTTP request, including auth headers and option mapping.
	BuildRequest(ctx context.Context, cfg *types.ResolvedConfig) (*http.Request, error)

	// ParseResponse folds a successful provider reply into the
	// normalized completion shape. A malformed body yields a
	// provider request error carrying the raw payload.
	ParseResponse(resp *http.Response) (*Completion, error)

	// TransformOptions maps generic option names onto the provider's
	// wire vocabulary, dropping options the provider does not accept.
	TransformOptions(options map[string]any) map[string]any

	// MapError converts a non-2xx reply into a standardized error.
	MapError(statusCode int, body []byte) error
}

// Factory creates a provider instance from configuration.
type Factory func(cfg types.ProviderConfig) (Provider, error)

// Options never forwarded upstream: they steer the pipeline, not the
// provider.
var localOptions = map[string]struct{}{
	"stream":  {},
	"async":   {},
	"timeout": {},
}

// FilterLocalOptions copies options minus the pipeline-local ones.
// Adapters start their TransformOptions from this.
func FilterLocalOptions(options map[string]any) map[string]any {
	out := make(map[string]any, len(options))
	for k, v := range options {
		if _, skip := localOptions[k]; skip {
			continue
		}
		out[k] = v
	}
	return out
}
