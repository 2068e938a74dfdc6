// Package modelrelay provides an embeddable LLM request pipeline: preset
// resolution, response caching, rate limiting, provider dispatch with
// retries, and usage-based cost accounting behind one call.
//
// Basic usage:
//
//	client, err := modelrelay.New(
//	    modelrelay.WithProvider(modelrelay.ProviderConfig{
//	        Name:   "openai",
//	        APIKey: os.Getenv("OPENAI_API_KEY"),
//	    }),
//	    modelrelay.WithPreset("default", modelrelay.Preset{
//	        Provider: "openai",
//	        Model:    "gpt-4o-mini",
//	    }),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	resp, err := client.Complete(ctx, &modelrelay.RequestSpec{
//	    Prompt: "Hello!",
//	})
package modelrelay

import (
	"github.com/modelrelay/modelrelay/pkg/errors"
	"github.com/modelrelay/modelrelay/pkg/types"
)

// Version is the current version of modelrelay.
const Version = "1.2.0"

// Re-export core request/response types for convenience.
type (
	// RequestSpec is the caller-facing request shape.
	RequestSpec = types.RequestSpec

	// NormalizedResponse is the uniform result shape for every call.
	NormalizedResponse = types.NormalizedResponse

	// Usage contains token usage for a completed call.
	Usage = types.Usage

	// Preset is a named bundle of provider/model/option defaults.
	Preset = types.Preset

	// ProviderConfig defines one upstream provider.
	ProviderConfig = types.ProviderConfig

	// Error is the standardized pipeline error.
	Error = errors.GatewayError
)

// IsRetryable reports whether err is a transient pipeline error.
func IsRetryable(err error) bool {
	return errors.IsRetryable(err)
}

// AsError extracts the standardized pipeline error from err, if any.
func AsError(err error) (*Error, bool) {
	return errors.As(err)
}
