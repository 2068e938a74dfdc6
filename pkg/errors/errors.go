// Package errors defines the unified error taxonomy for pipeline
// operations. All provider-specific failures are mapped to these types so
// that retry classification and logging never depend on upstream formats.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. The retry policy allow-list is expressed in these values.
const (
	TypeConfiguration    = "configuration_error"
	TypeInvalidRequest   = "invalid_request_error"
	TypeRateLimit        = "rate_limit_error"
	TypeProviderRequest  = "provider_request_error"
	TypeTimeout          = "timeout_error"
	TypeCanceled         = "canceled"
	TypeRetriesExhausted = "retries_exhausted"
)

// GatewayError is the standardized error for all pipeline failures.
type GatewayError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	Retryable  bool   `json:"-"`

	// RawBody holds the upstream response body for diagnostics. Never
	// serialized.
	RawBody []byte `json:"-"`

	err error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	return fmt.Sprintf("[%s] %s (provider=%s, model=%s, code=%d)",
		e.Type, e.Message, e.Provider, e.Model, e.StatusCode)
}

// Unwrap returns the wrapped cause, if any.
func (e *GatewayError) Unwrap() error {
	return e.err
}

// HTTPStatusCode returns the appropriate HTTP status code for the error.
func (e *GatewayError) HTTPStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// NewPresetNotFound reports a request naming a preset that does not exist.
// Fatal, never retried.
func NewPresetNotFound(name string) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusBadRequest,
		Message:    fmt.Sprintf("preset %q not found", name),
		Type:       TypeConfiguration,
		Retryable:  false,
	}
}

// NewProviderConfigMissing reports a resolved provider with no
// configuration. Fatal, never retried.
func NewProviderConfigMissing(provider string) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusBadRequest,
		Message:    fmt.Sprintf("no configuration for provider %q", provider),
		Type:       TypeConfiguration,
		Provider:   provider,
		Retryable:  false,
	}
}

// NewInvalidRequest reports a structurally invalid request.
func NewInvalidRequest(message string) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusBadRequest,
		Message:    message,
		Type:       TypeInvalidRequest,
		Retryable:  false,
	}
}

// NewRateLimitExceeded reports an admission denial. It is a decision, not
// an upstream failure; propagating callers may choose to treat it as
// retryable, so the flag is set.
func NewRateLimitExceeded(provider, model, dimension string) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusTooManyRequests,
		Message:    fmt.Sprintf("rate limit exceeded for %s", dimension),
		Type:       TypeRateLimit,
		Provider:   provider,
		Model:      model,
		Retryable:  true,
	}
}

// NewProviderRequestError reports a non-2xx status or malformed body from
// an upstream provider. 429 and 5xx responses are retryable; other client
// errors are not. The raw body is carried for diagnostics.
func NewProviderRequestError(provider, model string, statusCode int, body []byte, message string) *GatewayError {
	retryable := statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusRequestTimeout ||
		statusCode >= 500
	return &GatewayError{
		StatusCode: statusCode,
		Message:    message,
		Type:       TypeProviderRequest,
		Provider:   provider,
		Model:      model,
		Retryable:  retryable,
		RawBody:    body,
	}
}

// NewTimeout reports a provider call that exceeded its deadline.
// Retryable by default.
func NewTimeout(provider, model string, cause error) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusRequestTimeout,
		Message:    "provider request timed out",
		Type:       TypeTimeout,
		Provider:   provider,
		Model:      model,
		Retryable:  true,
		err:        cause,
	}
}

// NewCanceled reports a call abandoned by its caller. Not retryable;
// distinct from an upstream timeout.
func NewCanceled(provider, model string, cause error) *GatewayError {
	return &GatewayError{
		StatusCode: 499, // client closed request
		Message:    "request canceled by caller",
		Type:       TypeCanceled,
		Provider:   provider,
		Model:      model,
		Retryable:  false,
		err:        cause,
	}
}

// NewRetriesExhausted reports that maxAttempts was reached without
// success. Fatal; wraps the final attempt's error.
func NewRetriesExhausted(provider, model string, attempts int, last error) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusBadGateway,
		Message:    fmt.Sprintf("all %d attempts failed: %v", attempts, last),
		Type:       TypeRetriesExhausted,
		Provider:   provider,
		Model:      model,
		Retryable:  false,
		err:        last,
	}
}

// As extracts a *GatewayError from an error chain.
func As(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// IsRetryable reports whether the error is marked retryable.
// Non-gateway errors are never retryable.
func IsRetryable(err error) bool {
	if ge, ok := As(err); ok {
		return ge.Retryable
	}
	return false
}

// Kind returns the error's type constant, or empty for non-gateway errors.
func Kind(err error) string {
	if ge, ok := As(err); ok {
		return ge.Type
	}
	return ""
}
