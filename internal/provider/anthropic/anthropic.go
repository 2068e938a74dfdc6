// Package anthropic implements the Anthropic Messages API adapter.
package anthropic

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/modelrelay/modelrelay/internal/provider"
	gwerrors "github.com/modelrelay/modelrelay/pkg/errors"
	"github.com/modelrelay/modelrelay/pkg/types"
)

const (
	// ProviderName is the identifier for this adapter.
	ProviderName = "anthropic"

	// DefaultBaseURL is the default Anthropic API endpoint.
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultAPIVersion is the anthropic-version header value.
	DefaultAPIVersion = "2023-06-01"

	// DefaultMaxTokens applies when the request sets no max_tokens;
	// the Messages API requires the field.
	DefaultMaxTokens = 4096
)

// Provider implements the Anthropic Messages API adapter.
type Provider struct {
	name       string
	apiKey     string
	baseURL    string
	apiVersion string
	headers    map[string]string
}

// New creates an Anthropic provider instance.
func New(cfg types.ProviderConfig) (provider.Provider, error) {
	name := cfg.Name
	if name == "" {
		name = ProviderName
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Provider{
		name:       name,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiVersion: DefaultAPIVersion,
		headers:    cfg.Headers,
	}, nil
}

// Name returns the configured provider identifier.
func (p *Provider) Name() string {
	return p.name
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildRequest creates a POST /v1/messages request.
func (p *Provider) BuildRequest(ctx context.Context, cfg *types.ResolvedConfig) (*http.Request, error) {
	payload := map[string]any{
		"model":      cfg.Model,
		"messages":   []message{{Role: "user", Content: cfg.Prompt}},
		"max_tokens": DefaultMaxTokens,
	}
	if cfg.SystemPrompt != "" {
		payload["system"] = cfg.SystemPrompt
	}
	for k, v := range p.TransformOptions(cfg.Options) {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", p.apiVersion)
	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}

	return httpReq, nil
}

// Options the Messages API accepts directly.
var acceptedOptions = map[string]struct{}{
	"max_tokens":     {},
	"temperature":    {},
	"top_p":          {},
	"top_k":          {},
	"stop_sequences": {},
}

// TransformOptions keeps the options the Messages API understands and
// drops OpenAI-only sampling penalties.
func (p *Provider) TransformOptions(options map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range provider.FilterLocalOptions(options) {
		if _, ok := acceptedOptions[k]; ok {
			out[k] = v
		}
	}
	return out
}

type messagesResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens         int `json:"input_tokens"`
		OutputTokens        int `json:"output_tokens"`
		CacheReadInputToken int `json:"cache_read_input_tokens"`
	} `json:"usage"`
}

// ParseResponse folds a Messages API reply into the normalized shape.
func (p *Provider) ParseResponse(resp *http.Response) (*provider.Completion, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, gwerrors.NewProviderRequestError(p.name, "", resp.StatusCode, body, "malformed response body")
	}
	if len(parsed.Content) == 0 {
		return nil, gwerrors.NewProviderRequestError(p.name, parsed.Model, resp.StatusCode, body, "response contains no content blocks")
	}

	var content strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &provider.Completion{
		Content: content.String(),
		Usage: types.Usage{
			InputTokens:  parsed.Usage.InputTokens,
			OutputTokens: parsed.Usage.OutputTokens,
			TotalTokens:  parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
			CachedTokens: parsed.Usage.CacheReadInputToken,
		},
		Meta: map[string]any{
			"id":          parsed.ID,
			"model":       parsed.Model,
			"stop_reason": parsed.StopReason,
		},
	}, nil
}

// MapError converts an Anthropic error reply into a standardized error.
func (p *Provider) MapError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}

	message := http.StatusText(statusCode)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	return gwerrors.NewProviderRequestError(p.name, "", statusCode, body, message)
}
