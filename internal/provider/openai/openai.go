// Package openai implements the OpenAI chat completions adapter. It also
// serves any OpenAI-compatible endpoint; the Grok provider type reuses it
// with the x.ai base URL.
package openai

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
	ProviderName = "openai"

	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	// GrokBaseURL is the default endpoint for the grok provider type.
	GrokBaseURL = "https://api.x.ai/v1"
)

// Provider implements the OpenAI-compatible chat completions adapter.
type Provider struct {
	name    string
	apiKey  string
	baseURL string
	headers map[string]string
}

// New creates an OpenAI-compatible provider instance.
func New(cfg types.ProviderConfig) (provider.Provider, error) {
	name := cfg.Name
	if name == "" {
		name = ProviderName
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.Type == "grok" || name == "grok" {
			baseURL = GrokBaseURL
		} else {
			baseURL = DefaultBaseURL
		}
	}

	return &Provider{
		name:    name,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		headers: cfg.Headers,
	}, nil
}

// Name returns the configured provider identifier.
func (p *Provider) Name() string {
	return p.name
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildRequest creates a POST /chat/completions request.
func (p *Provider) BuildRequest(ctx context.Context, cfg *types.ResolvedConfig) (*http.Request, error) {
	var messages []chatMessage
	if cfg.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: cfg.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: cfg.Prompt})

	payload := map[string]any{
		"model":    cfg.Model,
		"messages": messages,
	}
	for k, v := range p.TransformOptions(cfg.Options) {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}

	return httpReq, nil
}

// TransformOptions passes options through unchanged; the wire format is
// already OpenAI-shaped. Pipeline-local options are dropped.
func (p *Provider) TransformOptions(options map[string]any) map[string]any {
	return provider.FilterLocalOptions(options)
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage chatUsage `json:"usage"`
}

// chatUsage accepts both the chat completions field names and the newer
// input/output variants some compatible endpoints emit.
type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	InputTokens      int `json:"input_tokens"`
	OutputTokens     int `json:"output_tokens"`

	PromptTokensDetails struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"prompt_tokens_details"`
	CompletionTokensDetails struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details"`
}

// ParseResponse folds an OpenAI reply into the normalized shape.
func (p *Provider) ParseResponse(resp *http.Response) (*provider.Completion, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, gwerrors.NewProviderRequestError(p.name, "", resp.StatusCode, body, "malformed response body")
	}
	if len(parsed.Choices) == 0 {
		return nil, gwerrors.NewProviderRequestError(p.name, parsed.Model, resp.StatusCode, body, "response contains no choices")
	}

	input := parsed.Usage.PromptTokens
	if input == 0 {
		input = parsed.Usage.InputTokens
	}
	output := parsed.Usage.CompletionTokens
	if output == 0 {
		output = parsed.Usage.OutputTokens
	}
	total := parsed.Usage.TotalTokens
	if total == 0 {
		total = input + output
	}

	return &provider.Completion{
		Content: parsed.Choices[0].Message.Content,
		Usage: types.Usage{
			InputTokens:     input,
			OutputTokens:    output,
			TotalTokens:     total,
			CachedTokens:    parsed.Usage.PromptTokensDetails.CachedTokens,
			ReasoningTokens: parsed.Usage.CompletionTokensDetails.ReasoningTokens,
		},
		Meta: map[string]any{
			"id":            parsed.ID,
			"model":         parsed.Model,
			"finish_reason": parsed.Choices[0].FinishReason,
		},
	}, nil
}

// MapError converts an OpenAI error reply into a standardized error.
func (p *Provider) MapError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}

	message := http.StatusText(statusCode)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	return gwerrors.NewProviderRequestError(p.name, "", statusCode, body, message)
}
