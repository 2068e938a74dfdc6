// Package gemini implements the Google Gemini generateContent adapter.
// Gemini authenticates with the API key as a query parameter rather than
// a header.
package gemini

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/modelrelay/modelrelay/internal/provider"
	gwerrors "github.com/modelrelay/modelrelay/pkg/errors"
	"github.com/modelrelay/modelrelay/pkg/types"
)

const (
	// ProviderName is the identifier for this adapter.
	ProviderName = "gemini"

	// DefaultBaseURL is the default Google AI Studio endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultAPIVersion is the default Gemini API version.
	DefaultAPIVersion = "v1beta"
)

// Provider implements the Gemini generateContent adapter.
type Provider struct {
	name       string
	apiKey     string
	baseURL    string
	apiVersion string
	headers    map[string]string
}

// New creates a Gemini provider instance.
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

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

// BuildRequest creates a POST models/{model}:generateContent request.
func (p *Provider) BuildRequest(ctx context.Context, cfg *types.ResolvedConfig) (*http.Request, error) {
	payload := map[string]any{
		"contents": []content{{Role: "user", Parts: []part{{Text: cfg.Prompt}}}},
	}
	if cfg.SystemPrompt != "" {
		payload["systemInstruction"] = content{Parts: []part{{Text: cfg.SystemPrompt}}}
	}
	if genCfg := p.TransformOptions(cfg.Options); len(genCfg) > 0 {
		payload["generationConfig"] = genCfg
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/models/%s:generateContent?key=%s",
		p.baseURL, p.apiVersion, url.PathEscape(cfg.Model), url.QueryEscape(p.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}

	return httpReq, nil
}

// TransformOptions maps generic options onto generationConfig fields:
// max_tokens becomes maxOutputTokens, top_p becomes topP. Options Gemini
// has no equivalent for are dropped.
func (p *Provider) TransformOptions(options map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range provider.FilterLocalOptions(options) {
		switch k {
		case "temperature":
			out["temperature"] = v
		case "max_tokens":
			out["maxOutputTokens"] = v
		case "top_p":
			out["topP"] = v
		case "top_k":
			out["topK"] = v
		case "stop_sequences":
			out["stopSequences"] = v
		}
	}
	return out
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount        int `json:"promptTokenCount"`
		CandidatesTokenCount    int `json:"candidatesTokenCount"`
		TotalTokenCount         int `json:"totalTokenCount"`
		CachedContentTokenCount int `json:"cachedContentTokenCount"`
		ThoughtsTokenCount      int `json:"thoughtsTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

// ParseResponse folds a generateContent reply into the normalized shape.
func (p *Provider) ParseResponse(resp *http.Response) (*provider.Completion, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, gwerrors.NewProviderRequestError(p.name, "", resp.StatusCode, body, "malformed response body")
	}
	if len(parsed.Candidates) == 0 {
		return nil, gwerrors.NewProviderRequestError(p.name, parsed.ModelVersion, resp.StatusCode, body, "response contains no candidates")
	}

	var text strings.Builder
	for _, pt := range parsed.Candidates[0].Content.Parts {
		text.WriteString(pt.Text)
	}

	usage := parsed.UsageMetadata
	total := usage.TotalTokenCount
	if total == 0 {
		total = usage.PromptTokenCount + usage.CandidatesTokenCount
	}

	return &provider.Completion{
		Content: text.String(),
		Usage: types.Usage{
			InputTokens:     usage.PromptTokenCount,
			OutputTokens:    usage.CandidatesTokenCount,
			TotalTokens:     total,
			CachedTokens:    usage.CachedContentTokenCount,
			ReasoningTokens: usage.ThoughtsTokenCount,
		},
		Meta: map[string]any{
			"model":         parsed.ModelVersion,
			"finish_reason": parsed.Candidates[0].FinishReason,
		},
	}, nil
}

// MapError converts a Gemini error reply into a standardized error.
func (p *Provider) MapError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}

	message := http.StatusText(statusCode)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	return gwerrors.NewProviderRequestError(p.name, "", statusCode, body, message)
}
