package openai

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerrors "github.com/modelrelay/modelrelay/pkg/errors"
	"github.com/modelrelay/modelrelay/pkg/types"
)

func newTestProvider(t *testing.T, cfg types.ProviderConfig) *Provider {
	t.Helper()
	p, err := New(cfg)
	require.NoError(t, err)
	return p.(*Provider)
}

func TestBuildRequest(t *testing.T) {
	p := newTestProvider(t, types.ProviderConfig{Name: "openai", APIKey: "sk-test"})

	cfg := &types.ResolvedConfig{
		Provider:     "openai",
		Model:        "gpt-4o",
		Prompt:       "hello",
		SystemPrompt: "be brief",
		Options: map[string]any{
			"temperature":       0.7,
			"max_tokens":        100,
			"frequency_penalty": 0.5,
			"timeout":           30, // pipeline-local, must not reach the wire
		},
	}

	req, err := p.BuildRequest(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", req.URL.String())
	assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))

	assert.Equal(t, "gpt-4o", payload["model"])
	assert.InDelta(t, 0.7, payload["temperature"], 1e-9)
	assert.InDelta(t, 0.5, payload["frequency_penalty"], 1e-9)
	assert.NotContains(t, payload, "timeout")

	messages := payload["messages"].([]any)
	require.Len(t, messages, 2)
	first := messages[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "be brief", first["content"])
	second := messages[1].(map[string]any)
	assert.Equal(t, "user", second["role"])
	assert.Equal(t, "hello", second["content"])
}

func TestBuildRequest_GrokBaseURL(t *testing.T) {
	p := newTestProvider(t, types.ProviderConfig{Name: "grok", Type: "grok", APIKey: "xai-test"})

	req, err := p.BuildRequest(context.Background(), &types.ResolvedConfig{Model: "grok-3", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.x.ai/v1/chat/completions", req.URL.String())
	assert.Equal(t, "grok", p.Name())
}

func TestBuildRequest_CustomHeaders(t *testing.T) {
	p := newTestProvider(t, types.ProviderConfig{
		Name:    "openai",
		APIKey:  "sk-test",
		BaseURL: "https://proxy.internal/v1/",
		Headers: map[string]string{"X-Org": "acme"},
	})

	req, err := p.BuildRequest(context.Background(), &types.ResolvedConfig{Model: "gpt-4o", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "https://proxy.internal/v1/chat/completions", req.URL.String())
	assert.Equal(t, "acme", req.Header.Get("X-Org"))
}

func responseWith(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func TestParseResponse(t *testing.T) {
	p := newTestProvider(t, types.ProviderConfig{Name: "openai"})

	completion, err := p.ParseResponse(responseWith(`{
		"id": "chatcmpl-123",
		"model": "gpt-4o",
		"choices": [{"message": {"content": "hi there"}, "finish_reason": "stop"}],
		"usage": {
			"prompt_tokens": 12,
			"completion_tokens": 4,
			"total_tokens": 16,
			"prompt_tokens_details": {"cached_tokens": 8},
			"completion_tokens_details": {"reasoning_tokens": 2}
		}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "hi there", completion.Content)
	assert.Equal(t, 12, completion.Usage.InputTokens)
	assert.Equal(t, 4, completion.Usage.OutputTokens)
	assert.Equal(t, 16, completion.Usage.TotalTokens)
	assert.Equal(t, 8, completion.Usage.CachedTokens)
	assert.Equal(t, 2, completion.Usage.ReasoningTokens)
	assert.Equal(t, "chatcmpl-123", completion.Meta["id"])
	assert.Equal(t, "stop", completion.Meta["finish_reason"])
}

func TestParseResponse_InputOutputTokenVariant(t *testing.T) {
	p := newTestProvider(t, types.ProviderConfig{Name: "openai"})

	completion, err := p.ParseResponse(responseWith(`{
		"choices": [{"message": {"content": "ok"}}],
		"usage": {"input_tokens": 7, "output_tokens": 3}
	}`))
	require.NoError(t, err)
	assert.Equal(t, 7, completion.Usage.InputTokens)
	assert.Equal(t, 3, completion.Usage.OutputTokens)
	assert.Equal(t, 10, completion.Usage.TotalTokens)
}

func TestParseResponse_Malformed(t *testing.T) {
	p := newTestProvider(t, types.ProviderConfig{Name: "openai"})

	_, err := p.ParseResponse(responseWith(`not json`))
	ge, ok := gwerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, gwerrors.TypeProviderRequest, ge.Type)
	assert.Equal(t, []byte("not json"), ge.RawBody)

	_, err = p.ParseResponse(responseWith(`{"choices": []}`))
	ge, ok = gwerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, gwerrors.TypeProviderRequest, ge.Type)
}

func TestMapError(t *testing.T) {
	p := newTestProvider(t, types.ProviderConfig{Name: "openai"})

	err := p.MapError(429, []byte(`{"error": {"message": "rate limited", "type": "rate_limit_error"}}`))
	ge, ok := gwerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, 429, ge.StatusCode)
	assert.Equal(t, "rate limited", ge.Message)
	assert.True(t, ge.Retryable)

	err = p.MapError(401, []byte(`garbage`))
	ge, ok = gwerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, 401, ge.StatusCode)
	assert.False(t, ge.Retryable)
}
