package modelrelay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoHandler answers with the user message so tests can verify result
// ordering.
func echoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.Unmarshal(body, &payload)
		content := ""
		for _, m := range payload.Messages {
			if m.Role == "user" {
				content = m.Content
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "echo:" + content}}},
			"usage":   map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		})
	}
}

func TestCompleteBatch_PreservesOrder(t *testing.T) {
	srv := httptest.NewServer(echoHandler())
	defer srv.Close()

	c := newTestClient(t, srv.URL, WithBatchConcurrency(8))

	specs := make([]*RequestSpec, 20)
	for i := range specs {
		specs[i] = &RequestSpec{Prompt: fmt.Sprintf("msg-%02d", i)}
	}

	results := c.CompleteBatch(context.Background(), specs)
	require.Len(t, results, 20)
	for i, resp := range results {
		require.NotNil(t, resp)
		assert.Equal(t, fmt.Sprintf("echo:msg-%02d", i), resp.Content)
	}
}

func TestCompleteBatch_SlotIsolation(t *testing.T) {
	srv := httptest.NewServer(echoHandler())
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	results := c.CompleteBatch(context.Background(), []*RequestSpec{
		{Prompt: "first"},
		{Prompt: "second", Preset: "missing"},
		{Prompt: "third"},
	})
	require.Len(t, results, 3)

	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.NotEmpty(t, results[1].Error)
	assert.True(t, results[2].OK())
	assert.Equal(t, "echo:third", results[2].Content)
}

func TestCompleteBatch_Empty(t *testing.T) {
	c := newTestClient(t, "http://unused.invalid")
	assert.Empty(t, c.CompleteBatch(context.Background(), nil))
}

func TestCompleteBatch_Pacing(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		echoHandler()(w, r)
	}))
	defer srv.Close()

	// 2 immediate (burst), then ~50 per second.
	c := newTestClient(t, srv.URL,
		WithBatchConcurrency(8),
		WithBatchPacing(50, 2),
	)

	specs := make([]*RequestSpec, 6)
	for i := range specs {
		specs[i] = &RequestSpec{Prompt: fmt.Sprintf("p-%d", i)}
	}

	start := time.Now()
	results := c.CompleteBatch(context.Background(), specs)
	elapsed := time.Since(start)

	require.Len(t, results, 6)
	for _, r := range results {
		assert.True(t, r.OK())
	}
	assert.EqualValues(t, 6, calls.Load())
	// Four paced requests at 20ms spacing.
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
}

func TestCompleteBatch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(echoHandler())
	defer srv.Close()

	c := newTestClient(t, srv.URL, WithBatchPacing(1, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := c.CompleteBatch(ctx, []*RequestSpec{
		{Prompt: "a"}, {Prompt: "b"},
	})
	require.Len(t, results, 2)
	for _, r := range results {
		require.NotNil(t, r)
		assert.False(t, r.OK())
	}
}