package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyGenerator_Generate(t *testing.T) {
	gen := NewKeyGenerator("modelrelay")

	t.Run("basic key shape", func(t *testing.T) {
		key := gen.Generate("", "openai", "gpt-4o", "hello", nil)
		assert.Contains(t, key, "modelrelay:openai:gpt-4o:")
		// SHA-256 produces 64 hex characters after the namespace prefix.
		assert.Len(t, key, len("modelrelay:openai:gpt-4o:")+64)
	})

	t.Run("deterministic", func(t *testing.T) {
		opts := map[string]any{"temperature": 0.7, "max_tokens": 100}
		key1 := gen.Generate("", "openai", "gpt-4o", "hello", opts)
		key2 := gen.Generate("", "openai", "gpt-4o", "hello", opts)
		assert.Equal(t, key1, key2)
	})

	t.Run("insertion order does not matter", func(t *testing.T) {
		a := map[string]any{"temperature": 0.7, "max_tokens": 100, "top_p": 0.9}
		b := map[string]any{"top_p": 0.9, "max_tokens": 100, "temperature": 0.7}
		assert.Equal(t,
			gen.Generate("", "openai", "gpt-4o", "hello", a),
			gen.Generate("", "openai", "gpt-4o", "hello", b),
		)
	})

	t.Run("timeout does not affect key", func(t *testing.T) {
		base := map[string]any{"temperature": 0.7}
		withTimeout := map[string]any{"temperature": 0.7, "timeout": 30}
		assert.Equal(t,
			gen.Generate("", "openai", "gpt-4o", "hello", base),
			gen.Generate("", "openai", "gpt-4o", "hello", withTimeout),
		)
	})

	t.Run("stream and async do not affect key", func(t *testing.T) {
		base := map[string]any{"temperature": 0.7}
		noisy := map[string]any{"temperature": 0.7, "stream": true, "async": true}
		assert.Equal(t,
			gen.Generate("", "openai", "gpt-4o", "hello", base),
			gen.Generate("", "openai", "gpt-4o", "hello", noisy),
		)
	})

	t.Run("temperature affects key", func(t *testing.T) {
		a := map[string]any{"temperature": 0.7}
		b := map[string]any{"temperature": 0.9}
		assert.NotEqual(t,
			gen.Generate("", "openai", "gpt-4o", "hello", a),
			gen.Generate("", "openai", "gpt-4o", "hello", b),
		)
	})

	t.Run("prompt affects key", func(t *testing.T) {
		assert.NotEqual(t,
			gen.Generate("", "openai", "gpt-4o", "hello", nil),
			gen.Generate("", "openai", "gpt-4o", "world", nil),
		)
	})

	t.Run("provider and model namespace the key", func(t *testing.T) {
		assert.NotEqual(t,
			gen.Generate("", "openai", "gpt-4o", "hello", nil),
			gen.Generate("", "grok", "gpt-4o", "hello", nil),
		)
		assert.NotEqual(t,
			gen.Generate("", "openai", "gpt-4o", "hello", nil),
			gen.Generate("", "openai", "gpt-4o-mini", "hello", nil),
		)
	})

	t.Run("per-call namespace isolates entries", func(t *testing.T) {
		key := gen.Generate("tenant-1", "openai", "gpt-4o", "hello", nil)
		assert.Contains(t, key, "modelrelay:tenant-1:openai:gpt-4o:")
		assert.NotEqual(t, key, gen.Generate("tenant-2", "openai", "gpt-4o", "hello", nil))
	})
}
