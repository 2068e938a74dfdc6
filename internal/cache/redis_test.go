package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewRedisStoreWithClient(client, "test", time.Hour)
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func TestRedisStore_GetSet(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)

	data, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute, nil))
	data, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), data)
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Second, nil))

	mr.FastForward(2 * time.Second)

	data, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestRedisStore_DeleteByTag(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)

	tags := []string{"provider:openai", "model:gpt-4o"}
	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Minute, tags))
	require.NoError(t, store.Set(ctx, "k2", []byte("v2"), time.Minute, []string{"provider:gemini"}))

	require.NoError(t, store.DeleteByTag(ctx, "provider:openai"))

	data, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = store.Get(ctx, "k2")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)

	// Deleting an unknown tag is a no-op.
	require.NoError(t, store.DeleteByTag(ctx, "provider:unknown"))
}

func TestRedisStore_Flush(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Minute, []string{"provider:openai"}))
	require.NoError(t, store.Set(ctx, "k2", []byte("v2"), time.Minute, nil))
	require.NoError(t, store.Flush(ctx))

	for _, k := range []string{"k1", "k2"} {
		data, err := store.Get(ctx, k)
		require.NoError(t, err)
		assert.Nil(t, data)
	}
}
