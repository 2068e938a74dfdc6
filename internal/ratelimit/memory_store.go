package ratelimit

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore implements CounterStore in-process using go-cache.
// Add is atomic create-if-absent and IncrementInt64 is atomic on existing
// keys, so the Add-then-Increment sequence never loses updates: the loser
// of a concurrent Add race falls through to Increment.
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore creates an in-process counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: gocache.New(gocache.NoExpiration, 10*time.Minute),
	}
}

// Incr atomically increments the counter, initializing it with TTL if
// absent.
func (s *MemoryStore) Incr(ctx context.Context, key string, n int64, ttl time.Duration) (int64, error) {
	for {
		if err := s.cache.Add(key, n, ttl); err == nil {
			return n, nil
		}
		if v, err := s.cache.IncrementInt64(key, n); err == nil {
			return v, nil
		}
		// Key expired between Add and Increment; retry.
	}
}

// Get returns the counter value, 0 if absent or expired.
func (s *MemoryStore) Get(ctx context.Context, key string) (int64, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return 0, nil
	}
	count, ok := v.(int64)
	if !ok {
		return 0, nil
	}
	return count, nil
}
