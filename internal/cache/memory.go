package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is an in-process Store backed by go-cache with a secondary
// tag index for bulk invalidation.
type MemoryStore struct {
	cache      *gocache.Cache
	defaultTTL time.Duration

	mu      sync.Mutex
	byTag   map[string]map[string]struct{} // tag -> keys
	tagsFor map[string][]string            // key -> tags
}

// MemoryStoreConfig holds configuration for MemoryStore.
type MemoryStoreConfig struct {
	DefaultTTL      time.Duration // default: 1 hour
	CleanupInterval time.Duration // default: 5 minutes
}

// NewMemoryStore creates an in-memory cache store.
func NewMemoryStore(cfg MemoryStoreConfig) *MemoryStore {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	s := &MemoryStore{
		cache:      gocache.New(cfg.DefaultTTL, cfg.CleanupInterval),
		defaultTTL: cfg.DefaultTTL,
		byTag:      make(map[string]map[string]struct{}),
		tagsFor:    make(map[string][]string),
	}

	// Keep the tag index in sync with TTL evictions.
	s.cache.OnEvicted(func(key string, _ any) {
		s.mu.Lock()
		s.untagLocked(key)
		s.mu.Unlock()
	})

	return s
}

// Get retrieves a value. Returns nil, nil on miss.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, nil
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Set stores a value with TTL and tags.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	data := make([]byte, len(value))
	copy(data, value)

	s.mu.Lock()
	s.untagLocked(key)
	for _, tag := range tags {
		keys, ok := s.byTag[tag]
		if !ok {
			keys = make(map[string]struct{})
			s.byTag[tag] = keys
		}
		keys[key] = struct{}{}
	}
	if len(tags) > 0 {
		s.tagsFor[key] = append([]string(nil), tags...)
	}
	s.mu.Unlock()

	s.cache.Set(key, data, ttl)
	return nil
}

// Delete removes a single key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.cache.Delete(key)
	s.mu.Lock()
	s.untagLocked(key)
	s.mu.Unlock()
	return nil
}

// DeleteByTag removes every key carrying the tag.
func (s *MemoryStore) DeleteByTag(ctx context.Context, tag string) error {
	s.mu.Lock()
	keys := make([]string, 0, len(s.byTag[tag]))
	for key := range s.byTag[tag] {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Flush removes all entries.
func (s *MemoryStore) Flush(ctx context.Context) error {
	s.cache.Flush()
	s.mu.Lock()
	s.byTag = make(map[string]map[string]struct{})
	s.tagsFor = make(map[string][]string)
	s.mu.Unlock()
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int {
	return s.cache.ItemCount()
}

// untagLocked drops key from the tag index. Caller holds s.mu.
func (s *MemoryStore) untagLocked(key string) {
	for _, tag := range s.tagsFor[key] {
		if keys, ok := s.byTag[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(s.byTag, tag)
			}
		}
	}
	delete(s.tagsFor, key)
}
