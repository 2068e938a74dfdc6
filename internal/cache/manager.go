package cache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/modelrelay/modelrelay/pkg/types"
)

// Manager provides high-level caching for resolved requests: key
// derivation, serialization, and tag bookkeeping. Backend errors are
// non-fatal; a failing backend degrades to a cache miss and the call
// proceeds upstream.
type Manager struct {
	store      Store
	keyGen     *KeyGenerator
	defaultTTL time.Duration
	logger     *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
	errors atomic.Int64
}

// ManagerConfig holds configuration for the cache manager.
type ManagerConfig struct {
	DefaultTTL time.Duration // default: 1 hour
	KeyPrefix  string        // default: "modelrelay"
}

// NewManager creates a cache manager over the given store.
func NewManager(store Store, cfg ManagerConfig, logger *slog.Logger) *Manager {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "modelrelay"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:      store,
		keyGen:     NewKeyGenerator(cfg.KeyPrefix),
		defaultTTL: cfg.DefaultTTL,
		logger:     logger,
	}
}

// Lookup attempts to retrieve a cached entry for the resolved request.
// Returns nil on miss, on backend error, or on a corrupt entry.
func (m *Manager) Lookup(ctx context.Context, cfg *types.ResolvedConfig, namespace string) *Entry {
	if m.store == nil {
		return nil
	}

	key := m.keyGen.Generate(namespace, cfg.Provider, cfg.Model, cacheablePrompt(cfg), cfg.Options)
	data, err := m.store.Get(ctx, key)
	if err != nil {
		m.errors.Add(1)
		m.logger.Warn("cache get failed, treating as miss", "error", err)
		return nil
	}
	if data == nil {
		m.misses.Add(1)
		return nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		m.misses.Add(1)
		return nil
	}

	m.hits.Add(1)
	return &entry
}

// Store writes an entry for the resolved request. A zero TTL uses the
// manager default. Backend errors are logged and swallowed.
func (m *Manager) Store(ctx context.Context, cfg *types.ResolvedConfig, entry *Entry, ttl time.Duration, namespace string) {
	if m.store == nil || entry == nil {
		return
	}
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().Unix()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		m.errors.Add(1)
		return
	}

	key := m.keyGen.Generate(namespace, cfg.Provider, cfg.Model, cacheablePrompt(cfg), cfg.Options)
	if err := m.store.Set(ctx, key, data, ttl, entryTags(cfg.Provider, cfg.Model)); err != nil {
		m.errors.Add(1)
		m.logger.Warn("cache set failed", "error", err)
		return
	}
	m.sets.Add(1)
}

// Invalidate removes entries by tag. An empty tag flushes everything.
func (m *Manager) Invalidate(ctx context.Context, tag string) error {
	if m.store == nil {
		return nil
	}
	if tag == "" {
		return m.store.Flush(ctx)
	}
	return m.store.DeleteByTag(ctx, tag)
}

// Stats returns current cache counters.
func (m *Manager) Stats() Stats {
	hits := m.hits.Load()
	misses := m.misses.Load()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return Stats{
		Hits:    hits,
		Misses:  misses,
		Sets:    m.sets.Load(),
		Errors:  m.errors.Load(),
		HitRate: hitRate,
	}
}

// Close releases the backing store.
func (m *Manager) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}

// cacheablePrompt folds the system prompt into the hashed content so two
// requests differing only in system prompt never collide.
func cacheablePrompt(cfg *types.ResolvedConfig) string {
	if cfg.SystemPrompt == "" {
		return cfg.Prompt
	}
	return cfg.SystemPrompt + "\x00" + cfg.Prompt
}
