// Package cache avoids redundant upstream calls by storing normalized
// responses under deterministic keys. It supports in-memory and Redis
// backends with TTL expiry and tag-based bulk invalidation.
package cache

import (
	"context"
	"time"

	"github.com/modelrelay/modelrelay/pkg/types"
)

// Entry is the cached value for one request.
type Entry struct {
	Content   string         `json:"content"`
	Usage     types.Usage    `json:"usage"`
	Cost      float64        `json:"cost"`
	Meta      map[string]any `json:"meta,omitempty"`
	Timestamp int64          `json:"timestamp"` // unix seconds when cached
}

// Stats holds cache counters for observability. They are exposed, not
// persisted.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

// Store is the backend contract. Implementations must be safe for
// concurrent use; the pipeline never assumes single-writer access.
type Store interface {
	// Get retrieves a value. Returns nil, nil on miss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL and invalidation tags.
	// A zero TTL uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error

	// Delete removes a single key.
	Delete(ctx context.Context, key string) error

	// DeleteByTag removes every key carrying the tag.
	DeleteByTag(ctx context.Context, tag string) error

	// Flush removes all entries.
	Flush(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Invalidation tags attached to every entry.
func entryTags(provider, model string) []string {
	return []string{
		"provider:" + provider,
		"model:" + model,
		"provider-model:" + provider + ":" + model,
	}
}
