// Package ratelimit enforces fixed-window admission control across three
// dimensions: requests per minute, tokens per minute, and requests per
// day, scoped by (provider, model, caller).
package ratelimit

import (
	"context"
	"time"
)

// CounterStore is the backing counter service. Incr must be atomic
// increment-or-initialize; the limiter never serializes access itself.
type CounterStore interface {
	// Incr adds n to the counter, creating it with TTL if absent, and
	// returns the new value.
	Incr(ctx context.Context, key string, n int64, ttl time.Duration) (int64, error)

	// Get returns the current counter value, 0 if absent.
	Get(ctx context.Context, key string) (int64, error)
}
