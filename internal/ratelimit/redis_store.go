package ratelimit

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// incrScript increments a counter and attaches a TTL on first write, in
// one atomic step. INCRBY creates the key without a TTL, so the script
// backfills the expiry whenever it is missing.
const incrScript = `
local v = redis.call('INCRBY', KEYS[1], ARGV[1])
if redis.call('TTL', KEYS[1]) == -1 then
    redis.call('EXPIRE', KEYS[1], ARGV[2])
end
return v
`

// RedisStore implements CounterStore on Redis for multi-process
// deployments.
type RedisStore struct {
	client goredis.UniversalClient
	script *goredis.Script
}

// NewRedisStore wraps a Redis client as a counter store.
func NewRedisStore(client goredis.UniversalClient) *RedisStore {
	return &RedisStore{
		client: client,
		script: goredis.NewScript(incrScript),
	}
}

// Incr atomically increments the counter, initializing its TTL if absent.
func (s *RedisStore) Incr(ctx context.Context, key string, n int64, ttl time.Duration) (int64, error) {
	seconds := int64(ttl.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return s.script.Run(ctx, s.client, []string{key}, n, seconds).Int64()
}

// Get returns the counter value, 0 if absent.
func (s *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	v, err := s.client.Get(ctx, key).Int64()
	if err == goredis.Nil {
		return 0, nil
	}
	return v, err
}
