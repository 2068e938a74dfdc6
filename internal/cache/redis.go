package cache

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis. Tags are kept as sets alongside
// the entries so DeleteByTag never scans the keyspace.
type RedisStore struct {
	client     goredis.UniversalClient
	namespace  string
	defaultTTL time.Duration
}

// RedisStoreConfig holds configuration for RedisStore.
type RedisStoreConfig struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	Namespace  string        `yaml:"namespace"`   // key namespace prefix
	DefaultTTL time.Duration `yaml:"default_ttl"` // default: 1 hour
}

// NewRedisStore creates a Redis cache store from config.
func NewRedisStore(cfg RedisStoreConfig) *RedisStore {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStoreWithClient(client, cfg.Namespace, cfg.DefaultTTL)
}

// NewRedisStoreWithClient wraps an existing Redis client.
func NewRedisStoreWithClient(client goredis.UniversalClient, namespace string, defaultTTL time.Duration) *RedisStore {
	if namespace == "" {
		namespace = "modelrelay"
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &RedisStore{
		client:     client,
		namespace:  namespace,
		defaultTTL: defaultTTL,
	}
}

func (s *RedisStore) key(key string) string {
	return s.namespace + ":" + key
}

func (s *RedisStore) tagKey(tag string) string {
	return s.namespace + ":tag:" + tag
}

// Get retrieves a value. Returns nil, nil on miss.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set stores a value with TTL and registers it under each tag set. Tag
// sets outlive individual entries; stale members are tolerated because
// DeleteByTag deletes are idempotent.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(key), value, ttl)
	for _, tag := range tags {
		pipe.SAdd(ctx, s.tagKey(tag), s.key(key))
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Delete removes a single key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// DeleteByTag removes every key in the tag's set, then the set itself.
func (s *RedisStore) DeleteByTag(ctx context.Context, tag string) error {
	members, err := s.client.SMembers(ctx, s.tagKey(tag)).Result()
	if err != nil && err != goredis.Nil {
		return err
	}

	pipe := s.client.TxPipeline()
	if len(members) > 0 {
		pipe.Del(ctx, members...)
	}
	pipe.Del(ctx, s.tagKey(tag))
	_, err = pipe.Exec(ctx)
	return err
}

// Flush removes all entries in this namespace.
func (s *RedisStore) Flush(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.namespace+":*", 500).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks backend health.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
