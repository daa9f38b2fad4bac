package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// RedisRepliedStore stores replied IDs as expiring Redis keys.
type RedisRepliedStore struct {
	client redisClient
	prefix string
	ttl    time.Duration
}

// NewRedisRepliedStore initializes a Redis-backed RepliedStore.
func NewRedisRepliedStore(addr, prefix string, ttl time.Duration) *RedisRepliedStore {
	return newRedisRepliedStore(redis.NewClient(&redis.Options{Addr: addr}), prefix, ttl)
}

func newRedisRepliedStore(client redisClient, prefix string, ttl time.Duration) *RedisRepliedStore {
	return &RedisRepliedStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Close closes the Redis client.
func (s *RedisRepliedStore) Close() error {
	return s.client.Close()
}

// MarkReplied sets the key if absent; false means another run already replied.
func (s *RedisRepliedStore) MarkReplied(ctx context.Context, id string) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+id, "1", s.ttl).Result()
}

// HasReplied checks for the key.
func (s *RedisRepliedStore) HasReplied(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
