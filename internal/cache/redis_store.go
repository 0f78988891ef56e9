package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps cache entries in redis for deployments running more than
// one analysis agent. Entries carry a redis expiry as a backstop; the Cache
// layer's own TTL check remains authoritative.
type RedisStore struct {
	client *redis.Client
	maxAge time.Duration
}

// NewRedisStore connects and pings to fail fast on a bad address.
func NewRedisStore(ctx context.Context, addr string, maxAge time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisStore{client: client, maxAge: maxAge}, nil
}

func (s *RedisStore) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *RedisStore) Write(ctx context.Context, key string, data []byte) error {
	// Double the cache TTL so the read path, not redis, decides expiry.
	return s.client.Set(ctx, s.key(key), data, 2*s.maxAge).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) key(key string) string { return "poolscope:cache:" + key }
