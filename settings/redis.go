package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps option records in Redis so that several nodes serving the
// same installation share one configuration.
type RedisStore struct {
	c     *redis.Client
	scope Scope
}

// NewRedisStore wraps an existing client.
func NewRedisStore(c *redis.Client, scope Scope) *RedisStore {
	return &RedisStore{c: c, scope: scope}
}

// DialRedisStore connects to the Redis server at addr.
func DialRedisStore(addr string, db int, scope Scope) *RedisStore {
	return NewRedisStore(redis.NewClient(&redis.Options{Addr: addr, DB: db}), scope)
}

func (r *RedisStore) redisKey(key string) string {
	return string(r.scope) + ":" + key
}

func (r *RedisStore) Get(ctx context.Context, key string) (map[string]any, bool, error) {
	b, err := r.c.Get(ctx, r.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("settings: read %s: %w", r.redisKey(key), err)
	}
	record, err := decodeRecord(b)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value map[string]any) error {
	b, err := encodeRecord(value)
	if err != nil {
		return err
	}
	if err := r.c.Set(ctx, r.redisKey(key), b, 0).Err(); err != nil {
		return fmt.Errorf("settings: write %s: %w", r.redisKey(key), err)
	}
	return nil
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.c.Close()
}
