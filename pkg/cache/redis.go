package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a cache backed by a Redis server, for deployments where several
// hosts share one registry cache. Redis handles TTL expiry natively, so
// entries are stored as raw values with a per-key expiration.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a Redis-backed cache. The prefix is prepended to every
// key to keep depscope entries separate from other users of the server.
func NewRedis(addr, prefix string) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: prefix,
	}
}

// Get retrieves a value from Redis.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores a value in Redis with the given TTL.
func (c *Redis) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, data, ttl).Err()
}

// Delete removes a value from Redis.
func (c *Redis) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}

// Close closes the underlying Redis connection.
func (c *Redis) Close() error { return c.client.Close() }

var _ Cache = (*Redis)(nil)
