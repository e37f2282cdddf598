package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache wraps the Redis client with the handful of operations the
// relay needs. A nil *RedisCache is valid and behaves as a no-op cache.
type RedisCache struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisCache creates a new Redis cache client
func NewRedisCache(addr, password string, db int) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		timeout: 500 * time.Millisecond,
	}
}

func (c *RedisCache) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Get retrieves a value; a missing key yields nil, nil.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

// Set stores a value in Redis with TTL
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}
	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisCache) Exists(ctx context.Context, key string) bool {
	if c == nil {
		return false
	}
	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	count, _ := c.client.Exists(ctx, key).Result()
	return count > 0
}

// SetAddWithMarker adds member to a set and writes its TTL marker key in the
// same round trip.
func (c *RedisCache) SetAddWithMarker(ctx context.Context, setKey, member, markerKey string, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, setKey, member)
		p.Set(ctx, markerKey, "1", ttl)
		return nil
	})
	return err
}

// SetRemoveWithMarker is the inverse of SetAddWithMarker.
func (c *RedisCache) SetRemoveWithMarker(ctx context.Context, setKey, member, markerKey string) error {
	if c == nil {
		return nil
	}
	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SRem(ctx, setKey, member)
		p.Del(ctx, markerKey)
		return nil
	})
	return err
}

func (c *RedisCache) SetMembers(ctx context.Context, key string) ([]string, error) {
	if c == nil {
		return nil, nil
	}
	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	return c.client.SMembers(ctx, key).Result()
}

func (c *RedisCache) SetCard(ctx context.Context, key string) (int64, error) {
	if c == nil {
		return 0, nil
	}
	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	return c.client.SCard(ctx, key).Result()
}

// Ping checks if Redis is alive
func (c *RedisCache) Ping(ctx context.Context) error {
	if c == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
