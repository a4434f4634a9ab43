package retry

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter tracks attempt counts per attempt key ("TYPE-NUMBER").
type Counter interface {
	// Incr advances the counter and returns the new value.
	Incr(ctx context.Context, key string) (int, error)

	// Current returns the counter value, zero when the key is unknown.
	Current(ctx context.Context, key string) (int, error)

	// Reset clears the counter, typically after a confirmed match.
	Reset(ctx context.Context, key string) error
}

const attemptKeyPrefix = "retry:attempts:"

// RedisCounter is the production counter for distributed deployments. The TTL
// bounds how long an abandoned verification holds its attempt count.
type RedisCounter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCounter(client *redis.Client, ttl time.Duration) *RedisCounter {
	return &RedisCounter{client: client, ttl: ttl}
}

func (c *RedisCounter) Incr(ctx context.Context, key string) (int, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, attemptKeyPrefix+key)
	pipe.ExpireNX(ctx, attemptKeyPrefix+key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (c *RedisCounter) Current(ctx context.Context, key string) (int, error) {
	n, err := c.client.Get(ctx, attemptKeyPrefix+key).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (c *RedisCounter) Reset(ctx context.Context, key string) error {
	return c.client.Del(ctx, attemptKeyPrefix+key).Err()
}

// MemoryCounter is the single-process fallback.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int)}
}

func (c *MemoryCounter) Incr(_ context.Context, key string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	return c.counts[key], nil
}

func (c *MemoryCounter) Current(_ context.Context, key string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key], nil
}

func (c *MemoryCounter) Reset(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, key)
	return nil
}
