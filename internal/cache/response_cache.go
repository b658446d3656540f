package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResponseCache stores rendered read-side HTTP responses. Failures degrade to
// serving uncached; callers never treat a cache error as fatal.
type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResponseCache returns a redis-backed response cache.
func NewResponseCache(client *redis.Client, ttl time.Duration) *ResponseCache {
	return &ResponseCache{client: client, ttl: ttl}
}

func (c *ResponseCache) key(suffix string) string {
	return fmt.Sprintf("cache:%s", suffix)
}

// Get returns the cached payload, or ok=false on miss or error.
func (c *ResponseCache) Get(ctx context.Context, suffix string) ([]byte, bool) {
	data, err := c.client.Get(ctx, c.key(suffix)).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set caches the payload for the configured TTL, best effort.
func (c *ResponseCache) Set(ctx context.Context, suffix string, payload []byte) {
	_ = c.client.Set(ctx, c.key(suffix), payload, c.ttl).Err()
}
