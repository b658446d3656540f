package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/denzueee/gonsters-backend-assessment/internal/models"
)

// ErrCacheMiss is returned when the key is absent or has expired.
var ErrCacheMiss = errors.New("cache miss")

// MachineCache keeps short-TTL copies of registry records in redis. Expiry is
// enforced server-side; nothing here ever outlives the TTL.
type MachineCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMachineCache returns a redis-backed cache.
func NewMachineCache(client *redis.Client, ttl time.Duration) *MachineCache {
	return &MachineCache{client: client, ttl: ttl}
}

func (c *MachineCache) key(id string) string {
	return fmt.Sprintf("machine_metadata:%s", id)
}

// Get returns the cached record or ErrCacheMiss.
func (c *MachineCache) Get(ctx context.Context, id string) (*models.Machine, error) {
	result, err := c.client.Get(ctx, c.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var m models.Machine
	if err := json.Unmarshal([]byte(result), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Set caches the record for the configured TTL.
func (c *MachineCache) Set(ctx context.Context, m *models.Machine) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(m.ID), data, c.ttl).Err()
}
