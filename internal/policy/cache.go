package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Loader is anything that can resolve a policy for an organization.
type Loader interface {
	Get(ctx context.Context, orgID string) (Config, error)
}

// Cache fronts a Loader with a redis JSON cache so policy lookups do
// not hit Postgres on every scan.
type Cache struct {
	client *redis.Client
	loader Loader
	ttl    time.Duration
}

// NewCache creates a cache with the given TTL.
func NewCache(client *redis.Client, loader Loader, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{client: client, loader: loader, ttl: ttl}
}

// Get returns the cached policy or loads and caches it.
func (c *Cache) Get(ctx context.Context, orgID string) (Config, error) {
	key := cacheKey(orgID)
	if c.client != nil {
		if raw, err := c.client.Get(ctx, key).Result(); err == nil {
			var cfg Config
			if err := json.Unmarshal([]byte(raw), &cfg); err == nil {
				return cfg, nil
			}
		}
	}
	cfg, err := c.loader.Get(ctx, orgID)
	if err != nil {
		return Config{}, err
	}
	if c.client != nil {
		if data, err := json.Marshal(cfg); err == nil {
			_ = c.client.Set(ctx, key, data, c.ttl).Err()
		}
	}
	return cfg, nil
}

func cacheKey(orgID string) string {
	return fmt.Sprintf("policy:%s", orgID)
}
