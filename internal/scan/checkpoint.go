package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// checkpointTTL keeps re-verification pings visible long enough for
// the downstream absence marker to evaluate them after the grace
// window closes.
const checkpointTTL = 12 * time.Hour

// RedisCheckpoints stores break re-verification pings in redis.
type RedisCheckpoints struct {
	client *redis.Client
}

// NewRedisCheckpoints creates the store.
func NewRedisCheckpoints(client *redis.Client) *RedisCheckpoints {
	return &RedisCheckpoints{client: client}
}

// Mark records that the person re-verified during the break.
func (c *RedisCheckpoints) Mark(ctx context.Context, personID, slotID, date string) error {
	key := fmt.Sprintf("reverify:%s:%s:%s", personID, slotID, date)
	return c.client.Set(ctx, key, time.Now().UTC().Format(time.RFC3339), checkpointTTL).Err()
}
