package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"slotkeeper/backend/internal/domain"
)

type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

const scanBatch = 100

// BusyCache keeps per-integration busy lists for a short time so repeated
// availability checks do not hit the providers.
type BusyCache struct {
	client kv
	ttl    time.Duration
}

func NewBusyCache(client *redis.Client, ttl time.Duration) *BusyCache {
	return &BusyCache{client: client, ttl: ttl}
}

func (c *BusyCache) Get(ctx context.Context, key string) ([]domain.BusyInterval, bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var busy []domain.BusyInterval
	if err := json.Unmarshal(b, &busy); err != nil {
		return nil, false, err
	}
	return busy, true, nil
}

func (c *BusyCache) Set(ctx context.Context, key string, busy []domain.BusyInterval) error {
	if busy == nil {
		busy = []domain.BusyInterval{}
	}
	b, err := json.Marshal(busy)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, b, c.ttl).Err()
}

// Invalidate deletes every key that starts with prefix.
func (c *BusyCache) Invalidate(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
