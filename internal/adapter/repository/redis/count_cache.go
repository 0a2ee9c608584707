package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/event-counter/internal/domain"
)

const countKeyPrefix = "events:count:"

// CountCache implements domain.CountCache on Redis string keys with a TTL.
type CountCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCountCache creates a cache whose entries expire after ttl.
func NewCountCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *CountCache {
	return &CountCache{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "redis_count_cache"),
	}
}

// Get returns the cached count for filter. ok is false on a miss.
func (c *CountCache) Get(ctx context.Context, filter domain.CountFilter) (uint64, bool, error) {
	count, err := c.client.Get(ctx, countKey(filter)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read cached count: %w", err)
	}
	return count, true, nil
}

// Set stores count for filter.
func (c *CountCache) Set(ctx context.Context, filter domain.CountFilter, count uint64) error {
	if err := c.client.Set(ctx, countKey(filter), strconv.FormatUint(count, 10), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache count: %w", err)
	}
	return nil
}

// Ping checks connectivity. Used by the health endpoint.
func (c *CountCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// countKey length-prefixes the free-form fields so that no two filters share a key.
func countKey(f domain.CountFilter) string {
	return fmt.Sprintf("%s%d:%s:%d:%s:%d:%d", countKeyPrefix,
		len(f.ExternalID), f.ExternalID, len(f.Key), f.Key, f.LowerID, f.UpperID)
}
