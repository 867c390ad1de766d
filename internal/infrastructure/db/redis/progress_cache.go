package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kakitori/kakitori-api/internal/api/metrics"
	"github.com/kakitori/kakitori-api/internal/core/domain"
)

const defaultProgressTTL = 5 * time.Minute

// ProgressCache stores computed progress as JSON.
// Key format: progress:<user_id>
type ProgressCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProgressCache creates a ProgressCache. If ttl <= 0, defaultProgressTTL is used.
func NewProgressCache(client *redis.Client, ttl time.Duration) *ProgressCache {
	if ttl <= 0 {
		ttl = defaultProgressTTL
	}
	return &ProgressCache{client: client, ttl: ttl}
}

// Get returns the cached progress, or nil on a miss.
func (c *ProgressCache) Get(ctx context.Context, userID string) ([]domain.CategoryProgress, error) {
	raw, err := c.client.Get(ctx, progressKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ProgressCacheTotal.WithLabelValues("miss").Inc()
		return nil, nil
	}
	if err != nil {
		metrics.ProgressCacheTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("progress cache get: %w", err)
	}

	var progress []domain.CategoryProgress
	if err := json.Unmarshal(raw, &progress); err != nil {
		metrics.ProgressCacheTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("progress cache decode: %w", err)
	}
	metrics.ProgressCacheTotal.WithLabelValues("hit").Inc()
	return progress, nil
}

func (c *ProgressCache) Set(ctx context.Context, userID string, progress []domain.CategoryProgress) error {
	raw, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("progress cache encode: %w", err)
	}
	return c.client.Set(ctx, progressKey(userID), raw, c.ttl).Err()
}

func (c *ProgressCache) Delete(ctx context.Context, userID string) error {
	return c.client.Del(ctx, progressKey(userID)).Err()
}

func progressKey(userID string) string {
	return "progress:" + userID
}
