// Package cache keeps sender display names in Redis so history pages do
// not hit the user table for every request.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// NameCache caches user display names. A miss is not an error; callers
// fall back to storage and backfill.
type NameCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewNameCache creates a cache over an existing Redis client.
func NewNameCache(client *redis.Client, prefix string, ttl time.Duration) *NameCache {
	return &NameCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: slog.Default(),
	}
}

// GetNames returns the cached names for ids plus the ids that missed.
// Redis errors degrade to a full miss; the request still succeeds from
// storage.
func (c *NameCache) GetNames(ctx context.Context, ids []string) (map[string]string, []string) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.prefix + id
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("Name cache read failed", "error", err)
		return map[string]string{}, ids
	}

	found := make(map[string]string, len(ids))
	var missed []string
	for i, v := range vals {
		s, ok := v.(string)
		if !ok || s == "" {
			missed = append(missed, ids[i])
			continue
		}
		found[ids[i]] = s
	}
	return found, missed
}

// SetNames backfills resolved names. Write failures are logged and
// ignored.
func (c *NameCache) SetNames(ctx context.Context, names map[string]string) {
	if len(names) == 0 {
		return
	}

	pipe := c.client.Pipeline()
	for id, name := range names {
		pipe.Set(ctx, c.prefix+id, name, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Name cache write failed", "error", err)
	}
}

// Ping verifies the Redis connection.
func (c *NameCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
