package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// PointsCache is a Redis-backed app.PointsCache shared by every instance.
// Entries expire after ttl so a lost invalidation heals on its own.
type PointsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPointsCache(client *redis.Client, ttl time.Duration) *PointsCache {
	return &PointsCache{client: client, ttl: ttl}
}

func (c *PointsCache) Get(ctx context.Context, userID string) (int, bool, error) {
	raw, err := c.client.Get(ctx, c.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	points, err := strconv.Atoi(raw)
	if err != nil {
		// Corrupt entry; treat as a miss and let the next write replace it.
		_ = c.client.Del(ctx, c.key(userID)).Err()
		return 0, false, nil
	}
	return points, true, nil
}

func (c *PointsCache) Add(ctx context.Context, userID string, points int) error {
	return c.client.SetNX(ctx, c.key(userID), points, c.ttl).Err()
}

func (c *PointsCache) Set(ctx context.Context, userID string, points int) error {
	return c.client.Set(ctx, c.key(userID), points, c.ttl).Err()
}

func (c *PointsCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, c.key(userID)).Err()
}

func (c *PointsCache) key(userID string) string {
	return "trivia:points:" + userID
}
