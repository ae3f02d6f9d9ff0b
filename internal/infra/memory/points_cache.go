package memory

import (
	"context"
	"sync"
	"time"
)

// PointsCache is an in-process app.PointsCache with per-entry TTL.
type PointsCache struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.Mutex
	entries map[string]cachedPoints
}

type cachedPoints struct {
	points    int
	expiresAt time.Time
}

func NewPointsCache(ttl time.Duration) *PointsCache {
	return &PointsCache{
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[string]cachedPoints),
	}
}

func (c *PointsCache) Get(_ context.Context, userID string) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[userID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return 0, false, nil
	}
	return entry.points, true, nil
}

func (c *PointsCache) Add(_ context.Context, userID string, points int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[userID]; ok && entry.expiresAt.After(c.clock()) {
		return nil
	}
	c.setLocked(userID, points)
	return nil
}

func (c *PointsCache) Set(_ context.Context, userID string, points int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(userID, points)
	return nil
}

func (c *PointsCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	return nil
}

func (c *PointsCache) setLocked(userID string, points int) {
	c.entries[userID] = cachedPoints{points: points, expiresAt: c.clock().Add(c.ttl)}
}
