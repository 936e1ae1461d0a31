// Package cache holds the admin list cache. Every write to the admins
// collection must call Invalidate; entries also expire after a fixed TTL.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/raushankrgupta/gait-speed-service/models"
)

// AdminListCache caches the result of listing all admins
type AdminListCache interface {
	// Get returns the cached list and true when a fresh entry exists.
	Get(ctx context.Context) ([]models.Admin, bool)
	Set(ctx context.Context, admins []models.Admin)
	Invalidate(ctx context.Context)
}

// MemoryAdminListCache keeps the list in process memory
type MemoryAdminListCache struct {
	mu       sync.RWMutex
	ttl      time.Duration
	data     []models.Admin
	storedAt time.Time
	now      func() time.Time
}

func NewMemoryAdminListCache(ttl time.Duration) *MemoryAdminListCache {
	return &MemoryAdminListCache{ttl: ttl, now: time.Now}
}

func (c *MemoryAdminListCache) Get(ctx context.Context) ([]models.Admin, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.data == nil || c.now().Sub(c.storedAt) >= c.ttl {
		return nil, false
	}
	out := make([]models.Admin, len(c.data))
	copy(out, c.data)
	return out, true
}

func (c *MemoryAdminListCache) Set(ctx context.Context, admins []models.Admin) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make([]models.Admin, len(admins))
	copy(c.data, admins)
	c.storedAt = c.now()
}

func (c *MemoryAdminListCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = nil
	c.storedAt = time.Time{}
}
