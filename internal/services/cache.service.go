package services

import (
	"sync"
	"time"

	"hostwatch/internal/models"
)

// HostStatusCache serves /api/host without hitting gopsutil on every request
type HostStatusCache struct {
	mu        sync.RWMutex
	status    *models.HostStatus
	cacheTime time.Time
	ttl       time.Duration
	fetch     func() (*models.HostStatus, error)
	now       func() time.Time
}

// NewHostStatusCache creates a cache over GetHostStatus
func NewHostStatusCache(ttl time.Duration) *HostStatusCache {
	return newHostStatusCache(ttl, GetHostStatus, time.Now)
}

func newHostStatusCache(ttl time.Duration, fetch func() (*models.HostStatus, error), now func() time.Time) *HostStatusCache {
	if ttl <= 0 {
		ttl = time.Second
	}
	return &HostStatusCache{ttl: ttl, fetch: fetch, now: now}
}

// isValid reports whether the cached value is fresh. Caller holds c.mu.
func (c *HostStatusCache) isValid() bool {
	return c.status != nil && c.now().Sub(c.cacheTime) < c.ttl
}

// Get returns cached host status if valid, otherwise fetches fresh
func (c *HostStatusCache) Get() (*models.HostStatus, error) {
	c.mu.RLock()
	if c.isValid() {
		defer c.mu.RUnlock()
		return c.status, nil
	}
	c.mu.RUnlock()

	// Fetch outside the lock; concurrent misses may both fetch.
	status, err := c.fetch()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.status = status
	c.cacheTime = c.now()
	c.mu.Unlock()

	return status, nil
}
