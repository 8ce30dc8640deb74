package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kjstillabower/climate-insights/internal/models"
)

// Cache stores verified principals keyed by token digest.
// Get returns cached data if present and not expired, Set stores data with TTL.
type Cache interface {
	Get(ctx context.Context, key string) (models.Principal, bool, error)
	Set(ctx context.Context, key string, value models.Principal, ttl time.Duration) error
	Close() error
}

// sweepInterval is the minimum time between full expiry sweeps run from Set.
const sweepInterval = time.Minute

// InMemoryCache implements Cache using a mutex-guarded map with TTL-based expiration.
// Expired entries are removed on access, and by a sweep that Set runs at most once per
// sweepInterval.
type InMemoryCache struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	data      map[string]cacheEntry
	lastSweep time.Time
}

type cacheEntry struct {
	value     models.Principal
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache on the wall clock.
func NewInMemoryCache() *InMemoryCache {
	return NewInMemoryCacheWithClock(clockwork.NewRealClock())
}

// NewInMemoryCacheWithClock creates an in-memory cache that reads time from clock.
func NewInMemoryCacheWithClock(clock clockwork.Clock) *InMemoryCache {
	return &InMemoryCache{
		clock:     clock,
		data:      make(map[string]cacheEntry),
		lastSweep: clock.Now(),
	}
}

// Get returns (principal, true, nil) on a hit and (zero, false, nil) on miss or expiration.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.Principal, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return models.Principal{}, false, nil
	}
	if !c.clock.Now().Before(entry.expiresAt) {
		delete(c.data, key)
		return models.Principal{}, false, nil
	}
	return entry.value, true, nil
}

// Set stores the principal until ttl elapses. A non-positive ttl is a no-op.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.Principal, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	if now.Sub(c.lastSweep) >= sweepInterval {
		c.sweepLocked(now)
	}
	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: now.Add(ttl),
	}
	return nil
}

func (c *InMemoryCache) sweepLocked(now time.Time) {
	for key, entry := range c.data {
		if !now.Before(entry.expiresAt) {
			delete(c.data, key)
		}
	}
	c.lastSweep = now
}

// Len returns the number of stored entries, expired ones included.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

func (c *InMemoryCache) Close() error { return nil }
