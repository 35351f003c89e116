package hxpage

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes rendered fragments by widget identity and fetch-input
// fingerprint. It is process-wide and shared by concurrent requests.
//
// Concurrent first access to one key is single-flight: exactly one compute
// runs and every waiter receives its result. An entry, once stored, is never
// replaced or mutated. There is no expiry; entries live as long as the Cache.
// Errors are returned to all waiters but not stored.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Fragment
	group   singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Entries int
	Hits    int64
	Misses  int64
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Fragment)}
}

// Get returns the stored fragment for key.
func (c *Cache) Get(key string) (Fragment, bool) {
	c.mu.RLock()
	f, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
	}
	return f, ok
}

// GetOrCompute returns the stored fragment for key, computing and storing it
// on a miss. The bool reports whether the fragment came from the cache or a
// computation shared with another caller rather than from this caller's own
// compute.
func (c *Cache) GetOrCompute(key string, compute func() (Fragment, error)) (Fragment, bool, error) {
	if f, ok := c.Get(key); ok {
		return f, true, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		// Another flight may have stored the key since our Get.
		c.mu.RLock()
		f, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			c.hits.Add(1)
			return f, nil
		}

		c.misses.Add(1)
		f, err := compute()
		if err != nil {
			return Fragment{}, err
		}
		return c.store(key, f), nil
	})
	if err != nil {
		return Fragment{}, false, err
	}
	return v.(Fragment), shared, nil
}

// store inserts f unless key is already present; the first writer wins and
// the stored value is returned.
func (c *Cache) store(key string, f Fragment) Fragment {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		return existing
	}
	c.entries[key] = f
	return f
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Entries: c.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

// Purge drops every entry. In-flight computations still store their result.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Fragment)
}
