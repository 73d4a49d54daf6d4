// Package assets fetches viewer assets (images, models) from local files,
// HTTP or S3-compatible storage, caching raw bytes and delivering decoded
// results asynchronously.
package assets

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Observer receives fetch telemetry.
type Observer interface {
	CacheHit(ref string)
	CacheMiss(ref string)
	Fetched(ref string, bytes int, elapsed time.Duration)
}

// Manager fetches assets through a Fetcher, caching results and collapsing
// concurrent fetches of the same reference into one.
type Manager struct {
	fetcher  Fetcher
	cache    *Cache
	group    singleflight.Group
	observer Observer
}

// NewManager creates a manager on top of f. observer may be nil.
func NewManager(f Fetcher, observer Observer) *Manager {
	return &Manager{
		fetcher:  f,
		cache:    NewCache(),
		observer: observer,
	}
}

// Fetch implements Fetcher. Callers sharing an in-flight fetch all receive
// its result; only the first caller's progress func is notified. The shared
// fetch is detached from every caller's ctx, so one caller giving up does not
// fail the others; a cancelled caller returns ctx.Err() right away while the
// fetch runs on and still fills the cache.
func (m *Manager) Fetch(ctx context.Context, ref string, progress ProgressFunc) ([]byte, error) {
	if data, ok := m.cache.Get(ref); ok {
		if m.observer != nil {
			m.observer.CacheHit(ref)
		}
		if progress != nil {
			progress(int64(len(data)), int64(len(data)))
		}
		return data, nil
	}
	if m.observer != nil {
		m.observer.CacheMiss(ref)
	}

	shared := context.WithoutCancel(ctx)
	ch := m.group.DoChan(ref, func() (interface{}, error) {
		start := time.Now()
		data, err := m.fetcher.Fetch(shared, ref, progress)
		if err != nil {
			return nil, err
		}
		m.cache.Set(ref, data)
		if m.observer != nil {
			m.observer.Fetched(ref, len(data), time.Since(start))
		}
		return data, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cache returns the manager's byte cache.
func (m *Manager) Cache() *Cache {
	return m.cache
}

// Close drops all cached data.
func (m *Manager) Close() {
	m.cache.Clear()
}

// Cache is a simple in-memory cache for fetched assets.
type Cache struct {
	data map[string][]byte
	mu   sync.RWMutex

	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
