package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lborres/farewatch/core"
)

const (
	DefaultTTL     = 5 * time.Minute
	DefaultMaxSize = 500
)

var _ core.CacheWithStats = (*InMemoryCache)(nil)

// InMemoryCache implements an in-memory session cache
type InMemoryCache struct {
	cache   map[string]*cachedRecord
	mu      sync.RWMutex
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	// counters
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	deletes   atomic.Int64
	evictions atomic.Int64
}

type cachedRecord struct {
	session  core.Session
	cachedAt time.Time
}

// NewInMemoryCache creates a new in-memory cache
func NewInMemoryCache(c core.CacheConfig) *InMemoryCache {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.MaxSize <= 0 {
		c.MaxSize = DefaultMaxSize
	}

	return &InMemoryCache{
		cache:   make(map[string]*cachedRecord),
		ttl:     c.TTL,
		maxSize: c.MaxSize,
		now:     time.Now,
	}
}

// Get retrieves a copy of a cached session
func (c *InMemoryCache) Get(_ context.Context, tokenHash string) (*core.Session, error) {
	c.mu.RLock()
	record, exists := c.cache[tokenHash]
	c.mu.RUnlock()

	if !exists {
		c.misses.Add(1)
		return nil, core.ErrCacheNotFound
	}

	if c.now().Sub(record.cachedAt) > c.ttl {
		c.misses.Add(1)
		c.mu.Lock()
		if cur, ok := c.cache[tokenHash]; ok && cur == record {
			delete(c.cache, tokenHash)
			c.evictions.Add(1)
		}
		c.mu.Unlock()
		return nil, core.ErrCacheNotFound
	}

	c.hits.Add(1)
	s := record.session
	return &s, nil
}

// Set stores a copy of session
func (c *InMemoryCache) Set(_ context.Context, tokenHash string, session *core.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache[tokenHash]; !exists && len(c.cache) >= c.maxSize {
		c.evictOldestLocked()
	}

	c.cache[tokenHash] = &cachedRecord{
		session:  *session,
		cachedAt: c.now(),
	}

	c.sets.Add(1)
	return nil
}

func (c *InMemoryCache) evictOldestLocked() {
	var (
		oldestKey string
		oldestAt  time.Time
	)
	for k, r := range c.cache {
		if oldestKey == "" || r.cachedAt.Before(oldestAt) {
			oldestKey, oldestAt = k, r.cachedAt
		}
	}
	if oldestKey != "" {
		delete(c.cache, oldestKey)
		c.evictions.Add(1)
	}
}

// Delete removes a session from cache
func (c *InMemoryCache) Delete(_ context.Context, tokenHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, existed := c.cache[tokenHash]; existed {
		delete(c.cache, tokenHash)
		c.deletes.Add(1)
	}
	return nil
}

// Clear removes all sessions from cache
func (c *InMemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*cachedRecord)
	return nil
}

// Len returns the number of cached sessions
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Stats returns cache statistics
func (c *InMemoryCache) Stats() core.CacheStats {
	return core.CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Sets:      c.sets.Load(),
		Deletes:   c.deletes.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.Len(),
		TTL:       c.ttl,
	}
}
