package assets

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Entry is a cached asset.
type Entry struct {
	Data      []byte
	FetchedAt time.Time
}

// Cache stores asset bytes keyed by URL. Implementations must be safe for
// concurrent use. Put takes ownership of e.Data.
type Cache interface {
	Get(url string) (Entry, bool)
	Put(url string, e Entry)
	Len() int
	Bytes() int64
	// Capacity returns the maximum number of entries, 0 when unbounded.
	Capacity() int
}

// MemoryCache is an unbounded in-memory Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	bytes   int64
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

func (c *MemoryCache) Get(url string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[url]
	return e, ok
}

func (c *MemoryCache) Put(url string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries[url]; ok {
		c.bytes -= int64(len(old.Data))
	}
	c.entries[url] = e
	c.bytes += int64(len(e.Data))
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) Bytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bytes
}

func (c *MemoryCache) Capacity() int { return 0 }

// LRUCache bounds the number of cached URLs, evicting the least recently
// used entry when full.
type LRUCache struct {
	mu       sync.Mutex
	lru      *lru.Cache[string, Entry]
	bytes    int64
	capacity int
}

// NewLRUCache returns a cache holding at most capacity entries.
func NewLRUCache(capacity int) (*LRUCache, error) {
	c := &LRUCache{capacity: capacity}
	l, err := lru.NewWithEvict[string, Entry](capacity, func(_ string, e Entry) {
		// called with c.mu held by Put
		c.bytes -= int64(len(e.Data))
		cacheEvictionsTotal.Inc()
	})
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

func (c *LRUCache) Get(url string) (Entry, bool) {
	return c.lru.Get(url)
}

func (c *LRUCache) Put(url string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.lru.Peek(url); ok {
		c.bytes -= int64(len(old.Data))
	}
	c.lru.Add(url, e)
	c.bytes += int64(len(e.Data))
}

func (c *LRUCache) Len() int { return c.lru.Len() }

func (c *LRUCache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

func (c *LRUCache) Capacity() int { return c.capacity }

// NewCache returns an LRUCache when capacity > 0 and a MemoryCache otherwise.
func NewCache(capacity int) (Cache, error) {
	if capacity > 0 {
		return NewLRUCache(capacity)
	}
	return NewMemoryCache(), nil
}
