package edge

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultMaxEntries = 10000

type memoryEntry struct {
	resp    *Response
	expires time.Time
}

type memoryCache struct {
	lru *lru.Cache[string, memoryEntry]
	now func() time.Time
}

// NewMemory returns an in-process LRU cache holding at most maxEntries
// responses. maxEntries <= 0 selects DefaultMaxEntries.
func NewMemory(maxEntries int) Cache {
	return newMemory(maxEntries, time.Now)
}

func newMemory(maxEntries int, now func() time.Time) *memoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	// lru.New only fails on a non-positive size.
	c, _ := lru.New[string, memoryEntry](maxEntries)
	return &memoryCache{lru: c, now: now}
}

func (c *memoryCache) Name() string { return "memory" }

func (c *memoryCache) Close() error {
	c.lru.Purge()
	return nil
}

// Match treats an expired entry as a miss and drops it.
func (c *memoryCache) Match(ctx context.Context, url string) (*Response, bool, error) {
	e, ok := c.lru.Get(url)
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expires) {
		c.lru.Remove(url)
		return nil, false, nil
	}
	return e.resp.Clone(), true, nil
}

func (c *memoryCache) Put(ctx context.Context, url string, resp *Response, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.lru.Add(url, memoryEntry{resp: resp.Clone(), expires: c.now().Add(ttl)})
	return nil
}

// Len reports the number of entries, expired ones included.
func (c *memoryCache) Len() int {
	return c.lru.Len()
}
