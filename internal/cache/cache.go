// Package cache persists enrichment results between runs, keyed by
// normalized title. A present entry is authoritative for its key and
// suppresses any further external call, negative (not-found) entries
// included.
package cache

import (
	"context"
	"sync"

	"github.com/reeldata/marquee/internal/model"
)

// Stats summarizes cache contents.
type Stats struct {
	Total    int `json:"total" yaml:"total"`
	Matched  int `json:"matched" yaml:"matched"`
	NotFound int `json:"not_found" yaml:"not_found"`
}

// Cache is the durable key-value store consulted before any external
// metadata call. Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the entry for the key, and whether one exists.
	Get(ctx context.Context, key string) (*model.CacheEntry, bool, error)
	// Put stores or replaces the entry for entry.Key.
	Put(ctx context.Context, entry model.CacheEntry) error
	// Stats reports entry counts by status.
	Stats(ctx context.Context) (*Stats, error)
	// Purge removes all entries, returning the number removed.
	Purge(ctx context.Context) (int, error)
	Close() error
}

// MemoryCache is an in-process Cache used in tests and dry runs.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]model.CacheEntry
}

// NewMemory creates an empty MemoryCache.
func NewMemory() *MemoryCache {
	return &MemoryCache{entries: make(map[string]model.CacheEntry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*model.CacheEntry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &entry, true, nil
}

func (c *MemoryCache) Put(_ context.Context, entry model.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Key] = entry
	return nil
}

func (c *MemoryCache) Stats(_ context.Context) (*Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := &Stats{Total: len(c.entries)}
	for _, e := range c.entries {
		switch e.Status {
		case model.StatusMatched:
			stats.Matched++
		case model.StatusNotFound:
			stats.NotFound++
		}
	}
	return stats, nil
}

func (c *MemoryCache) Purge(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]model.CacheEntry)
	return n, nil
}

func (c *MemoryCache) Close() error { return nil }
