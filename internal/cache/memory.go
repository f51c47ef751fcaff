package cache

import (
	"context"
	"sync"
	"time"

	"github.com/promptvault/promptvault/internal/resolver"
)

type memoryEntry struct {
	doc       *resolver.ResolvedDocument
	expiresAt time.Time
}

// MemoryCache is a process-local document cache, used in tests and when no
// Redis is configured. Writes to the same key are idempotent because both
// writers computed the same document.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[resolver.DocumentKey]memoryEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[resolver.DocumentKey]memoryEntry)}
}

func (c *MemoryCache) Get(_ context.Context, key resolver.DocumentKey) (*resolver.ResolvedDocument, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, nil
	}
	return e.doc, nil
}

func (c *MemoryCache) Put(_ context.Context, key resolver.DocumentKey, doc *resolver.ResolvedDocument, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{doc: doc, expiresAt: expiresAt}
	c.mu.Unlock()
	return nil
}

// Len reports the number of live entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
