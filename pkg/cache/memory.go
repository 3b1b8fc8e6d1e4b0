package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"websites-content-system/pkg/models"
)

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryCache keeps JSON-encoded trees in process memory, so callers never
// share node pointers with the cache.
type MemoryCache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string, dst *models.ProjectTree) (bool, error) {
	k := prefixedKey(key)
	c.mu.RLock()
	entry, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if c.now().After(entry.expires) {
		c.mu.Lock()
		delete(c.entries, k)
		c.mu.Unlock()
		return false, nil
	}
	if err := json.Unmarshal(entry.data, dst); err != nil {
		return false, fmt.Errorf("decode cached tree %s: %w", key, err)
	}
	return true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, tree models.ProjectTree) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode tree %s: %w", key, err)
	}
	c.mu.Lock()
	c.entries[prefixedKey(key)] = memoryEntry{data: data, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, prefixedKey(key))
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Available() bool { return true }

func (c *MemoryCache) Kind() string { return "MemoryCache" }
