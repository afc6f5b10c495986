package cache

import (
	"context"
	"encoding/json"
	"sync"
)

// InMemoryCache implements the Cache interface for an in memory cache.
// Values are stored JSON-encoded so callers never share mutable state.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewInMemoryCache creates an instance of InMemoryCache
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{entries: make(map[string][]byte)}
}

// Get decodes the entry under key into dest.
func (c *InMemoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.RLock()
	data, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value under key.
func (c *InMemoryCache) Set(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[key] = data
	c.mu.Unlock()
	return nil
}

// Delete removes keys.
func (c *InMemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return nil
}

// Len returns the number of entries.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
