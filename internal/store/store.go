package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// Entry is one cached payload with the time its data was fetched upstream.
type Entry struct {
	Payload     []byte    `json:"payload"`
	LastFetched time.Time `json:"last_fetched"`
}

// Age reports how old the entry is at now.
func (e Entry) Age(now time.Time) time.Duration {
	if e.LastFetched.IsZero() {
		return time.Duration(math.MaxInt64)
	}
	return now.Sub(e.LastFetched)
}

// Cache is the cache collaborator used by the dashboard orchestration layer.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error
}

type storedEntry struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryCache is an in-process Cache with per-key expiry.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]storedEntry

	// Now is injected for deterministic tests.
	Now func() time.Time
}

// NewMemoryCache creates a memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]storedEntry),
		Now:     time.Now,
	}
}

// Get returns the entry for key unless it is missing or expired.
func (c *MemoryCache) Get(_ context.Context, key string) (Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stored, ok := c.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	if !stored.expiresAt.IsZero() && !c.Now().Before(stored.expiresAt) {
		return Entry{}, false, nil
	}
	return cloneEntry(stored.entry), true, nil
}

// Set stores entry under key. A ttl <= 0 never expires.
func (c *MemoryCache) Set(_ context.Context, key string, entry Entry, ttl time.Duration) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("cache key is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stored := storedEntry{entry: cloneEntry(entry)}
	if ttl > 0 {
		stored.expiresAt = c.Now().Add(ttl)
	}
	c.entries[key] = stored
	return nil
}

// GC deletes expired entries.
func (c *MemoryCache) GC(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, stored := range c.entries {
		if !stored.expiresAt.IsZero() && !now.Before(stored.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Keys returns the live keys in sorted order.
func (c *MemoryCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.Now()
	keys := make([]string, 0, len(c.entries))
	for key, stored := range c.entries {
		if !stored.expiresAt.IsZero() && !now.Before(stored.expiresAt) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func cloneEntry(entry Entry) Entry {
	payload := make([]byte, len(entry.Payload))
	copy(payload, entry.Payload)
	return Entry{
		Payload:     payload,
		LastFetched: entry.LastFetched,
	}
}
