// Package cache is a bounded, in-memory associative store with per-entry
// TTL and FIFO eviction at capacity.
//
// DESIGN: ported from the dual-TTL MemoryStore in the teacher's internal/
// store package, collapsed to the single store-with-one-TTL-per-entry shape
// spec.md §4.C calls for (this proxy's cache entries are resolved-policy
// driven, not a fixed original/compressed pair), and FIFO eviction added —
// the teacher's store never evicted at all, relying purely on TTL expiry,
// which does not bound memory under a high-cardinality key space the way an
// aggregating proxy's per-tool-per-argset keys can.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a bounded TTL+FIFO associative store. Safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	data       map[string]*entry
	order      []string // insertion order, oldest first; drives FIFO eviction
	maxEntries int
}

// New creates a cache bounded to maxEntries. A non-positive maxEntries
// disables the bound (no eviction ever occurs — only TTL expiry applies).
func New(maxEntries int) *Cache {
	return &Cache{
		data:       make(map[string]*entry),
		maxEntries: maxEntries,
	}
}

// Get returns the value for key, or (nil, false) if absent or expired.
// An expired entry is removed lazily on the read that discovers it.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.removeLocked(key)
		return nil, false
	}
	return e.value, true
}

// Has reports whether key is present and unexpired, without returning the
// value.
func (c *Cache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Set stores value under key with the given TTL. Re-inserting an existing
// key replaces its value and expiry in place — it does not move the key's
// position in the FIFO eviction order. Inserting a genuinely new key at
// capacity evicts the oldest-inserted entry first.
func (c *Cache) Set(key string, value any, ttlSeconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(time.Duration(ttlSeconds) * time.Second)

	if e, exists := c.data[key]; exists {
		e.value = value
		e.expiresAt = expiresAt
		return
	}

	if c.maxEntries > 0 && len(c.data) >= c.maxEntries {
		c.evictOldestLocked()
	}

	c.data[key] = &entry{value: value, expiresAt: expiresAt}
	c.order = append(c.order, key)
}

// Delete removes key unconditionally.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]*entry)
	c.order = nil
}

// Cleanup scans and removes every expired entry, returning the count
// removed. Intended to be called on a periodic timer owned by the
// supervisor (spec.md §4.L: once per minute).
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, key := range append([]string(nil), c.order...) {
		e, ok := c.data[key]
		if ok && now.After(e.expiresAt) {
			c.removeLocked(key)
			removed++
		}
	}
	return removed
}

// Size returns the current number of entries, expired or not (expired
// entries are only reaped by Get or Cleanup, consistent with "lazily
// removed" in spec.md §4.C).
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// UpdateConfig changes maxEntries and clears the store, per spec.md §4.C.
func (c *Cache) UpdateConfig(maxEntries int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxEntries = maxEntries
	c.data = make(map[string]*entry)
	c.order = nil
}

// removeLocked deletes key from both the map and the order slice. Callers
// must hold c.mu.
func (c *Cache) removeLocked(key string) {
	if _, ok := c.data[key]; !ok {
		return
	}
	delete(c.data, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// evictOldestLocked removes the single oldest-inserted entry. Callers must
// hold c.mu and must have already verified len(c.order) > 0.
func (c *Cache) evictOldestLocked() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.data, oldest)
}
