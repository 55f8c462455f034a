// Shotcaster - Self-Hosted Upload and Screenshot Manager
// Copyright 2026 Shotcaster Contributors
// SPDX-License-Identifier: MIT
// https://github.com/shotcaster/shotcaster

package geo

import (
	"time"

	"github.com/shotcaster/shotcaster/internal/models"
)

// lruEntry is a node in the resolution cache's recency list.
type lruEntry struct {
	key       string
	value     models.GeoResult
	prev      *lruEntry
	next      *lruEntry
	expiresAt time.Time
}

// lruCache is a capacity- and TTL-bounded map of IP to GeoResult with O(1)
// Get, Add, and eviction. A doubly-linked list tracks recency; a map provides
// lookup. Expired entries are dropped lazily on access.
//
// Not safe for concurrent use; the owning Cache serializes access.
type lruCache struct {
	capacity int
	ttl      time.Duration

	items map[string]*lruEntry

	// head.next is the most recently used, tail.prev the least.
	head *lruEntry
	tail *lruEntry
}

func newLRUCache(capacity int, ttl time.Duration) *lruCache {
	if capacity <= 0 {
		capacity = 5000
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	c := &lruCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*lruEntry, capacity),
		head:     &lruEntry{},
		tail:     &lruEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// get returns the entry for key if present and unexpired, promoting it to
// most recently used.
func (c *lruCache) get(key string) (models.GeoResult, bool) {
	entry, exists := c.items[key]
	if !exists {
		return models.GeoResult{}, false
	}

	if time.Now().After(entry.expiresAt) {
		c.removeEntry(entry)
		return models.GeoResult{}, false
	}

	c.moveToFront(entry)
	return entry.value, true
}

// add inserts or replaces an entry. Expiry derives from the result's CachedAt
// so TTL survives snapshot round-trips. The least recently used entries are
// evicted when capacity is exceeded.
func (c *lruCache) add(value models.GeoResult) {
	expiresAt := value.CachedAt.Add(c.ttl)

	if entry, exists := c.items[value.IP]; exists {
		entry.value = value
		entry.expiresAt = expiresAt
		c.moveToFront(entry)
		return
	}

	entry := &lruEntry{
		key:       value.IP,
		value:     value,
		expiresAt: expiresAt,
	}
	c.addToFront(entry)
	c.items[value.IP] = entry

	for len(c.items) > c.capacity {
		c.evictOldest()
	}
}

func (c *lruCache) len() int {
	return len(c.items)
}

func (c *lruCache) clear() {
	c.items = make(map[string]*lruEntry, c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// snapshot returns all unexpired entries keyed by IP, for disk persistence.
func (c *lruCache) snapshot() map[string]models.GeoResult {
	now := time.Now()
	out := make(map[string]models.GeoResult, len(c.items))
	for key, entry := range c.items {
		if now.After(entry.expiresAt) {
			continue
		}
		out[key] = entry.value
	}
	return out
}

func (c *lruCache) addToFront(entry *lruEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *lruCache) moveToFront(entry *lruEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.addToFront(entry)
}

func (c *lruCache) removeEntry(entry *lruEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
}

func (c *lruCache) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
}
