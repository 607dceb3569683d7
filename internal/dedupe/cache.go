// Package dedupe tracks recently processed message keys so the worker can
// skip the simulate-and-write cost of a redelivered identical message. The
// storage write is idempotent either way; the cache only saves work.
package dedupe

import (
	"crypto/sha1"
	"encoding/hex"
	"sync"
	"time"
)

// Key derives the cache key for a delivered message. The text hash is part
// of the key so two different payloads that happen to share (tenant, log)
// are never conflated; only a true redelivery is skipped.
func Key(tenantID, logID, text string) string {
	sum := sha1.Sum([]byte(text))
	return tenantID + "|" + logID + "|" + hex.EncodeToString(sum[:])
}

type entry struct {
	key string
	ts  time.Time
}

// Cache is a capacity- and TTL-bounded set of processed message keys.
type Cache struct {
	mu       sync.Mutex
	items    map[string]time.Time
	order    []entry
	capacity int
	ttl      time.Duration
}

// NewCache creates a cache with the provided capacity and ttl.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		items:    make(map[string]time.Time, capacity),
		order:    make([]entry, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Seen reports whether the key was recorded inside the ttl window. It does
// not record the key; call Record after a successful write.
func (c *Cache) Seen(key string) bool {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if ts, ok := c.items[key]; ok {
		return now.Sub(ts) <= c.ttl
	}
	return false
}

// Record marks a key as processed.
func (c *Cache) Record(key string) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = now
	c.order = append(c.order, entry{key: key, ts: now})
	c.compact(now)
}

func (c *Cache) compact(now time.Time) {
	cutoff := now.Add(-c.ttl)

	for len(c.order) > 0 && (len(c.items) > c.capacity || c.order[0].ts.Before(cutoff)) {
		oldest := c.order[0]
		c.order = c.order[1:]

		if ts, ok := c.items[oldest.key]; ok && ts == oldest.ts {
			delete(c.items, oldest.key)
		}
	}
}
