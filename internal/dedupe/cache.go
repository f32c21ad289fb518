// ABOUTME: Thread-safe TTL cache for suppressing webhook redeliveries.
// ABOUTME: A platform message ID is ingested at most once per TTL window.

package dedupe

import (
	"sync"
	"time"
)

// Cache tracks recently seen message keys so a redelivered webhook event
// is acknowledged without being appended to the log a second time.
// Size-limited: when full, the oldest keys are dropped during sweep.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a dedupe cache with the given TTL and maximum size.
// A background goroutine sweeps expired entries once a minute.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]time.Time),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Check reports whether the key was marked within the TTL. Check and
// Mark are separate so a caller can process the event between them and
// mark only on success; a failed attempt leaves the key unmarked and a
// redelivery gets processed instead of being swallowed.
func (c *Cache) Check(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	at, ok := c.seen[key]
	return ok && time.Since(at) < c.ttl
}

// Mark records the key as processed.
func (c *Cache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.seen) >= c.maxSize {
		c.evictExpiredLocked()
	}
	c.seen[key] = time.Now()
}

// Len returns the number of tracked keys, expired entries included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// evictExpiredLocked drops expired entries; if none are expired yet, it
// drops the oldest entry so Mark never grows the map past maxSize.
func (c *Cache) evictExpiredLocked() {
	now := time.Now()
	var oldestKey string
	var oldestAt time.Time
	dropped := false

	for key, at := range c.seen {
		if now.Sub(at) >= c.ttl {
			delete(c.seen, key)
			dropped = true
			continue
		}
		if oldestKey == "" || at.Before(oldestAt) {
			oldestKey, oldestAt = key, at
		}
	}
	if !dropped && oldestKey != "" {
		delete(c.seen, oldestKey)
	}
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.evictExpiredLocked()
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}

// Close stops the background sweep. Safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
