// Package cache memoizes compliance reports between generations with a
// TTL map. Report windows are immutable once closed, so a short TTL is
// only there to bound staleness for in-progress windows.
package cache

import (
	"sync"
	"time"
)

// sweepFloor bounds how often the janitor wakes up when the TTL is very
// short, so a millisecond TTL does not turn into a busy loop.
const sweepFloor = time.Second

type item[T any] struct {
	value    T
	deadline time.Time
}

// InMemory is a thread-safe TTL cache keyed by string.
type InMemory[T any] struct {
	mu  sync.RWMutex
	m   map[string]item[T]
	ttl time.Duration
}

// New creates a cache whose entries expire ttl after Set. A background
// janitor sweeps expired entries; reads also evict lazily.
func New[T any](ttl time.Duration) *InMemory[T] {
	c := &InMemory[T]{
		m:   make(map[string]item[T]),
		ttl: ttl,
	}
	go c.sweep()
	return c
}

// Get returns the cached value for key. Expired entries are removed on
// the spot and reported as a miss.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	it, ok := c.m[key]
	c.mu.RUnlock()

	if ok && time.Now().Before(it.deadline) {
		return it.value, true
	}
	if ok {
		c.mu.Lock()
		// Re-check under the write lock: Set may have refreshed it.
		if cur, still := c.m[key]; still && !time.Now().Before(cur.deadline) {
			delete(c.m, key)
		}
		c.mu.Unlock()
	}
	var zero T
	return zero, false
}

// Set stores value under key for the configured TTL.
func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	c.m[key] = item[T]{value: value, deadline: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Delete drops key if present.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}

// Len reports the number of entries currently held, expired or not.
func (c *InMemory[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

func (c *InMemory[T]) sweep() {
	interval := c.ttl
	if interval < sweepFloor {
		interval = sweepFloor
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for now := range ticker.C {
		c.mu.Lock()
		for k, it := range c.m {
			if !now.Before(it.deadline) {
				delete(c.m, k)
			}
		}
		c.mu.Unlock()
	}
}
