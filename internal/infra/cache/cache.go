// Package cache provides bounded in-memory caches.
// Entries expire after a TTL and the least recently used entry is evicted
// once the size limit is reached.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultSize is used when a non-positive size is requested.
const DefaultSize = 1000

// InMemory is a thread-safe LRU cache with TTL.
type InMemory[T any] struct {
	lru *expirable.LRU[string, T]
}

// New creates a cache holding at most size entries, each living for ttl.
// A non-positive ttl disables expiry; size bounds the cache either way.
func New[T any](size int, ttl time.Duration) *InMemory[T] {
	if size <= 0 {
		size = DefaultSize
	}
	return &InMemory[T]{
		lru: expirable.NewLRU[string, T](size, nil, ttl),
	}
}

// Get retrieves a value from the cache. Returns false if not found or expired.
func (c *InMemory[T]) Get(key string) (T, bool) {
	return c.lru.Get(key)
}

// Set stores a value in the cache, evicting the oldest entry when full.
func (c *InMemory[T]) Set(key string, value T) {
	c.lru.Add(key, value)
}

// Delete removes a value from the cache.
func (c *InMemory[T]) Delete(key string) {
	c.lru.Remove(key)
}

// Len returns the number of live entries.
func (c *InMemory[T]) Len() int {
	return c.lru.Len()
}
