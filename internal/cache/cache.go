// Package cache wraps an expiring LRU behind a small typed surface so the
// callers above it never touch eviction mechanics directly.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a bounded, TTL-expiring, string-keyed cache. It is safe for
// concurrent use. Entries fall out either when the TTL elapses or when the
// capacity forces eviction of the least recently used entry.
type Cache[V any] struct {
	lru *expirable.LRU[string, V]
}

// New builds a cache holding at most capacity entries, each living for ttl.
func New[V any](capacity int, ttl time.Duration) *Cache[V] {
	return &Cache[V]{lru: expirable.NewLRU[string, V](capacity, nil, ttl)}
}

// Get returns the cached value for key and whether it was present and fresh.
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.lru.Get(key)
}

// Set stores value under key, refreshing its TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.lru.Add(key, value)
}

// Delete drops the entry for key if present.
func (c *Cache[V]) Delete(key string) {
	c.lru.Remove(key)
}

// InvalidateAll drops every entry.
func (c *Cache[V]) InvalidateAll() {
	c.lru.Purge()
}

// Len reports the number of live entries.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}
