package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache is a bounded LRU. A zero TTL never expires entries.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryCache creates an LRU holding at most maxEntries values (minimum 1)
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &MemoryCache{lru: expirable.NewLRU[string, []byte](maxEntries, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := c.lru.Get(key)
	return value, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte) error {
	c.lru.Add(key, value)
	return nil
}

// Len returns the number of stored entries, expired ones not yet swept included
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

func (c *MemoryCache) Name() string { return "memory" }

func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return nil
}
