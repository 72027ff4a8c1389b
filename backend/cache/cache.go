// Package cache stores rendered tiles keyed by dataset, job and viewport.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/graph-bundling-service/backend/config"
)

// Cache is a byte store with per-entry expiry
type Cache interface {
	// Get returns the value and true on a hit
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	// Name identifies the backend in health output
	Name() string
	Close() error
}

// New returns a Redis cache when a URL is configured, otherwise an in-process LRU
func New(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	if cfg.RedisURL == "" {
		log.Info().
			Int("max_entries", cfg.MaxEntries).
			Dur("ttl", cfg.TTL).
			Msg("Using in-memory render cache")
		return NewMemoryCache(cfg.MaxEntries, cfg.TTL), nil
	}

	c, err := NewRedisCache(ctx, cfg.RedisURL, cfg.TTL)
	if err != nil {
		return nil, err
	}
	log.Info().Dur("ttl", cfg.TTL).Msg("Using Redis render cache")
	return c, nil
}

// Key hashes the parts into a fixed-length key
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}
