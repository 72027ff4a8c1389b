package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/graph-bundling-service/backend/config"
)

func TestKey(t *testing.T) {
	a := Key("dataset", "job", "0,1,0,1")
	assert.Len(t, a, 64)
	assert.Equal(t, a, Key("dataset", "job", "0,1,0,1"))
	assert.NotEqual(t, a, Key("dataset", "job", "0,1,0,2"))
	// separators keep part boundaries distinct
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
}

func TestMemoryCacheHitMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(4, time.Minute)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("png")))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("png"), got)

	require.NoError(t, c.Set(ctx, "k", []byte("png2")))
	got, _, _ = c.Get(ctx, "k")
	assert.Equal(t, []byte("png2"), got)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, 0)

	require.NoError(t, c.Set(ctx, "a", []byte("1")))
	require.NoError(t, c.Set(ctx, "b", []byte("2")))
	_, ok, _ := c.Get(ctx, "a") // a is now most recent
	require.True(t, ok)
	require.NoError(t, c.Set(ctx, "c", []byte("3")))

	_, ok, _ = c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok, _ = c.Get(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(8, 50*time.Millisecond)

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	_, ok, _ := c.Get(ctx, "k")
	assert.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, "k")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMemoryCacheCloseDropsEntries(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0, 0)

	require.NoError(t, c.Set(ctx, "a", []byte("1")))
	require.NoError(t, c.Set(ctx, "b", []byte("2")))
	assert.Equal(t, 1, c.Len(), "capacity is at least one")

	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.Len())
}

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, config.CacheConfig{TTL: time.Minute, MaxEntries: 16})
	require.NoError(t, err)
	assert.Equal(t, "memory", c.Name())
	assert.NoError(t, c.Close())

	_, err = New(ctx, config.CacheConfig{RedisURL: "not a url", TTL: time.Minute})
	assert.ErrorContains(t, err, "failed to parse redis url")
}
