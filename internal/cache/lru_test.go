package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tigstore/resource"
)

func TestLRUGetSet(t *testing.T) {
	c := NewLRUBlockCache(1024, nil)

	key := BlockKey{Version: 1, Offset: 0}
	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Set(key, []byte("payload"))
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)
	assert.Equal(t, int64(7), c.Size())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRUBlockCache(32, nil)

	a := BlockKey{Version: 1, Offset: 0}
	b := BlockKey{Version: 1, Offset: 16}
	d := BlockKey{Version: 1, Offset: 32}

	c.Set(a, make([]byte, 16))
	c.Set(b, make([]byte, 16))

	// Touch a so b becomes the eviction candidate.
	_, ok := c.Get(a)
	require.True(t, ok)

	c.Set(d, make([]byte, 16))

	_, ok = c.Get(b)
	assert.False(t, ok)
	_, ok = c.Get(a)
	assert.True(t, ok)
	_, ok = c.Get(d)
	assert.True(t, ok)
}

func TestLRUOversizedNotCached(t *testing.T) {
	c := NewLRUBlockCache(8, nil)
	key := BlockKey{Version: 1, Offset: 0}
	c.Set(key, make([]byte, 9))
	_, ok := c.Get(key)
	assert.False(t, ok)
	assert.Equal(t, int64(0), c.Size())
}

func TestLRUInvalidateVersion(t *testing.T) {
	c := NewLRUBlockCache(1024, nil)

	c.Set(BlockKey{Version: 1, Offset: 0}, []byte("v1"))
	c.Set(BlockKey{Version: 2, Offset: 0}, []byte("v2"))

	c.InvalidateVersion(1)

	_, ok := c.Get(BlockKey{Version: 1, Offset: 0})
	assert.False(t, ok)
	_, ok = c.Get(BlockKey{Version: 2, Offset: 0})
	assert.True(t, ok)
}

func TestLRUResourceAccounting(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 16})
	c := NewLRUBlockCache(1024, rc)

	c.Set(BlockKey{Version: 1, Offset: 0}, make([]byte, 16))
	assert.Equal(t, int64(16), rc.MemoryUsage())

	// Budget exhausted: this record is skipped, not blocked on.
	c.Set(BlockKey{Version: 1, Offset: 32}, make([]byte, 8))
	_, ok := c.Get(BlockKey{Version: 1, Offset: 32})
	assert.False(t, ok)

	require.NoError(t, c.Close())
	assert.Equal(t, int64(0), rc.MemoryUsage())
}
