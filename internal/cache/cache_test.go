package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()

	c, err := New(context.Background(), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestCache_SetGetDelete(t *testing.T) {
	c := newTestCache(t)
	key := SummaryKey("u1")

	var out payload
	hit, err := c.Get(key, &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(key, payload{Total: 12.5, Count: 2}))

	hit, err = c.Get(key, &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, payload{Total: 12.5, Count: 2}, out)

	c.Delete(key)
	hit, err = c.Get(key, &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCache_KeysArePerUser(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Set(SummaryKey("u1"), payload{Count: 1}))

	var out payload
	hit, err := c.Get(SummaryKey("u2"), &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCache_Clear(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Set("k", payload{Count: 1}))
	require.NoError(t, c.Clear())

	var out payload
	hit, _ := c.Get("k", &out)
	assert.False(t, hit)
}

func TestCache_SetIfGenerationSkipsAfterDelete(t *testing.T) {
	c := newTestCache(t)
	key := SummaryKey("u1")

	gen := c.Generation(key)
	c.Delete(key)

	stored, err := c.SetIfGeneration(key, gen, payload{Count: 1})
	require.NoError(t, err)
	assert.False(t, stored)

	var out payload
	hit, err := c.Get(key, &out)
	require.NoError(t, err)
	assert.False(t, hit)

	gen = c.Generation(key)
	stored, err = c.SetIfGeneration(key, gen, payload{Count: 2})
	require.NoError(t, err)
	assert.True(t, stored)

	hit, err = c.Get(key, &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 2, out.Count)
}

func TestCache_ClearInvalidatesPendingFills(t *testing.T) {
	c := newTestCache(t)
	key := SummaryKey("u1")

	c.Delete(key)
	gen := c.Generation(key)
	require.NoError(t, c.Clear())

	stored, err := c.SetIfGeneration(key, gen, payload{Count: 1})
	require.NoError(t, err)
	assert.False(t, stored)
}
