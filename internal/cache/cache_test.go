package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T, indexVersion IndexVersionFunc) *Cache {
	t.Helper()
	dir := t.TempDir()
	c, err := Open(dir, Config{L1MaxEntries: 10, L1TTL: time.Minute, L2TTL: time.Minute, L3TTL: time.Minute}, indexVersion)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func waitForAsyncWrite() { time.Sleep(50 * time.Millisecond) }

func TestCache_PutThenGetHitsL1(t *testing.T) {
	c := openTestCache(t, nil)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "k1", []byte("v1")))

	v, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)

	c.statsMu.Lock()
	assert.Equal(t, int64(1), c.hits[1])
	c.statsMu.Unlock()
}

func TestCache_MissIncrementsMissCounter(t *testing.T) {
	c := openTestCache(t, nil)
	_, ok := c.Get(context.Background(), "missing")
	assert.False(t, ok)

	c.statsMu.Lock()
	assert.Equal(t, int64(1), c.misses)
	c.statsMu.Unlock()
}

func TestCache_GetPromotesL3HitUpToL1AndL2(t *testing.T) {
	c := openTestCache(t, nil)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "k1", []byte("v1")))
	waitForAsyncWrite()

	c.l1.remove("k1")
	require.NoError(t, c.l2.remove("k1"))

	v, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)

	_, l2ok := c.l2.get("k1")
	assert.True(t, l2ok, "L3 hit should be promoted up one tier into L2")

	v, ok = c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)

	_, l1ok := c.l1.get("k1")
	assert.True(t, l1ok, "the following L2 hit should be promoted up into L1")
}

func TestCache_StaleIndexVersionIsTreatedAsMiss(t *testing.T) {
	version := int64(1)
	c := openTestCache(t, func(ctx context.Context) (int64, error) { return version, nil })
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "k1", []byte("v1")))

	version = 2 // simulate a re-index bumping the Store's current version

	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok, "entry written against a stale index version must be treated as a miss")
}

func TestCache_TTLExpiredEntryIsTreatedAsMiss(t *testing.T) {
	c := openTestCache(t, nil)
	ctx := context.Background()

	c.l1.put("k1", entry{Value: []byte("v1"), CreatedAt: time.Now().Add(-time.Hour), TTL: time.Minute})

	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok)
}

func TestCache_ClearLevelOneOnlyClearsL1(t *testing.T) {
	c := openTestCache(t, nil)
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "k1", []byte("v1")))
	waitForAsyncWrite()

	require.NoError(t, c.Clear(1))

	_, l1ok := c.l1.get("k1")
	assert.False(t, l1ok)

	_, l3ok := c.l3.get("k1")
	assert.True(t, l3ok, "Clear(1) must not touch L3")
}

func TestCache_ClearZeroClearsEveryTier(t *testing.T) {
	c := openTestCache(t, nil)
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "k1", []byte("v1")))
	waitForAsyncWrite()

	require.NoError(t, c.Clear(0))

	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok)
}

func TestCache_LogQueryDelegatesToL3(t *testing.T) {
	c := openTestCache(t, nil)
	ctx := context.Background()

	require.NoError(t, c.LogQuery(ctx, "find parser", 5, []string{"f1"}, 15))

	count, _, err := c.l3.queryStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
