package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestL3(t *testing.T) *l3Tier {
	t.Helper()
	dir := t.TempDir()
	tier, err := newL3Tier(filepath.Join(dir, "l3.db"), filepath.Join(dir, "queries.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { tier.Close() })
	return tier
}

func TestL3Tier_PutGetRoundTrips(t *testing.T) {
	tier := openTestL3(t)
	require.NoError(t, tier.put("k1", entry{Value: []byte("hello"), IndexVersion: 7}))

	e, ok := tier.get("k1")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), e.Value)
	assert.Equal(t, int64(7), e.IndexVersion)
	assert.Equal(t, int64(1), e.HitCount)
}

func TestL3Tier_MissForUnknownKey(t *testing.T) {
	tier := openTestL3(t)
	_, ok := tier.get("missing")
	assert.False(t, ok)
}

func TestL3Tier_PutOverwritesExistingKey(t *testing.T) {
	tier := openTestL3(t)
	require.NoError(t, tier.put("k1", entry{Value: []byte("v1")}))
	require.NoError(t, tier.put("k1", entry{Value: []byte("v2")}))

	e, ok := tier.get("k1")
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), e.Value)
}

func TestL3Tier_RemoveDeletesEntry(t *testing.T) {
	tier := openTestL3(t)
	require.NoError(t, tier.put("k1", entry{Value: []byte("v1")}))
	require.NoError(t, tier.remove("k1"))

	_, ok := tier.get("k1")
	assert.False(t, ok)
}

func TestL3Tier_ClearRemovesAllEntries(t *testing.T) {
	tier := openTestL3(t)
	require.NoError(t, tier.put("k1", entry{Value: []byte("v1")}))
	require.NoError(t, tier.put("k2", entry{Value: []byte("v2")}))
	require.NoError(t, tier.clear())

	_, ok := tier.get("k1")
	assert.False(t, ok)
	_, ok = tier.get("k2")
	assert.False(t, ok)
}

func TestL3Tier_PruneOlderThanRemovesStaleEntries(t *testing.T) {
	tier := openTestL3(t)
	require.NoError(t, tier.put("k1", entry{Value: []byte("v1")}))
	require.NoError(t, tier.pruneOlderThan(time.Now().Add(time.Hour)))

	_, ok := tier.get("k1")
	assert.False(t, ok)
}

func TestL3Tier_LogQueryAndTopQueries(t *testing.T) {
	tier := openTestL3(t)
	ctx := context.Background()

	require.NoError(t, tier.logQuery(ctx, "parse function", 5, []string{"f1", "f2"}, 12))
	require.NoError(t, tier.logQuery(ctx, "parse function", 5, []string{"f1", "f2"}, 9))
	require.NoError(t, tier.logQuery(ctx, "annotate file", 3, []string{"f3"}, 20))

	top, err := tier.topQueries(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "parse function", top[0])

	count, avgLatency, err := tier.queryStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.InDelta(t, float64(12+9+20)/3, avgLatency, 0.01)
}

func TestEncodeDecodeResultIDs(t *testing.T) {
	ids := []string{"f1", "f2", "f3"}
	assert.Equal(t, ids, decodeResultIDs(encodeResultIDs(ids)))
	assert.Nil(t, decodeResultIDs(""))
}
