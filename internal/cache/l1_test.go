package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestL1Tier_PutGet(t *testing.T) {
	t1 := newL1Tier(10, time.Minute)
	t1.put("k1", entry{Value: []byte("v1")})

	e, ok := t1.get("k1")
	assert.True(t, ok)
	assert.Equal(t, []byte("v1"), e.Value)
}

func TestL1Tier_MissForUnknownKey(t *testing.T) {
	t1 := newL1Tier(10, time.Minute)
	_, ok := t1.get("missing")
	assert.False(t, ok)
}

func TestL1Tier_EvictsOldestWhenOverCapacity(t *testing.T) {
	t1 := newL1Tier(2, time.Minute)
	t1.put("k1", entry{Value: []byte("v1")})
	t1.put("k2", entry{Value: []byte("v2")})
	t1.put("k3", entry{Value: []byte("v3")})

	_, ok := t1.get("k1")
	assert.False(t, ok, "oldest entry should have been evicted")

	_, ok = t1.get("k3")
	assert.True(t, ok)
}

func TestL1Tier_RemoveDeletesEntry(t *testing.T) {
	t1 := newL1Tier(10, time.Minute)
	t1.put("k1", entry{Value: []byte("v1")})
	t1.remove("k1")

	_, ok := t1.get("k1")
	assert.False(t, ok)
}

func TestL1Tier_ClearEmptiesCache(t *testing.T) {
	t1 := newL1Tier(10, time.Minute)
	t1.put("k1", entry{Value: []byte("v1")})
	t1.put("k2", entry{Value: []byte("v2")})
	t1.clear()

	_, ok := t1.get("k1")
	assert.False(t, ok)
	_, ok = t1.get("k2")
	assert.False(t, ok)
}

func TestL1Tier_PruneOlderThanRemovesStaleEntriesOnly(t *testing.T) {
	t1 := newL1Tier(10, time.Minute)
	now := time.Now()
	t1.put("old", entry{Value: []byte("v1"), LastAccess: now.Add(-time.Hour)})
	t1.put("fresh", entry{Value: []byte("v2"), LastAccess: now})

	t1.pruneOlderThan(now.Add(-time.Minute))

	_, ok := t1.get("old")
	assert.False(t, ok)
	_, ok = t1.get("fresh")
	assert.True(t, ok)
}

func TestL1Tier_DefaultsAppliedForZeroValues(t *testing.T) {
	t1 := newL1Tier(0, 0)
	assert.Equal(t, DefaultL1TTL, t1.ttl)
	assert.NotNil(t, t1.cache)
}
