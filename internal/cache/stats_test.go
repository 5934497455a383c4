package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_AnalyzeReportsHitsMissesAndTopQueries(t *testing.T) {
	c := openTestCache(t, nil)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "k1", []byte("v1")))
	_, _ = c.Get(ctx, "k1")
	_, _ = c.Get(ctx, "missing")

	require.NoError(t, c.LogQuery(ctx, "find parser", 5, []string{"k1"}, 10))
	require.NoError(t, c.LogQuery(ctx, "find parser", 5, []string{"k1"}, 20))

	stats, err := c.Analyze(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.L1Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(2), stats.QueryCount)
	assert.InDelta(t, 15.0, stats.AvgLatencyMs, 0.01)
	assert.Contains(t, stats.TopQueries, "find parser")
}

func TestCache_WarmReplaysTopQueries(t *testing.T) {
	c := openTestCache(t, nil)
	ctx := context.Background()

	require.NoError(t, c.LogQuery(ctx, "frequent query", 5, nil, 5))
	require.NoError(t, c.LogQuery(ctx, "frequent query", 5, nil, 5))
	require.NoError(t, c.LogQuery(ctx, "rare query", 5, nil, 5))

	var replayed []string
	err := c.Warm(ctx, 1, func(_ context.Context, query string) error {
		replayed = append(replayed, query)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"frequent query"}, replayed)
}

func TestCache_WarmPropagatesCallbackError(t *testing.T) {
	c := openTestCache(t, nil)
	ctx := context.Background()
	require.NoError(t, c.LogQuery(ctx, "q1", 5, nil, 5))

	boom := errors.New("runtime unavailable")
	err := c.Warm(ctx, 1, func(_ context.Context, _ string) error { return boom })
	assert.ErrorIs(t, err, boom)
}
