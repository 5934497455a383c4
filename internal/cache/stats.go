package cache

import "context"

// Stats summarizes cache effectiveness for a status command, per §4.7.
type Stats struct {
	L1Hits       int64
	L2Hits       int64
	L3Hits       int64
	Misses       int64
	HitRate      float64
	QueryCount   int64
	AvgLatencyMs float64
	TopQueries   []string
}

// Analyze aggregates hit/miss counters and the query log into a Stats
// snapshot. Counters are cumulative since the Cache was opened.
func (c *Cache) Analyze(ctx context.Context) (Stats, error) {
	c.statsMu.Lock()
	l1, l2, l3, misses := c.hits[1], c.hits[2], c.hits[3], c.misses
	c.statsMu.Unlock()

	total := l1 + l2 + l3 + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(l1+l2+l3) / float64(total)
	}

	count, avgLatency, err := c.l3.queryStats(ctx)
	if err != nil {
		return Stats{}, err
	}
	top, err := c.l3.topQueries(ctx, 10)
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		L1Hits: l1, L2Hits: l2, L3Hits: l3, Misses: misses, HitRate: hitRate,
		QueryCount: count, AvgLatencyMs: avgLatency, TopQueries: top,
	}, nil
}

// WarmFunc re-runs a query through the Retriever so its result lands back
// in the cache. Supplied by the caller (cmd/codelens's wiring layer) so
// this package never imports internal/retriever, which already depends on
// Cache through the narrow interface in internal/retriever/cache.go -
// importing it back here would create a cycle.
type WarmFunc func(ctx context.Context, query string) error

// Warm replays the topN most frequently logged queries through warm,
// repopulating the cache ahead of time (§4.7's "cache warm" operation).
// The first replay that fails stops the pass and its error is returned;
// the remaining queries are not replayed.
func (c *Cache) Warm(ctx context.Context, topN int, warm WarmFunc) error {
	queries, err := c.l3.topQueries(ctx, topN)
	if err != nil {
		return err
	}
	for _, q := range queries {
		if err := warm(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
