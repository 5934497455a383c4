// Package cache implements the three-tier query cache from §4.7: a
// bounded in-memory LRU (L1), a file-blob directory (L2), and a durable
// SQLite table (L3). A hit at tier T>1 promotes the value up one tier.
// Generalizes the teacher's embed.CachedEmbedder (hashicorp/golang-lru
// usage) and its SQLite connection idiom (internal/store.OpenSQLiteWriter)
// from a single in-process embedding cache to a full multi-tier query
// cache with durable persistence and invalidation.
package cache

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// IndexVersionFunc reports the Store's current index_version, used to
// detect a cache entry written against a now-stale index (§4.7
// invalidation, Testable Property 6).
type IndexVersionFunc func(ctx context.Context) (int64, error)

// Config tunes the three tiers, mirroring config.CacheConfig.
type Config struct {
	L1MaxEntries int
	L1TTL        time.Duration

	L2MaxBytes int64
	L2TTL      time.Duration

	L3TTL time.Duration
}

// entry is the internal record carried through all three tiers. Only its
// Value escapes through the public Get/Put API (matching
// internal/retriever.Cache's narrower byte-blob contract); the rest is
// bookkeeping for eviction, staleness, and Analyze.
type entry struct {
	Value        []byte
	IndexVersion int64
	CreatedAt    time.Time
	LastAccess   time.Time
	HitCount     int64
	TTL          time.Duration
	Tier         int // 1, 2, or 3 - which tier served this entry
}

func (e entry) expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.CreatedAt) > e.TTL
}

// Cache is the multi-tier query cache for one workspace.
type Cache struct {
	l1 *l1Tier
	l2 *l2Tier
	l3 *l3Tier

	indexVersion IndexVersionFunc

	statsMu sync.Mutex
	hits    [4]int64 // indexed by tier, 0 unused
	misses  int64
}

// Open builds a Cache rooted at dir (the workspace's cache/ directory),
// creating cache/l2/ and cache/l3.db and cache/queries.db as needed.
func Open(dir string, cfg Config, indexVersion IndexVersionFunc) (*Cache, error) {
	l1 := newL1Tier(cfg.L1MaxEntries, cfg.L1TTL)

	l2, err := newL2Tier(filepath.Join(dir, "l2"), cfg.L2MaxBytes, cfg.L2TTL)
	if err != nil {
		return nil, err
	}

	l3, err := newL3Tier(filepath.Join(dir, "l3.db"), filepath.Join(dir, "queries.db"), cfg.L3TTL)
	if err != nil {
		return nil, err
	}

	return &Cache{l1: l1, l2: l2, l3: l3, indexVersion: indexVersion}, nil
}

// Close releases the SQLite handles held by the L3 tier.
func (c *Cache) Close() error {
	return c.l3.Close()
}

// Get checks L1, then L2, then L3, promoting a hit at tier T>1 up one
// tier. A value whose recorded IndexVersion no longer matches the
// Store's current one is treated as a miss and evicted (§4.7
// invalidation), never returned stale.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	now := time.Now()

	if e, ok := c.l1.get(key); ok {
		if c.isFresh(ctx, e, now) {
			c.recordHit(1)
			return e.Value, true
		}
		c.l1.remove(key)
	}

	if e, ok := c.l2.get(key); ok {
		if c.isFresh(ctx, e, now) {
			c.recordHit(2)
			c.l1.put(key, e)
			return e.Value, true
		}
		_ = c.l2.remove(key)
	}

	if e, ok := c.l3.get(key); ok {
		if c.isFresh(ctx, e, now) {
			c.recordHit(3)
			_ = c.l2.put(key, e)
			return e.Value, true
		}
		_ = c.l3.remove(key)
	}

	c.statsMu.Lock()
	c.misses++
	c.statsMu.Unlock()
	return nil, false
}

// isFresh reports whether e is neither TTL-expired nor stamped with an
// index_version older than the Store's current one.
func (c *Cache) isFresh(ctx context.Context, e entry, now time.Time) bool {
	if e.expired(now) {
		return false
	}
	if c.indexVersion == nil {
		return true
	}
	current, err := c.indexVersion(ctx)
	if err != nil {
		return true // can't verify; don't punish the cache for a Store hiccup
	}
	return e.IndexVersion == current
}

// Put writes value to L1 synchronously, then starts one background
// goroutine per call that writes L3 first and L2 second (L2 is skipped if
// the L3 write fails). Writing L3 first means a crash mid-write never
// loses L3's authoritative copy of an already-committed L1 entry, matching
// §4.7's "L1 and L2 may briefly diverge" consistency note.
func (c *Cache) Put(ctx context.Context, key string, value []byte) error {
	version := int64(0)
	if c.indexVersion != nil {
		if v, err := c.indexVersion(ctx); err == nil {
			version = v
		}
	}

	now := time.Now()
	e := entry{Value: value, IndexVersion: version, CreatedAt: now, LastAccess: now, TTL: c.l1.ttl}
	c.l1.put(key, e)

	go func() {
		l3Entry := e
		l3Entry.TTL = c.l3.ttl
		if err := c.l3.put(key, l3Entry); err != nil {
			slog.Warn("cache: l3 write failed", slog.String("key", key), slog.String("error", err.Error()))
			return
		}
		l2Entry := e
		l2Entry.TTL = c.l2.ttl
		if err := c.l2.put(key, l2Entry); err != nil {
			slog.Warn("cache: l2 write failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Clear empties one tier (1, 2, or 3), or every tier when level is 0.
func (c *Cache) Clear(level int) error {
	if level == 0 || level == 1 {
		c.l1.clear()
	}
	if level == 0 || level == 2 {
		if err := c.l2.clear(); err != nil {
			return err
		}
	}
	if level == 0 || level == 3 {
		if err := c.l3.clear(); err != nil {
			return err
		}
	}
	return nil
}

// Prune removes entries last accessed longer than olderThan ago from the
// given tier (0 for every tier).
func (c *Cache) Prune(olderThan time.Duration, level int) error {
	cutoff := time.Now().Add(-olderThan)
	if level == 0 || level == 1 {
		c.l1.pruneOlderThan(cutoff)
	}
	if level == 0 || level == 2 {
		if err := c.l2.pruneOlderThan(cutoff); err != nil {
			return err
		}
	}
	if level == 0 || level == 3 {
		if err := c.l3.pruneOlderThan(cutoff); err != nil {
			return err
		}
	}
	return nil
}

// LogQuery records one retrieval call for later replay by Warm and for
// Analyze's reporting. Satisfies internal/retriever.Cache.
func (c *Cache) LogQuery(ctx context.Context, query string, topK int, resultIDs []string, latencyMs int64) error {
	return c.l3.logQuery(ctx, query, topK, resultIDs, latencyMs)
}

func (c *Cache) recordHit(tier int) {
	c.statsMu.Lock()
	c.hits[tier]++
	c.statsMu.Unlock()
}
