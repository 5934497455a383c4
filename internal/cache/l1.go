package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultL1MaxEntries and DefaultL1TTL are §4.7's documented L1 defaults.
const (
	DefaultL1MaxEntries = 100
	DefaultL1TTL        = 5 * time.Minute
)

// l1Tier is the in-process, bounded-by-count LRU tier. Adapted from the
// teacher's embed.CachedEmbedder, which wraps the same
// hashicorp/golang-lru/v2 cache for embedding vectors; here it caches
// serialized query result blobs instead.
type l1Tier struct {
	cache *lru.Cache[string, entry]
	ttl   time.Duration
}

func newL1Tier(maxEntries int, ttl time.Duration) *l1Tier {
	if maxEntries <= 0 {
		maxEntries = DefaultL1MaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultL1TTL
	}
	c, _ := lru.New[string, entry](maxEntries)
	return &l1Tier{cache: c, ttl: ttl}
}

func (t *l1Tier) get(key string) (entry, bool) {
	return t.cache.Get(key)
}

func (t *l1Tier) put(key string, e entry) {
	if e.TTL <= 0 {
		e.TTL = t.ttl
	}
	t.cache.Add(key, e)
}

func (t *l1Tier) remove(key string) {
	t.cache.Remove(key)
}

func (t *l1Tier) clear() {
	t.cache.Purge()
}

func (t *l1Tier) pruneOlderThan(cutoff time.Time) {
	for _, key := range t.cache.Keys() {
		if e, ok := t.cache.Peek(key); ok && e.LastAccess.Before(cutoff) {
			t.cache.Remove(key)
		}
	}
}
