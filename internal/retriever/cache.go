package retriever

import "context"

// Cache is the narrow slice of internal/cache.Cache the Retriever needs:
// a byte-blob KV store keyed by the canonicalized query+options. Defined
// here (the consumer) rather than imported from internal/cache, so this
// package has no build dependency on the cache tiering implementation;
// internal/cache's Cache type satisfies this interface directly.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, value []byte) error

	// LogQuery records one retrieval call in queries.db for Cache.Warm to
	// replay later; resultIDs is the post-truncation fragment ID list.
	LogQuery(ctx context.Context, query string, topK int, resultIDs []string, latencyMs int64) error
}

// noopCache is used when a Retriever is built without a Cache, so every
// lookup is a cache miss rather than a nil-pointer panic.
type noopCache struct{}

func (noopCache) Get(_ context.Context, _ string) ([]byte, bool)  { return nil, false }
func (noopCache) Put(_ context.Context, _ string, _ []byte) error { return nil }
func (noopCache) LogQuery(_ context.Context, _ string, _ int, _ []string, _ int64) error {
	return nil
}
