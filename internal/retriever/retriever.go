package retriever

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/codelens-dev/codelens/internal/embed"
	codelenserrors "github.com/codelens-dev/codelens/internal/errors"
	"github.com/codelens-dev/codelens/internal/store"
)

// Retriever answers queries against a Store's HNSW index, implementing
// §4.6's eight-step algorithm.
type Retriever struct {
	store    *store.Store
	embedder embed.Embedder
	cache    Cache
}

// New builds a Retriever. A nil cache is replaced with a no-op cache, so
// every call is a cache miss rather than requiring a real Cache wiring
// for tests or early bring-up.
func New(st *store.Store, embedder embed.Embedder, cache Cache) *Retriever {
	if cache == nil {
		cache = noopCache{}
	}
	return &Retriever{store: st, embedder: embedder, cache: cache}
}

// Retrieve implements §4.6: canonicalize → cache lookup → embed query →
// hnsw_search → hydrate → filter → truncate → score → log + cache.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts Options) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, codelenserrors.New(codelenserrors.ErrCodeConfigInvalid, "query must not be empty", nil)
	}

	start := time.Now()
	opts = opts.canonicalize()
	key := cacheKey(query, opts)

	if cached, ok := r.cache.Get(ctx, key); ok {
		var results []Result
		if err := json.Unmarshal(cached, &results); err == nil {
			return results, nil
		}
	}

	// Soft deadline (5s) for the uncached path: past it the query fails
	// with ErrCodeTimeout and nothing is logged or cached.
	qctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if !r.embedder.Available(qctx) {
		return nil, codelenserrors.New(codelenserrors.ErrCodeRuntimeUnavailable, "embedding runtime unavailable", nil)
	}

	vec, err := r.embedder.Embed(qctx, query)
	if err != nil {
		if qctx.Err() == context.DeadlineExceeded {
			return nil, codelenserrors.New(codelenserrors.ErrCodeTimeout, "query exceeded its deadline", err)
		}
		return nil, codelenserrors.New(codelenserrors.ErrCodeRuntimeUnavailable, "failed to embed query", err)
	}

	poolSize := opts.candidatePoolSize()
	hits, err := r.store.HNSWSearch(vec, poolSize)
	if err != nil {
		if cerr, ok := err.(*codelenserrors.CodeLensError); ok && cerr.Code == codelenserrors.ErrCodeIndexCorrupt {
			return nil, cerr // index-rebuilding: background rebuild already kicked off by Store
		}
		return nil, codelenserrors.New(codelenserrors.ErrCodeRuntimeUnavailable, "hnsw search failed", err)
	}
	if len(hits) == 0 {
		// An empty or not-yet-indexed workspace (store.HNSWSearch's
		// graph.Len()==0 case) is not an error: §8 requires an empty
		// result list, not a failure.
		return []Result{}, nil
	}

	scoreByID := make(map[string]float32, len(hits))
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.FragmentID
		scoreByID[h.FragmentID] = h.Score
	}

	hydrated, err := r.store.FetchHydration(qctx, ids)
	if err != nil {
		return nil, err
	}
	if qctx.Err() == context.DeadlineExceeded {
		return nil, codelenserrors.New(codelenserrors.ErrCodeTimeout, "query exceeded its deadline", qctx.Err())
	}

	results := make([]Result, 0, len(hydrated))
	for _, h := range hydrated {
		res := resultFrom(h, scoreByID[h.Fragment.ID])
		if !matchesFilters(res, opts) {
			continue
		}
		if res.Score < opts.MinScore {
			continue
		}
		results = append(results, res)
	}

	sortResults(results)
	if len(results) > opts.K {
		results = results[:opts.K]
	}

	resultIDs := make([]string, len(results))
	for i, res := range results {
		resultIDs[i] = res.FragmentID
	}
	latency := time.Since(start).Milliseconds()

	if err := r.cache.LogQuery(ctx, query, opts.K, resultIDs, latency); err != nil {
		slog.Warn("failed to log query", slog.String("error", err.Error()))
	}
	if blob, err := json.Marshal(results); err == nil {
		if err := r.cache.Put(ctx, key, blob); err != nil {
			slog.Warn("failed to populate cache", slog.String("error", err.Error()))
		}
	}

	return results, nil
}

func resultFrom(h *store.HydratedResult, score float32) Result {
	deps := h.Annotation.Dependencies
	if deps == nil {
		deps = []string{}
	}
	return Result{
		FragmentID:   h.Fragment.ID,
		Kind:         h.Fragment.Kind,
		Name:         h.Fragment.Name,
		FilePath:     h.Fragment.FilePath,
		Signature:    h.Annotation.Signature,
		Summary:      h.Annotation.Summary,
		Complexity:   h.Annotation.Complexity,
		Dependencies: deps,
		Snippet:      h.Annotation.Snippet,
		Score:        score,
		StartLine:    h.Fragment.StartLine,
	}
}

func matchesFilters(res Result, opts Options) bool {
	if opts.KindFilter != "" && res.Kind != opts.KindFilter {
		return false
	}
	if opts.FileFilter != "" {
		if ok, _ := doublestar.Match(opts.FileFilter, res.FilePath); !ok {
			return false
		}
	}
	return true
}
