package embed

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/codelens-dev/codelens/internal/store"
)

// DefaultMaxInFlightBatches bounds concurrent embedding batches, giving
// the Watcher's producer something concrete to block against once the
// embedder saturates (§4.5 back-pressure, §9 bounded channels).
const DefaultMaxInFlightBatches = 4

// Batcher embeds fragment text and writes the resulting vectors through
// to the Store, observing §4.5's upsert and failure semantics.
type Batcher struct {
	embedder Embedder
	store    *store.Store
	modelVer string
	sem      *semaphore.Weighted
}

// NewBatcher builds a Batcher. maxInFlight bounds how many Batch calls may
// run concurrently; calls beyond that block until a slot frees up.
func NewBatcher(embedder Embedder, st *store.Store, modelVersion string, maxInFlight int) *Batcher {
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlightBatches
	}
	return &Batcher{
		embedder: embedder,
		store:    st,
		modelVer: modelVersion,
		sem:      semaphore.NewWeighted(int64(maxInFlight)),
	}
}

// Batch embeds pairs (summary ‖ " " ‖ signature text, already built by the
// caller into FragmentText.Text) and upserts the resulting vectors into
// the embeddings table and HNSW index under each fragment's ID.
//
// A batch that fails outright is left out of the index entirely: prior
// embeddings for its fragment IDs (if any) are untouched, so "Embedding
// exists ⇒ HNSW handle exists" keeps holding. The failed fragment IDs are
// logged at slog.Warn rather than returned as partial results, per §4.5's
// "permanent failure logs the fragment IDs" rule.
func (b *Batcher) Batch(ctx context.Context, pairs []FragmentText) error {
	if len(pairs) == 0 {
		return nil
	}

	if err := b.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer b.sem.Release(1)

	texts := make([]string, len(pairs))
	for i, p := range pairs {
		texts[i] = p.Text
	}

	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		ids := make([]string, len(pairs))
		for i, p := range pairs {
			ids[i] = p.FragmentID
		}
		slog.Warn("embedding batch failed permanently",
			slog.Any("fragment_ids", ids),
			slog.String("error", err.Error()))
		return err
	}

	now := time.Now()
	embs := make([]*store.Embedding, len(pairs))
	for i, p := range pairs {
		embs[i] = &store.Embedding{
			FragmentID:   p.FragmentID,
			Vector:       vectors[i],
			ModelID:      b.embedder.ModelName(),
			ModelVersion: b.modelVer,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	return b.store.UpsertEmbeddings(ctx, embs)
}

// BuildText renders a fragment's embedding input per §4.5:
// summary ‖ " " ‖ signature.
func BuildText(summary, signature string) string {
	if summary == "" {
		return signature
	}
	if signature == "" {
		return summary
	}
	return summary + " " + signature
}
