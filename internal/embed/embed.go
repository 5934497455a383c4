// Package embed turns a Fragment's annotation text into a fixed-dimension
// vector and upserts it into the Store's HNSW index. Generalizes the
// teacher's embed.Embedder family (static.go, ollama.go, retry.go) from
// prose-and-code RAG embeddings to the fragment-text embeddings codelens
// indexes.
package embed

import "context"

// Embedder generates vector embeddings for text. Trimmed from the
// teacher's embed.Embedder: SetBatchIndex/SetFinalBatch are dropped since
// they exist solely to tune per-call HTTP timeouts for thermal throttling
// on one specific local GPU runtime, a concern this module's bounded
// errors.Retry backoff already covers without per-caller timeout state.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension D.
	Dimensions() int

	// ModelName returns the model identifier embeddings are tagged with.
	ModelName() string

	// Available reports whether the embedder can currently serve requests.
	Available(ctx context.Context) bool

	// Close releases any held resources (connections, handles).
	Close() error
}

// FragmentText is one fragment's embedding input, paired with its ID so
// Batch can upsert the resulting vector under the right HNSW key.
type FragmentText struct {
	FragmentID string
	Text       string
}
