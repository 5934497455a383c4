// Package store owns all on-disk state for a codelens workspace: the
// fragment/annotation/file tables, the embedding table, the HNSW vector
// index, and the cross-process advisory lock guarding them.
package store

import "time"

// Fragment is one parsed syntax unit: a function, method, class, or other
// significant node extracted from a source file.
type Fragment struct {
	ID        string
	Kind      string
	Name      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
	ParentID  string
	FilePath  string
	Language  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Annotation holds the derived, human-readable facts about a Fragment:
// its signature, a one-line summary, a cyclomatic complexity score, the
// identifiers it depends on, and a truncated source snippet.
type Annotation struct {
	FragmentID   string
	Signature    string
	Summary      string
	Complexity   int
	Dependencies []string
	Snippet      string
	Language     string
	FilePath     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Embedding is the dense vector representation of a Fragment's annotation
// text, tagged with the model that produced it so a model change can be
// detected and the fragment re-embedded.
type Embedding struct {
	FragmentID   string
	Vector       []float32
	ModelID      string
	ModelVersion string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FileRecord tracks the last-indexed state of one source file, letting
// the change detector recognize an unmodified file without re-parsing it.
type FileRecord struct {
	Path        string
	ContentHash string
	ModTime     time.Time
	FragmentIDs []string
}

// QueryLogEntry records one retrieval call for later cache-warming and
// diagnostics.
type QueryLogEntry struct {
	ID        int64
	Query     string
	TopK      int
	ResultIDs []string
	LatencyMs int64
	CreatedAt time.Time
}

// HydratedResult joins a Fragment with its Annotation and retrieval score,
// the shape the retriever returns to callers.
type HydratedResult struct {
	Fragment   *Fragment
	Annotation *Annotation
	Score      float32
}
