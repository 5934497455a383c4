package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHNSWIndex_UpsertRejectsDimensionMismatch(t *testing.T) {
	idx := NewHNSWIndex(HNSWConfig{Dimension: 4, Metric: "cosine"})
	err := idx.Upsert("a", []float32{1, 2, 3})
	assert.Error(t, err)
}

func TestHNSWIndex_UpsertReplacesLazily(t *testing.T) {
	idx := NewHNSWIndex(HNSWConfig{Dimension: 2, Metric: "cosine"})
	require.NoError(t, idx.Upsert("a", []float32{1, 0}))
	require.NoError(t, idx.Upsert("a", []float32{0, 1}))

	assert.Equal(t, 1, idx.Len())
	results, err := idx.Search([]float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].FragmentID)
}

func TestHNSWIndex_RemoveThenSearchExcludes(t *testing.T) {
	idx := NewHNSWIndex(HNSWConfig{Dimension: 2, Metric: "cosine"})
	require.NoError(t, idx.Upsert("a", []float32{1, 0}))
	idx.Remove("a")

	assert.False(t, idx.Contains("a"))
	assert.Equal(t, 0, idx.Len())
}

func TestHNSWIndex_SaveAndLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hnsw.bin")

	idx := NewHNSWIndex(HNSWConfig{Dimension: 3, Metric: "cosine"})
	require.NoError(t, idx.Upsert("a", []float32{1, 0, 0}))
	require.NoError(t, idx.Upsert("b", []float32{0, 1, 0}))
	require.NoError(t, idx.Save(path))

	loaded := NewHNSWIndex(HNSWConfig{Dimension: 3, Metric: "cosine"})
	require.NoError(t, loaded.Load(path))

	assert.True(t, loaded.Contains("a"))
	assert.True(t, loaded.Contains("b"))
	assert.Equal(t, 2, loaded.Len())
}

func TestHNSWIndex_VerifyAgainstEmbeddingsDetectsMismatch(t *testing.T) {
	idx := NewHNSWIndex(HNSWConfig{Dimension: 2, Metric: "cosine"})
	require.NoError(t, idx.Upsert("a", []float32{1, 0}))

	ok := idx.VerifyAgainstEmbeddings([]string{"a", "b"})
	assert.False(t, ok)
	assert.True(t, idx.NeedsRebuild())
}

func TestHNSWIndex_RebuildFromEmbeddingsClearsFlag(t *testing.T) {
	idx := NewHNSWIndex(HNSWConfig{Dimension: 2, Metric: "cosine"})
	idx.VerifyAgainstEmbeddings([]string{"ghost"})
	require.True(t, idx.NeedsRebuild())

	require.NoError(t, idx.RebuildFromEmbeddings(map[string][]float32{"a": {1, 0}}))
	assert.False(t, idx.NeedsRebuild())
	assert.True(t, idx.Contains("a"))
}
