package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	codelenserrors "github.com/codelens-dev/codelens/internal/errors"
)

// HNSWConfig mirrors the config.HNSWConfig fields the index needs at
// construction time.
type HNSWConfig struct {
	Dimension int
	M         int
	EfSearch  int
	Metric    string // "cosine" or "l2"
}

// HNSWIndex wraps coder/hnsw's pure-Go graph with the string-keyed
// fragment-ID mapping codelens needs (the graph itself only knows
// uint64 keys), atomic save/load, and a background rebuild path for when
// the graph and the embeddings table have drifted apart. Adapted from
// the teacher's store.HNSWStore.
type HNSWIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config HNSWConfig

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	needsRebuild bool
	rebuildOnce  *sync.Once
}

type hnswMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  HNSWConfig
}

// NewHNSWIndex builds an empty index with the given configuration.
func NewHNSWIndex(cfg HNSWConfig) *HNSWIndex {
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 64
	}
	if cfg.Metric == "" {
		cfg.Metric = "cosine"
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWIndex{
		graph:       graph,
		config:      cfg,
		idMap:       make(map[string]uint64),
		keyMap:      make(map[uint64]string),
		rebuildOnce: &sync.Once{},
	}
}

// Upsert inserts or replaces the vector for a fragment ID. Replacement
// uses lazy deletion (orphan the old graph node, never remove it) because
// coder/hnsw's Delete can corrupt the graph when removing its last node.
func (idx *HNSWIndex) Upsert(id string, vec []float32) error {
	if len(vec) != idx.config.Dimension {
		return codelenserrors.New(codelenserrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", idx.config.Dimension, len(vec)), nil)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.idMap[id]; ok {
		delete(idx.keyMap, existing)
		delete(idx.idMap, id)
	}

	key := idx.nextKey
	idx.nextKey++

	v := make([]float32, len(vec))
	copy(v, vec)
	if idx.config.Metric == "cosine" {
		normalizeInPlace(v)
	}

	idx.graph.Add(hnsw.MakeNode(key, v))
	idx.idMap[id] = key
	idx.keyMap[key] = id
	return nil
}

// Remove drops a fragment ID from the index (lazy deletion).
func (idx *HNSWIndex) Remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if key, ok := idx.idMap[id]; ok {
		delete(idx.keyMap, key)
		delete(idx.idMap, id)
	}
}

// SearchResult is one ranked match from Search.
type SearchResult struct {
	FragmentID string
	Distance   float32
	Score      float32
}

// Search returns the k nearest neighbors to query. If a background
// rebuild is in flight, it returns ErrCodeIndexCorrupt immediately rather
// than searching a known-stale graph.
func (idx *HNSWIndex) Search(query []float32, k int) ([]SearchResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.needsRebuild {
		return nil, codelenserrors.New(codelenserrors.ErrCodeIndexCorrupt, "index-rebuilding", nil)
	}
	if len(query) != idx.config.Dimension {
		return nil, codelenserrors.New(codelenserrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("query dimension mismatch: expected %d, got %d", idx.config.Dimension, len(query)), nil)
	}
	if idx.graph.Len() == 0 {
		return nil, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	if idx.config.Metric == "cosine" {
		normalizeInPlace(q)
	}

	nodes := idx.graph.Search(q, k)
	results := make([]SearchResult, 0, len(nodes))
	for _, node := range nodes {
		id, ok := idx.keyMap[node.Key]
		if !ok {
			continue
		}
		distance := idx.graph.Distance(q, node.Value)
		results = append(results, SearchResult{
			FragmentID: id,
			Distance:   distance,
			Score:      distanceToScore(distance, idx.config.Metric),
		})
	}
	return results, nil
}

// Len returns the number of live (non-orphaned) vectors.
func (idx *HNSWIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.idMap)
}

// Contains reports whether a fragment ID currently has a vector.
func (idx *HNSWIndex) Contains(id string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.idMap[id]
	return ok
}

// AllIDs returns every fragment ID currently indexed.
func (idx *HNSWIndex) AllIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := make([]string, 0, len(idx.idMap))
	for id := range idx.idMap {
		ids = append(ids, id)
	}
	return ids
}

// VerifyAgainstEmbeddings compares the index's live ID set against the
// fragment IDs the embeddings table claims to have vectors for. A
// mismatch marks the index as needing a background rebuild.
func (idx *HNSWIndex) VerifyAgainstEmbeddings(embeddingIDs []string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	want := make(map[string]struct{}, len(embeddingIDs))
	for _, id := range embeddingIDs {
		want[id] = struct{}{}
	}
	if len(want) != len(idx.idMap) {
		idx.needsRebuild = true
		return false
	}
	for id := range idx.idMap {
		if _, ok := want[id]; !ok {
			idx.needsRebuild = true
			return false
		}
	}
	return true
}

// RebuildFromEmbeddings replaces the graph contents from a fresh
// (id, vector) set fetched from the embeddings table, then clears the
// rebuild flag. Intended to run on its own goroutine, once per rebuild
// epoch (guarded by the caller via sync.Once).
func (idx *HNSWIndex) RebuildFromEmbeddings(pairs map[string][]float32) error {
	fresh := NewHNSWIndex(idx.config)
	for id, vec := range pairs {
		if err := fresh.Upsert(id, vec); err != nil {
			return err
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.graph = fresh.graph
	idx.idMap = fresh.idMap
	idx.keyMap = fresh.keyMap
	idx.nextKey = fresh.nextKey
	idx.needsRebuild = false
	idx.rebuildOnce = &sync.Once{}
	return nil
}

// NeedsRebuild reports whether VerifyAgainstEmbeddings flagged a mismatch
// that hasn't yet been repaired.
func (idx *HNSWIndex) NeedsRebuild() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.needsRebuild
}

// RebuildOnce returns the sync.Once guarding the current rebuild epoch, so
// a caller can ensure only one rebuild goroutine runs at a time.
func (idx *HNSWIndex) RebuildOnce() *sync.Once {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.rebuildOnce
}

// Save persists the graph (hnsw.bin) and ID mappings (hnsw.meta) via
// temp-file-then-rename, so a crash mid-write never leaves a half-written
// index in place.
func (idx *HNSWIndex) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := idx.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename index file: %w", err)
	}

	return idx.saveMetadata(path + ".meta")
}

func (idx *HNSWIndex) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}

	meta := hnswMetadata{IDMap: idx.idMap, NextKey: idx.nextKey, Config: idx.config}
	if err := gob.NewEncoder(f).Encode(meta); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load reads a previously-Saved graph and ID mappings from disk.
func (idx *HNSWIndex) Load(path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.loadMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	if err := idx.graph.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	return nil
}

func (idx *HNSWIndex) loadMetadata(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			slog.Warn("close hnsw metadata file", slog.String("error", cerr.Error()))
		}
	}()

	var meta hnswMetadata
	if err := gob.NewDecoder(f).Decode(&meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	idx.idMap = meta.IDMap
	idx.keyMap = make(map[uint64]string, len(meta.IDMap))
	idx.nextKey = meta.NextKey
	idx.config = meta.Config
	for id, key := range idx.idMap {
		idx.keyMap[key] = id
	}
	return nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

func distanceToScore(distance float32, metric string) float32 {
	switch metric {
	case "l2":
		return 1.0 / (1.0 + distance)
	default:
		return 1.0 - distance/2.0
	}
}
