package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	codelenserrors "github.com/codelens-dev/codelens/internal/errors"
)

// Config configures a Store's HNSW index and lock timeout. Callers build
// this from config.Config rather than depending on the config package
// directly, keeping internal/store free of a dependency on internal/config.
type Config struct {
	Dimension    int
	HNSWM        int
	HNSWEfSearch int
	HNSWMetric   string
	LockTimeout  time.Duration
}

// Store owns a workspace's fragments.db, embeddings.db, and HNSW index,
// and holds the workspace's cross-process Lock, which callers take through
// WithExclusiveLock/WithSharedLock; the Store's own methods do not take it.
// Directly grounded on the teacher's SQLiteBM25Index connection handling
// and HNSWStore, combined into one workspace-scoped handle per §4.1.
type Store struct {
	dir string

	fragmentsDB  *sql.DB
	embeddingsDB *sql.DB
	hnsw         *HNSWIndex
	lock         *Lock

	mu sync.Mutex // serializes HNSW save-on-write; the DBs have their own pools
}

// Open opens (creating if absent) the store rooted at dir, which should
// be the workspace's data directory (config.DataDir(workspaceRoot)).
func Open(dir string, cfg Config) (*Store, error) {
	fragmentsDB, err := OpenSQLiteWriter(filepath.Join(dir, "fragments.db"), fragmentsSchema)
	if err != nil {
		return nil, codelenserrors.Wrap(codelenserrors.ErrCodeStoreCorrupt, err)
	}
	embeddingsDB, err := OpenSQLiteWriter(filepath.Join(dir, "embeddings.db"), embeddingsSchema)
	if err != nil {
		fragmentsDB.Close()
		return nil, codelenserrors.Wrap(codelenserrors.ErrCodeStoreCorrupt, err)
	}

	hnswCfg := HNSWConfig{Dimension: cfg.Dimension, M: cfg.HNSWM, EfSearch: cfg.HNSWEfSearch, Metric: cfg.HNSWMetric}
	idx := NewHNSWIndex(hnswCfg)

	indexPath := filepath.Join(dir, "hnsw.bin")
	if err := idx.Load(indexPath); err != nil {
		// Load fails both for a fresh store with no hnsw.bin and for a
		// file that cannot be read; either way an empty index is used, and
		// the check against the embeddings table below flags a rebuild
		// when stored vectors exist.
		idx = NewHNSWIndex(hnswCfg)
	}

	ctx := context.Background()
	if embIDs, err := allEmbeddingIDs(ctx, embeddingsDB); err == nil {
		idx.VerifyAgainstEmbeddings(embIDs)
	}

	lockTimeout := cfg.LockTimeout
	if lockTimeout == 0 {
		lockTimeout = 30 * time.Second
	}

	return &Store{
		dir:          dir,
		fragmentsDB:  fragmentsDB,
		embeddingsDB: embeddingsDB,
		hnsw:         idx,
		lock:         NewLock(dir, lockTimeout),
	}, nil
}

// Close flushes the HNSW index to disk and closes both SQLite handles.
func (s *Store) Close() error {
	if err := s.hnsw.Save(filepath.Join(s.dir, "hnsw.bin")); err != nil {
		return fmt.Errorf("save hnsw index: %w", err)
	}
	if err := s.fragmentsDB.Close(); err != nil {
		return err
	}
	return s.embeddingsDB.Close()
}

// WithExclusiveLock runs fn while holding the workspace's exclusive lock.
func (s *Store) WithExclusiveLock(ctx context.Context, opName string, fn func() error) error {
	return s.lock.WithExclusive(ctx, opName, fn)
}

// WithSharedLock runs fn while holding the workspace's shared lock.
func (s *Store) WithSharedLock(ctx context.Context, opName string, fn func() error) error {
	return s.lock.WithShared(ctx, opName, fn)
}

// UpsertFileFragments atomically replaces every fragment, annotation, and
// embedding belonging to file with the given sets, in one SQLite
// transaction plus one HNSW batch upsert, then bumps index_version. This
// satisfies the atomic-replacement invariant: a reader never observes a
// partial mix of old and new fragments for the file.
func (s *Store) UpsertFileFragments(ctx context.Context, file, contentHash string, modTime time.Time, frags []*Fragment, anns []*Annotation, embs []*Embedding) error {
	tx, err := s.fragmentsDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fragments tx: %w", err)
	}
	if err := upsertFileFragmentsTx(ctx, tx, file, contentHash, modTime, frags, anns); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fragments tx: %w", err)
	}

	return s.UpsertEmbeddings(ctx, embs)
}

// UpsertEmbeddings writes embs to embeddings.db in one transaction, then
// upserts each vector into the HNSW index and saves the index to
// hnsw.bin, preserving the "Embedding exists ⇒ HNSW handle exists"
// bijection (§4.1) even when called outside a per-file
// UpsertFileFragments transaction, e.g. by the Embedder's own
// batch-embed path (internal/embed.Batcher).
func (s *Store) UpsertEmbeddings(ctx context.Context, embs []*Embedding) error {
	if len(embs) == 0 {
		return nil
	}

	etx, err := s.embeddingsDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin embeddings tx: %w", err)
	}
	for _, e := range embs {
		if err := upsertEmbeddingTx(ctx, etx, e); err != nil {
			etx.Rollback()
			return err
		}
	}
	if err := etx.Commit(); err != nil {
		return fmt.Errorf("commit embeddings tx: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range embs {
		if err := s.hnsw.Upsert(e.FragmentID, e.Vector); err != nil {
			return err
		}
	}
	if err := s.hnsw.Save(filepath.Join(s.dir, "hnsw.bin")); err != nil {
		return fmt.Errorf("save hnsw index: %w", err)
	}
	return nil
}

// DeleteFile removes every fragment, annotation, and embedding belonging
// to file and bumps index_version.
func (s *Store) DeleteFile(ctx context.Context, file string) error {
	frags, err := s.fragmentIDsForFile(ctx, file)
	if err != nil {
		return err
	}

	tx, err := s.fragmentsDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fragments tx: %w", err)
	}
	if err := deleteFileTx(ctx, tx, file); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fragments tx: %w", err)
	}

	if len(frags) > 0 {
		etx, err := s.embeddingsDB.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin embeddings tx: %w", err)
		}
		for _, id := range frags {
			if err := deleteEmbeddingTx(ctx, etx, id); err != nil {
				etx.Rollback()
				return err
			}
		}
		if err := etx.Commit(); err != nil {
			return fmt.Errorf("commit embeddings tx: %w", err)
		}

		s.mu.Lock()
		for _, id := range frags {
			s.hnsw.Remove(id)
		}
		s.mu.Unlock()
	}

	return nil
}

func (s *Store) fragmentIDsForFile(ctx context.Context, file string) ([]string, error) {
	rows, err := s.fragmentsDB.QueryContext(ctx, `SELECT id FROM fragments WHERE file_path = ?`, file)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetFragment fetches one fragment by ID.
func (s *Store) GetFragment(ctx context.Context, id string) (*Fragment, error) {
	f, err := getFragmentTx(ctx, s.fragmentsDB, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, codelenserrors.New(codelenserrors.ErrCodeFileNotFound, fmt.Sprintf("fragment %s not found", id), err)
		}
		return nil, err
	}
	return f, nil
}

// GetAnnotation fetches one annotation by fragment ID.
func (s *Store) GetAnnotation(ctx context.Context, fragmentID string) (*Annotation, error) {
	a, err := getAnnotationTx(ctx, s.fragmentsDB, fragmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, codelenserrors.New(codelenserrors.ErrCodeFileNotFound, fmt.Sprintf("annotation %s not found", fragmentID), err)
		}
		return nil, err
	}
	return a, nil
}

// FetchHydration joins fragments and annotations for a set of IDs, in the
// order requested, skipping any ID that no longer resolves (the fragment
// or annotation was deleted out from under a stale HNSW hit).
func (s *Store) FetchHydration(ctx context.Context, ids []string) ([]*HydratedResult, error) {
	out := make([]*HydratedResult, 0, len(ids))
	for _, id := range ids {
		frag, err := s.GetFragment(ctx, id)
		if err != nil {
			continue
		}
		ann, err := s.GetAnnotation(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, &HydratedResult{Fragment: frag, Annotation: ann})
	}
	return out, nil
}

// HNSWSearch runs a k-NN search against the HNSW index.
func (s *Store) HNSWSearch(query []float32, k int) ([]SearchResult, error) {
	results, err := s.hnsw.Search(query, k)
	if err != nil {
		if s.hnsw.NeedsRebuild() {
			s.hnsw.RebuildOnce().Do(func() { go s.rebuildHNSW(context.Background()) })
		}
		return nil, err
	}
	return results, nil
}

func (s *Store) rebuildHNSW(ctx context.Context) {
	pairs, err := allEmbeddingVectors(ctx, s.embeddingsDB)
	if err != nil {
		return
	}
	_ = s.hnsw.RebuildFromEmbeddings(pairs)
}

// HNSWUpsert inserts or replaces a fragment's vector directly (bypassing
// the embeddings table), used by callers that manage embeddings storage
// themselves.
func (s *Store) HNSWUpsert(id string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hnsw.Upsert(id, vec)
}

// HNSWRemove drops a fragment's vector from the index.
func (s *Store) HNSWRemove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hnsw.Remove(id)
}

// GetFileRecord fetches the stored file record for path, or
// sql.ErrNoRows if the store has never ingested it.
func (s *Store) GetFileRecord(ctx context.Context, path string) (*FileRecord, error) {
	return getFileRecordTx(ctx, s.fragmentsDB, path)
}

// AllFileRecords returns every file record currently in the store, used
// by the change detector to find files that were removed from disk.
func (s *Store) AllFileRecords(ctx context.Context) ([]*FileRecord, error) {
	return allFileRecords(ctx, s.fragmentsDB)
}

// CurrentIndexVersion returns the store's monotonic index version,
// bumped on every UpsertFileFragments/DeleteFile.
func (s *Store) CurrentIndexVersion(ctx context.Context) (int64, error) {
	return currentIndexVersionTx(ctx, s.fragmentsDB)
}

// BumpIndexVersion increments index_version directly, used when a caller
// mutates the HNSW index without going through UpsertFileFragments (e.g.
// after a manual rebuild).
func (s *Store) BumpIndexVersion(ctx context.Context) error {
	tx, err := s.fragmentsDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := bumpIndexVersionTx(ctx, tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
