package cmd

import (
	"os"
	"path/filepath"
	"time"

	"github.com/codelens-dev/codelens/internal/cache"
	"github.com/codelens-dev/codelens/internal/config"
	"github.com/codelens-dev/codelens/internal/embed"
	"github.com/codelens-dev/codelens/internal/store"
)

// resolveRoot finds the workspace root for the current directory,
// falling back to the current directory itself when no enclosing .git
// or .codelens data directory exists yet.
func resolveRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root, err := config.FindProjectRoot(cwd)
	if err != nil {
		return cwd, nil
	}
	return root, nil
}

// newEmbedder builds the embedder named by cfg.Embedding.ModelID. offline
// (or an unset model id) falls back to the dependency-free static
// embedder, matching the teacher's --offline "skip model download" flag.
func newEmbedder(cfg *config.Config, offline bool) (embed.Embedder, int) {
	if offline || cfg.Embedding.ModelID == "" {
		e := embed.NewStaticEmbedder()
		return e, e.Dimensions()
	}

	dim := cfg.Embedding.Dimension
	if dim == 0 {
		dim = embed.StaticDimensions
	}
	e := embed.NewRuntimeEmbedder(embed.RuntimeConfig{
		BaseURL:    embed.DefaultRuntimeURL,
		ModelID:    cfg.Embedding.ModelID,
		Dimensions: dim,
		Timeout:    embed.DefaultRuntimeTimeout,
	})
	return e, dim
}

// openStore opens the workspace store rooted at dataDir, sized for dim
// (the dimension the chosen embedder produces).
func openStore(dataDir string, cfg *config.Config, dim int) (*store.Store, error) {
	return store.Open(dataDir, store.Config{
		Dimension:    dim,
		HNSWM:        cfg.HNSW.M,
		HNSWEfSearch: cfg.HNSW.EfSearch,
		HNSWMetric:   cfg.HNSW.Metric,
		LockTimeout:  time.Duration(cfg.Lock.TimeoutMs) * time.Millisecond,
	})
}

// openCache opens the workspace's three-tier cache rooted at
// <dataDir>/cache, wired to st's index_version for staleness checks.
func openCache(dataDir string, cfg *config.Config, st *store.Store) (*cache.Cache, error) {
	return cache.Open(filepath.Join(dataDir, "cache"), cache.Config{
		L1MaxEntries: cfg.Cache.L1.MaxEntries,
		L1TTL:        time.Duration(cfg.Cache.L1.TTLMs) * time.Millisecond,
		L2MaxBytes:   cfg.Cache.L2.MaxBytes,
		L2TTL:        time.Duration(cfg.Cache.L2.TTLMs) * time.Millisecond,
		L3TTL:        time.Duration(cfg.Cache.L3.TTLMs) * time.Millisecond,
	}, st.CurrentIndexVersion)
}

func ensureDataDir(dataDir string) error {
	return os.MkdirAll(dataDir, 0o755)
}

func workspaceInitialized(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, "fragments.db"))
	return err == nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
