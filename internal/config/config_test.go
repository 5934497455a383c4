package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_HasSensibleDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 10, cfg.Snippet.Lines)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 16, cfg.HNSW.M)
	assert.Equal(t, 200, cfg.HNSW.EfConstruction)
	assert.Equal(t, 64, cfg.HNSW.EfSearch)
	assert.Equal(t, "cosine", cfg.HNSW.Metric)
	assert.Equal(t, int64(30_000), cfg.Lock.TimeoutMs)
	assert.Equal(t, 200, cfg.Watch.DebounceMs)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFilesReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoad_MergesPersistedConfigJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(DataDir(dir), 0o755))

	cfg := NewConfig()
	cfg.Retrieval.TopK = 12
	cfg.Embedding.ModelID = "nomic-embed-text"
	require.NoError(t, cfg.WriteJSON(ConfigPath(dir)))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.Retrieval.TopK)
	assert.Equal(t, "nomic-embed-text", loaded.Embedding.ModelID)
}

func TestLoad_YAMLOverlayOverridesConfigJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(DataDir(dir), 0o755))

	base := NewConfig()
	base.Retrieval.TopK = 12
	require.NoError(t, base.WriteJSON(ConfigPath(dir)))

	overlay := []byte("retrieval:\n  top_k: 25\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".codelens.yaml"), overlay, 0o644))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 25, loaded.Retrieval.TopK)
}

func TestLoad_EnvOverridesTakePrecedence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(DataDir(dir), 0o755))

	base := NewConfig()
	base.Retrieval.TopK = 12
	require.NoError(t, base.WriteJSON(ConfigPath(dir)))

	t.Setenv("CODELENS_TOP_K", "99")

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 99, loaded.Retrieval.TopK)
}

func TestLoad_RejectsInvalidMetric(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(DataDir(dir), 0o755))

	base := NewConfig()
	base.HNSW.Metric = "manhattan"
	require.NoError(t, base.WriteJSON(ConfigPath(dir)))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidate_RejectsNonPositiveHNSWParams(t *testing.T) {
	cfg := NewConfig()
	cfg.HNSW.M = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNegativeMaxFileSize(t *testing.T) {
	cfg := NewConfig()
	cfg.Parse.MaxFileSizeBytes = -1
	assert.Error(t, cfg.Validate())
}

func TestLoad_EnvOverridesMaxFileSizeBytes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(DataDir(dir), 0o755))

	t.Setenv("CODELENS_MAX_FILE_SIZE_BYTES", "1024")

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), loaded.Parse.MaxFileSizeBytes)
}

func TestFindProjectRoot_FindsGitDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestFindProjectRoot_FallsBackToStartDir(t *testing.T) {
	dir := t.TempDir()

	found, err := FindProjectRoot(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, found)
}

func TestWriteJSON_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.json")

	cfg := NewConfig()
	cfg.Embedding.Dimension = 768

	require.NoError(t, cfg.WriteJSON(path))

	loaded := NewConfig()
	require.NoError(t, loaded.loadJSON(path))
	assert.Equal(t, 768, loaded.Embedding.Dimension)
}
