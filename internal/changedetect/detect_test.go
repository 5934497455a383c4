package changedetect

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens-dev/codelens/internal/store"
)

type fakeOracle struct {
	changed []string
	staged  []string
	ref     []string
}

func (f *fakeOracle) ChangedFiles(ctx context.Context) ([]string, error) { return f.changed, nil }
func (f *fakeOracle) StagedFiles(ctx context.Context) ([]string, error)  { return f.staged, nil }
func (f *fakeOracle) DiffAgainst(ctx context.Context, ref string) ([]string, error) {
	return f.ref, nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(dir, store.Config{Dimension: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDetect_GlobClassifiesAddedAndModified(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.go"), []byte("package b\n"), 0o644))

	s := openTestStore(t)
	// Pre-seed a.go with a stale hash so it classifies as Modified.
	require.NoError(t, s.UpsertFileFragments(context.Background(), "a.go", "stale-hash", time.Now(), nil, nil, nil))

	ws := &Workspace{Root: root, Store: s}
	results, err := Detect(context.Background(), Glob("**/*.go"), ws)
	require.NoError(t, err)

	byPath := map[string]Status{}
	for _, r := range results {
		byPath[r.Path] = r.Status
	}
	assert.Equal(t, Modified, byPath["a.go"])
	assert.Equal(t, Added, byPath["b.go"])
}

func TestDetect_ForceAllSkipsUnchangedFile(t *testing.T) {
	root := t.TempDir()
	content := []byte("package a\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), content, 0o644))

	s := openTestStore(t)
	require.NoError(t, s.UpsertFileFragments(context.Background(), "a.go", HashContent(content), time.Now(), nil, nil, nil))

	ws := &Workspace{Root: root, Store: s}
	results, err := Detect(context.Background(), ForceAll(), ws)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDetect_ForceAllDetectsRemoved(t *testing.T) {
	root := t.TempDir()

	s := openTestStore(t)
	require.NoError(t, s.UpsertFileFragments(context.Background(), "gone.go", "some-hash", time.Now(), nil, nil, nil))

	ws := &Workspace{Root: root, Store: s}
	results, err := Detect(context.Background(), ForceAll(), ws)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "gone.go", results[0].Path)
	assert.Equal(t, Removed, results[0].Status)
}

func TestDetect_ChangedSinceHeadUsesOracle(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n"), 0o644))

	s := openTestStore(t)
	ws := &Workspace{Root: root, Store: s, Oracle: &fakeOracle{changed: []string{"a.go"}}}

	results, err := Detect(context.Background(), ChangedSinceHead(), ws)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, Added, results[0].Status)
}

func TestDetect_ExcludeGlobFiltersMatches(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "vendor", "v.go"), []byte("package v\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n"), 0o644))

	s := openTestStore(t)
	ws := &Workspace{Root: root, Store: s, ExcludeGlobs: []string{"vendor/**"}}

	results, err := Detect(context.Background(), ForceAll(), ws)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.go", results[0].Path)
}

func TestDetect_PathsClassifiesOnlyGivenFilesWithoutWalking(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.go"), []byte("package b\n"), 0o644))

	s := openTestStore(t)
	ws := &Workspace{Root: root, Store: s}

	results, err := Detect(context.Background(), Paths([]string{"a.go"}), ws)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.go", results[0].Path)
	assert.Equal(t, Added, results[0].Status)
}

func TestDetect_PathsHonorsExcludeGlobs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "vendor", "v.go"), []byte("package v\n"), 0o644))

	s := openTestStore(t)
	ws := &Workspace{Root: root, Store: s, ExcludeGlobs: []string{"vendor/**"}}

	results, err := Detect(context.Background(), Paths([]string{"vendor/v.go"}), ws)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDetect_PathsDetectsRemoval(t *testing.T) {
	root := t.TempDir()
	s := openTestStore(t)
	require.NoError(t, s.UpsertFileFragments(context.Background(), "gone.go", "hash", time.Now(), nil, nil, nil))
	ws := &Workspace{Root: root, Store: s}

	results, err := Detect(context.Background(), Paths([]string{"gone.go"}), ws)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, Removed, results[0].Status)
}
