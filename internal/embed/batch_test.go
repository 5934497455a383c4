package embed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens-dev/codelens/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(dir, store.Config{
		Dimension:    StaticDimensions,
		HNSWM:        16,
		HNSWEfSearch: 64,
		HNSWMetric:   "cosine",
		LockTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type failingEmbedder struct{ err error }

func (f *failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, f.err
}
func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, f.err
}
func (f *failingEmbedder) Dimensions() int               { return StaticDimensions }
func (f *failingEmbedder) ModelName() string              { return "failing" }
func (f *failingEmbedder) Available(ctx context.Context) bool { return false }
func (f *failingEmbedder) Close() error                   { return nil }

func TestBatcher_Batch_UpsertsIntoStoreAndHNSW(t *testing.T) {
	st := openTestStore(t)
	b := NewBatcher(NewStaticEmbedder(), st, "v1", 2)

	pairs := []FragmentText{
		{FragmentID: "f1", Text: BuildText("Function calcTax with 2 parameter(s)", "func calcTax(income, rate int) int")},
		{FragmentID: "f2", Text: BuildText("Function render with 0 parameter(s)", "func render() string")},
	}

	require.NoError(t, b.Batch(context.Background(), pairs))

	results, err := st.HNSWSearch(mustEmbed(t, "Function calcTax with 2 parameter(s) func calcTax(income, rate int) int"), 1)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "f1", results[0].FragmentID)
}

func mustEmbed(t *testing.T, text string) []float32 {
	t.Helper()
	v, err := NewStaticEmbedder().Embed(context.Background(), text)
	require.NoError(t, err)
	return v
}

func TestBatcher_Batch_FailurePreservesPriorEmbeddings(t *testing.T) {
	st := openTestStore(t)
	good := NewBatcher(NewStaticEmbedder(), st, "v1", 2)

	require.NoError(t, good.Batch(context.Background(), []FragmentText{
		{FragmentID: "f1", Text: "stable fragment text"},
	}))

	failing := NewBatcher(&failingEmbedder{err: errors.New("runtime down")}, st, "v1", 2)
	err := failing.Batch(context.Background(), []FragmentText{
		{FragmentID: "f2", Text: "new fragment text"},
	})
	assert.Error(t, err)

	results, err := st.HNSWSearch(mustEmbed(t, "stable fragment text"), 5)
	require.NoError(t, err)

	var sawF1, sawF2 bool
	for _, r := range results {
		if r.FragmentID == "f1" {
			sawF1 = true
		}
		if r.FragmentID == "f2" {
			sawF2 = true
		}
	}
	assert.True(t, sawF1, "prior embedding f1 must survive a later failed batch")
	assert.False(t, sawF2, "failed batch must not leave a partial handle behind")
}

func TestBatcher_Batch_EmptyPairsIsNoop(t *testing.T) {
	st := openTestStore(t)
	b := NewBatcher(NewStaticEmbedder(), st, "v1", 2)
	assert.NoError(t, b.Batch(context.Background(), nil))
}

func TestBuildText_JoinsSummaryAndSignature(t *testing.T) {
	assert.Equal(t, "summary sig", BuildText("summary", "sig"))
	assert.Equal(t, "summary", BuildText("summary", ""))
	assert.Equal(t, "sig", BuildText("", "sig"))
}
