package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuntime(t *testing.T, handler http.HandlerFunc) (*RuntimeEmbedder, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	e := NewRuntimeEmbedder(RuntimeConfig{BaseURL: srv.URL, ModelID: "test-model", Dimensions: 3})
	return e, srv.Close
}

func TestRuntimeEmbedder_EmbedBatchParsesVectors(t *testing.T) {
	e, closeSrv := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedBatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		vecs := make([][]float32, len(req.Texts))
		for i := range req.Texts {
			vecs[i] = []float32{1, 2, 3}
		}
		require.NoError(t, json.NewEncoder(w).Encode(embedBatchResponse{Vectors: vecs}))
	})
	defer closeSrv()

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2, 3}, {1, 2, 3}}, vecs)
}

func TestRuntimeEmbedder_DimensionMismatchErrors(t *testing.T) {
	e, closeSrv := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedBatchResponse{Vectors: [][]float32{{1, 2}}})
	})
	defer closeSrv()

	_, err := e.EmbedBatch(context.Background(), []string{"a"})
	assert.Error(t, err)
}

func TestRuntimeEmbedder_ServerErrorIsRetriedThenFails(t *testing.T) {
	calls := 0
	e, closeSrv := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer closeSrv()

	_, err := e.EmbedBatch(context.Background(), []string{"a"})
	assert.Error(t, err)
	assert.Greater(t, calls, 1, "transient failures should be retried")
}

func TestRuntimeEmbedder_AvailableReflectsHealthEndpoint(t *testing.T) {
	e, closeSrv := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	defer closeSrv()

	assert.True(t, e.Available(context.Background()))
	require.NoError(t, e.Close())
	assert.False(t, e.Available(context.Background()))
}

func TestRuntimeEmbedder_EmbedSingleUsesBatchOfOne(t *testing.T) {
	e, closeSrv := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedBatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Texts, 1)
		_ = json.NewEncoder(w).Encode(embedBatchResponse{Vectors: [][]float32{{0.5, 0.5, 0.5}}})
	})
	defer closeSrv()

	v, err := e.Embed(context.Background(), "solo")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5, 0.5}, v)
}
