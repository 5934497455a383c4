package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	codelenserrors "github.com/codelens-dev/codelens/internal/errors"
)

// DefaultRuntimeURL is the default address of the external embedding
// runtime this client talks to. Overridable via NewRuntimeEmbedder's cfg.
const DefaultRuntimeURL = "http://127.0.0.1:11535"

// DefaultRuntimeTimeout bounds a single embed_batch HTTP call.
const DefaultRuntimeTimeout = 30 * time.Second

// RuntimeConfig configures a RuntimeEmbedder.
type RuntimeConfig struct {
	// BaseURL is the embedding runtime's address, e.g. "http://127.0.0.1:11535".
	BaseURL string
	// ModelID names the model the runtime should serve embed_batch with.
	ModelID string
	// Dimensions is D, the runtime's fixed output vector length.
	Dimensions int
	// Timeout bounds a single HTTP call to the runtime.
	Timeout time.Duration
}

// embedBatchRequest is the wire request to the runtime's embed_batch
// endpoint, per §6's "external embedding runtime" contract.
type embedBatchRequest struct {
	Model string   `json:"model"`
	Texts []string `json:"texts"`
}

type embedBatchResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// RuntimeEmbedder is a thin HTTP client to an external embedding runtime
// (§6: "embed_batch(texts) -> [vector<f32; D>]"). It uses only two
// endpoints of the runtime: this batch call and the GET /health probe
// behind Available, per §9's design note to treat the model runtime as an
// external resource loaded once per process. Adapted from the teacher's
// embed.OllamaEmbedder HTTP-client shape, trimmed to those two endpoints
// and routed through this module's shared
// errors.Retry backoff instead of a bespoke per-embedder retry loop.
type RuntimeEmbedder struct {
	client *http.Client
	cfg    RuntimeConfig

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*RuntimeEmbedder)(nil)

// NewRuntimeEmbedder builds a client for the external embedding runtime.
// It does not contact the runtime until the first Embed/EmbedBatch call.
func NewRuntimeEmbedder(cfg RuntimeConfig) *RuntimeEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultRuntimeURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRuntimeTimeout
	}
	return &RuntimeEmbedder{
		client: &http.Client{Transport: &http.Transport{
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     10 * time.Second,
		}},
		cfg: cfg,
	}
}

// Embed generates an embedding for a single text.
func (e *RuntimeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch sends texts to the runtime's embed_batch endpoint, retrying
// the whole batch with bounded exponential backoff on transient failure.
func (e *RuntimeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, codelenserrors.New(codelenserrors.ErrCodeEmbedFailed, "runtime embedder is closed", nil)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var result [][]float32
	err := retryEmbedCall(ctx, func() error {
		vecs, err := e.doEmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		result = vecs
		return nil
	})
	if err != nil {
		return nil, codelenserrors.New(codelenserrors.ErrCodeEmbedFailed,
			fmt.Sprintf("embedding runtime failed for %d text(s)", len(texts)), err)
	}
	return result, nil
}

func (e *RuntimeEmbedder) doEmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(embedBatchRequest{Model: e.cfg.ModelID, Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed_batch request: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, e.cfg.BaseURL+"/embed_batch", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed_batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call embedding runtime: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding runtime returned %d: %s", resp.StatusCode, string(msg))
	}

	var parsed embedBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embed_batch response: %w", err)
	}
	if len(parsed.Vectors) != len(texts) {
		return nil, fmt.Errorf("embedding runtime returned %d vectors for %d texts", len(parsed.Vectors), len(texts))
	}
	for _, v := range parsed.Vectors {
		if e.cfg.Dimensions != 0 && len(v) != e.cfg.Dimensions {
			return nil, fmt.Errorf("embedding runtime returned vector of length %d, expected %d", len(v), e.cfg.Dimensions)
		}
	}
	return parsed.Vectors, nil
}

// Dimensions returns the runtime's configured output vector length.
func (e *RuntimeEmbedder) Dimensions() int { return e.cfg.Dimensions }

// ModelName returns the runtime's configured model identifier.
func (e *RuntimeEmbedder) ModelName() string { return e.cfg.ModelID }

// Available reports whether the runtime responds to a health probe.
func (e *RuntimeEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, e.cfg.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Close releases idle connections held by the HTTP client.
func (e *RuntimeEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if t, ok := e.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	return nil
}
