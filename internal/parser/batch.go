package parser

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/codelens-dev/codelens/internal/store"
)

// FileInput is one file queued for parsing.
type FileInput struct {
	Path     string
	Source   []byte
	Language string
}

// FileResult pairs a FileInput's path with its fragments or parse error.
// A per-file error never aborts the batch (§4.3): BatchParse collects
// every result, successful or not, and the caller decides what to do
// with failures (log and skip, per spec).
type FileResult struct {
	Path      string
	Fragments []*store.Fragment
	Err       error
}

// BatchParse parses every input concurrently across min(runtime.NumCPU(),
// maxWorkers) goroutines, grounded on §4.3's worker-pool concurrency
// model (default P = min(cores, 8)). Pass 8 for maxWorkers to match the
// spec's default.
func (p *Parser) BatchParse(ctx context.Context, inputs []FileInput, maxWorkers int) []FileResult {
	workers := runtime.NumCPU()
	if maxWorkers > 0 && maxWorkers < workers {
		workers = maxWorkers
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]FileResult, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			frags, err := p.Parse(gctx, in.Path, in.Source, in.Language)
			results[i] = FileResult{Path: in.Path, Fragments: frags, Err: err}
			return nil // per-file errors are carried in FileResult, never abort the batch
		})
	}
	_ = g.Wait()

	return results
}
