// Package retriever answers a query by embedding it, searching the HNSW
// index, hydrating hits from the Store, and ranking. Generalizes the
// teacher's internal/search/hybrid.go retrieval pipeline and
// internal/mcp/format.go output formatting to codelens's single
// dense-vector retrieval path.
package retriever

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// DefaultK is the default result count when Options.K is zero.
const DefaultK = 5

// DefaultOversample multiplies k when sizing the HNSW candidate pool.
const DefaultOversample = 3

// Format names the output rendering requested by a caller.
type Format string

const (
	FormatJSON     Format = "json"
	FormatPlain    Format = "plain"
	FormatMarkdown Format = "markdown"
)

// Options are the caller-supplied retrieval parameters from §4.6.
type Options struct {
	K            int
	MinScore     float32
	FileFilter   string // exact or glob match against Result.FilePath; empty disables
	KindFilter   string // exact match against Result.Kind; empty disables
	OutputFormat Format
	Oversample   int // defaults to DefaultOversample
	Margin       int // defaults to 2*K
}

// canonicalize fills in defaults and returns a copy, never mutating the
// caller's Options. Canonicalization happens before the cache key is
// computed so that equivalent requests (e.g. K=0 and K=5) share a cache
// entry.
func (o Options) canonicalize() Options {
	c := o
	if c.K <= 0 {
		c.K = DefaultK
	}
	if c.Oversample <= 0 {
		c.Oversample = DefaultOversample
	}
	if c.Margin <= 0 {
		c.Margin = 2 * c.K
	}
	if c.OutputFormat == "" {
		c.OutputFormat = FormatJSON
	}
	return c
}

// candidatePoolSize is k' from §4.6: max(k*oversample, k+margin).
func (o Options) candidatePoolSize() int {
	byOversample := o.K * o.Oversample
	byMargin := o.K + o.Margin
	if byOversample > byMargin {
		return byOversample
	}
	return byMargin
}

// cacheKey builds a deterministic key from the canonicalized query and
// options, so two calls with the same effective request share a cache
// entry regardless of field order or default-filling.
func cacheKey(query string, o Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "q=%s|k=%d|min=%f|file=%s|kind=%s|fmt=%s|os=%d|mg=%d",
		strings.TrimSpace(query), o.K, o.MinScore, o.FileFilter, o.KindFilter, o.OutputFormat, o.Oversample, o.Margin)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// sortResults applies §4.6's tie-break comparator: (score desc, file_path
// asc, start_line asc).
func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		return a.StartLine < b.StartLine
	})
}
