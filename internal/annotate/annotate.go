// Package annotate computes the four derived metadata fields a Fragment
// needs before it can be embedded and retrieved: signature, summary,
// cyclomatic complexity, and dependencies, plus a truncated snippet.
// Generalizes the teacher's chunk.SymbolExtractor (per-language name/
// signature extraction) and code_chunker.go's truncation idiom.
package annotate

import (
	"context"
	"fmt"
	"strings"

	"github.com/codelens-dev/codelens/internal/lang"
	"github.com/codelens-dev/codelens/internal/parser"
	"github.com/codelens-dev/codelens/internal/store"
)

// DefaultSnippetLines is S in §4.4's snippet truncation rule.
const DefaultSnippetLines = 10

// Annotate computes signature, summary, complexity, dependencies, and
// snippet for frag, using tree to locate frag's syntax node. tree must
// be the open Tree frag was extracted from (parser.ParseTree's second
// return value corresponds to fragments drawn from its first).
func Annotate(ctx context.Context, tree *parser.Tree, frag *store.Fragment) (*store.Annotation, error) {
	node, ok := tree.NodeFor(frag.ID)
	if !ok {
		return nil, fmt.Errorf("annotate: no syntax node recorded for fragment %s", frag.ID)
	}

	text := nodeText(tree.Source, node)
	signature := extractSignature(text, tree.Descriptor)
	paramCount := countParameters(text, tree.Descriptor)
	summary := buildSummary(frag.Kind, frag.Name, paramCount)
	complexity := countComplexity(node, tree.Descriptor, tree.Source)
	deps := extractDependencies(tree, node, frag.Name)
	snippet := truncateSnippet(text, DefaultSnippetLines, tree.Descriptor.CommentToken)

	return &store.Annotation{
		FragmentID:   frag.ID,
		Signature:    signature,
		Summary:      summary,
		Complexity:   complexity,
		Dependencies: deps,
		Snippet:      snippet,
		Language:     frag.Language,
		FilePath:     frag.FilePath,
	}, nil
}

func nodeText(source []byte, n lang.Node) string {
	start, end := n.StartByte(), n.EndByte()
	if start >= end || int(end) > len(source) {
		return ""
	}
	return string(source[start:end])
}

// buildSummary implements §4.4's deterministic template, degrading
// gracefully when name is empty.
func buildSummary(kind, name string, paramCount int) string {
	kindWord := kindWord(kind)
	if name == "" {
		return fmt.Sprintf("%s with %d parameter(s)", kindWord, paramCount)
	}
	return fmt.Sprintf("%s %s with %d parameter(s)", kindWord, name, paramCount)
}

func kindWord(kind string) string {
	if kind == "" {
		return "fragment"
	}
	return strings.ToUpper(kind[:1]) + kind[1:]
}
