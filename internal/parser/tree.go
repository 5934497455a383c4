package parser

import (
	"strings"
	"sync"

	"github.com/codelens-dev/codelens/internal/lang"
)

// Tree is a parsed file plus everything the annotator needs to revisit
// individual fragments: the source bytes, the language descriptor used
// to parse it, and a fragment-ID -> syntax-node lookup built while
// walking for fragments. Call Close when done; it releases the
// underlying native tree-sitter tree.
type Tree struct {
	Root       lang.Node
	Source     []byte
	Descriptor *lang.Descriptor

	nodesByID map[string]lang.Node
	native    lang.Tree

	identCountsOnce sync.Once
	identCounts     map[string]int
}

// Close releases the native tree-sitter tree backing this Tree.
func (t *Tree) Close() {
	if t.native != nil {
		t.native.Close()
	}
}

// NodeFor returns the syntax node a given fragment ID was extracted
// from, if that fragment came from this Tree's own ParseTree call.
func (t *Tree) NodeFor(fragmentID string) (lang.Node, bool) {
	n, ok := t.nodesByID[fragmentID]
	return n, ok
}

// IdentifierCounts returns how many times each identifier-like leaf
// token occurs across the whole file, computed once per Tree and
// memoized. The annotator's dependency extraction uses this as the
// file's import/usage table (§4.4): a name used only where it's
// referenced is more likely a local than a dependency.
func (t *Tree) IdentifierCounts() map[string]int {
	t.identCountsOnce.Do(func() {
		counts := make(map[string]int)
		var walk func(n lang.Node)
		walk = func(n lang.Node) {
			if n == nil {
				return
			}
			if n.ChildCount() == 0 && isIdentifierNodeType(n.Type()) {
				start, end := n.StartByte(), n.EndByte()
				if start < end && int(end) <= len(t.Source) {
					counts[string(t.Source[start:end])]++
				}
			}
			for i := 0; i < n.ChildCount(); i++ {
				walk(n.Child(i))
			}
		}
		walk(t.Root)
		t.identCounts = counts
	})
	return t.identCounts
}

func isIdentifierNodeType(t string) bool {
	return strings.Contains(t, "identifier") || t == "name" || t == "variable_name"
}
