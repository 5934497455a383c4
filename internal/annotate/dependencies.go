package annotate

import (
	"strings"

	"github.com/codelens-dev/codelens/internal/lang"
	"github.com/codelens-dev/codelens/internal/parser"
)

// extractDependencies returns the ordered, deduplicated list of
// identifiers node's subtree references but that also occur elsewhere in
// the file — "resolved against a per-file import/usage table" per §4.4:
// an identifier mentioned only once, inside this one fragment, is most
// likely a local parameter or loop variable rather than a real
// dependency, so tree.IdentifierCounts (the file's whole-tree occurrence
// table, built once per file and memoized) is what "resolves" a
// candidate into a reported dependency. Best-effort: a file whose
// identifiers don't retokenize the same way yields an empty list, never
// an error.
func extractDependencies(tree *parser.Tree, node lang.Node, selfName string) []string {
	counts := tree.IdentifierCounts()

	seen := make(map[string]struct{})
	ordered := []string{}

	var walk func(n lang.Node)
	walk = func(n lang.Node) {
		if n == nil {
			return
		}
		if n.ChildCount() == 0 && isIdentifierNodeType(n.Type()) {
			text := nodeText(tree.Source, n)
			if text != "" && text != selfName {
				if _, dup := seen[text]; !dup && counts[text] > 1 {
					seen[text] = struct{}{}
					ordered = append(ordered, text)
				}
			}
		}
		for i := 0; i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)

	return ordered
}

func isIdentifierNodeType(t string) bool {
	return strings.Contains(t, "identifier") || t == "name" || t == "variable_name"
}
