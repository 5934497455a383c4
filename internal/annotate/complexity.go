package annotate

import (
	"strings"

	"github.com/codelens-dev/codelens/internal/lang"
)

// ambiguousBinaryTypes are decision-point node types that cover every
// infix binary operator, not just the short-circuit ones (&&, ||) the
// complexity rule cares about — every tree-sitter grammar in the
// registry folds "a + b" and "a && b" into the same "binary_expression"
// node type. Counting that type unconditionally would score ordinary
// arithmetic as a decision point, so these types get an extra operator-
// token check (operatorIsShortCircuit) before they count. Python's
// "boolean_operator" is its own distinct node type in that grammar and
// needs no such check.
var ambiguousBinaryTypes = map[string]struct{}{
	"binary_expression": {},
}

// countComplexity implements Testable Property 5: exactly 1 + D, where D
// is the number of decision-point nodes in root's subtree, not counting
// nested function/method bodies against their enclosing fragment.
func countComplexity(root lang.Node, desc *lang.Descriptor, source []byte) int {
	d := 0
	var walk func(n lang.Node, isRoot bool)
	walk = func(n lang.Node, isRoot bool) {
		if n == nil {
			return
		}
		if !isRoot {
			if kind, ok := desc.KindOf(n.Type()); ok && (kind == lang.KindFunction || kind == lang.KindMethod) {
				return // nested function/method: its decision points belong to it, not us
			}
		}
		if desc.IsDecisionPoint(n.Type()) {
			if _, ambiguous := ambiguousBinaryTypes[n.Type()]; !ambiguous || operatorIsShortCircuit(n, source) {
				d++
			}
		}
		for i := 0; i < n.ChildCount(); i++ {
			walk(n.Child(i), false)
		}
	}
	walk(root, true)
	return 1 + d
}

// operatorIsShortCircuit reports whether a generic binary-expression
// node's infix operator token is "&&" or "||". The operator sits in the
// byte range between the node's first and last child (whether or not the
// grammar also exposes it as its own child node), so this works without
// per-language field names.
func operatorIsShortCircuit(n lang.Node, source []byte) bool {
	cc := n.ChildCount()
	if cc < 2 {
		return false
	}
	first, last := n.Child(0), n.Child(cc-1)
	if first == nil || last == nil {
		return false
	}
	gapStart, gapEnd := first.EndByte(), last.StartByte()
	if gapStart >= gapEnd || int(gapEnd) > len(source) {
		return false
	}
	op := strings.TrimSpace(string(source[gapStart:gapEnd]))
	return op == "&&" || op == "||"
}
