package lang

// Kind is the language-neutral fragment classification. Every
// SignificantNodeTypes entry across every language maps to one of these
// strings, so a caller comparing fragments across languages compares kind
// strings, never raw tree-sitter node-type names ("same kind, same
// string").
type Kind string

const (
	KindFunction  Kind = "function"
	KindMethod    Kind = "method"
	KindClass     Kind = "class"
	KindInterface Kind = "interface"
	KindStruct    Kind = "struct"
	KindTypeDef   Kind = "typedef"
	KindEnum      Kind = "enum"
	KindConstant  Kind = "constant"
	KindVariable  Kind = "variable"
	KindNamespace Kind = "namespace"
)

// Descriptor is everything the parser and annotator need to know about one
// language: which grammar parses it, which node types bound a fragment and
// what kind they map to, and which node types count as a decision point
// when scoring cyclomatic complexity.
type Descriptor struct {
	Name       string
	Extensions []string

	// SignificantNodeTypes maps a tree-sitter node type name to the
	// language-neutral Kind it represents. Any node type absent from this
	// map is not a fragment boundary.
	SignificantNodeTypes map[string]Kind

	// DecisionPointTypes are node types that each add one to a fragment's
	// cyclomatic complexity (if/else-if/for/while/case/catch/ternary/
	// short-circuit, per language).
	DecisionPointTypes map[string]struct{}

	// NameField is the field name tree-sitter exposes on a significant
	// node for its identifier child (usually "name").
	NameField string

	// CommentToken is the single-line comment prefix used for truncation
	// sentinels in snippets.
	CommentToken string

	Grammar GrammarProvider
}

// IsDecisionPoint reports whether nodeType counts as a decision point for
// this language's complexity scoring.
func (d *Descriptor) IsDecisionPoint(nodeType string) bool {
	_, ok := d.DecisionPointTypes[nodeType]
	return ok
}

// KindOf returns the language-neutral kind for a node type, and whether
// that node type is a fragment boundary at all.
func (d *Descriptor) KindOf(nodeType string) (Kind, bool) {
	k, ok := d.SignificantNodeTypes[nodeType]
	return k, ok
}

func decisionSet(types ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}
