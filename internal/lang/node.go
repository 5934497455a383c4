// Package lang describes the languages codelens can parse: the
// tree-sitter grammar each one binds to, which syntax node types count as
// a fragment boundary, which ones count as a decision point for
// complexity scoring, and the language-neutral kind each node type maps
// to.
package lang

import "context"

// Node is a minimal tree-walking surface that abstracts over the two
// tree-sitter binding families codelens depends on: smacker/go-tree-sitter
// (four legacy-bundled grammars) and tree-sitter/go-tree-sitter (the
// grammar-package family). Parser code walks trees against this
// interface and never imports either binding directly.
type Node interface {
	Type() string
	StartByte() uint32
	EndByte() uint32
	StartPoint() (row, col uint32)
	EndPoint() (row, col uint32)
	ChildCount() int
	Child(i int) Node
	FieldNameForChild(i int) string
	ChildByFieldName(name string) Node
}

// Tree is a parsed syntax tree. Close releases any native resources held
// by the underlying binding.
type Tree interface {
	RootNode() Node
	Close()
}

// GrammarProvider parses source bytes for one language into a Tree. Each
// provider wraps exactly one tree-sitter binding family; a provider whose
// grammar failed to initialize (e.g. a binding that panics on an
// unsupported platform) is simply never registered, so a broken grammar
// for one language cannot block the rest.
type GrammarProvider interface {
	Parse(ctx context.Context, source []byte) (Tree, error)
}
