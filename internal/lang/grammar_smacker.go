package lang

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// smackerProvider wraps the four grammars smacker/go-tree-sitter bundles
// as pure-Go bindings, the same four the teacher's chunk.LanguageRegistry
// registers.
type smackerProvider struct {
	tsLang *sitter.Language
}

func (p *smackerProvider) Parse(ctx context.Context, source []byte) (Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(p.tsLang)
	defer parser.Close()

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, err
	}
	return &smackerTree{tree: tree}, nil
}

type smackerTree struct {
	tree *sitter.Tree
}

func (t *smackerTree) RootNode() Node { return &smackerNode{n: t.tree.RootNode()} }
func (t *smackerTree) Close()         { t.tree.Close() }

type smackerNode struct {
	n *sitter.Node
}

func (n *smackerNode) Type() string      { return n.n.Type() }
func (n *smackerNode) StartByte() uint32 { return n.n.StartByte() }
func (n *smackerNode) EndByte() uint32   { return n.n.EndByte() }

func (n *smackerNode) StartPoint() (uint32, uint32) {
	p := n.n.StartPoint()
	return p.Row, p.Column
}

func (n *smackerNode) EndPoint() (uint32, uint32) {
	p := n.n.EndPoint()
	return p.Row, p.Column
}

func (n *smackerNode) ChildCount() int { return int(n.n.ChildCount()) }

func (n *smackerNode) Child(i int) Node {
	c := n.n.Child(i)
	if c == nil {
		return nil
	}
	return &smackerNode{n: c}
}

func (n *smackerNode) FieldNameForChild(i int) string {
	return n.n.FieldNameForChild(i)
}

func (n *smackerNode) ChildByFieldName(name string) Node {
	c := n.n.ChildByFieldName(name)
	if c == nil {
		return nil
	}
	return &smackerNode{n: c}
}

func newGoDescriptor() (*Descriptor, error) {
	return &Descriptor{
		Name:       "go",
		Extensions: []string{".go"},
		SignificantNodeTypes: map[string]Kind{
			"function_declaration": KindFunction,
			"method_declaration":   KindMethod,
			"type_declaration":     KindTypeDef,
			"const_declaration":    KindConstant,
			"var_declaration":      KindVariable,
		},
		DecisionPointTypes: decisionSet(
			"if_statement", "for_statement", "expression_case",
			"default_case", "communication_case", "type_case",
			"binary_expression",
		),
		NameField:    "name",
		CommentToken: "//",
		Grammar:      &smackerProvider{tsLang: golang.GetLanguage()},
	}, nil
}

func newPythonDescriptor() (*Descriptor, error) {
	return &Descriptor{
		Name:       "python",
		Extensions: []string{".py"},
		SignificantNodeTypes: map[string]Kind{
			"function_definition": KindFunction,
			"class_definition":    KindClass,
		},
		DecisionPointTypes: decisionSet(
			"if_statement", "elif_clause", "for_statement",
			"while_statement", "except_clause", "conditional_expression",
			"boolean_operator",
		),
		NameField:    "name",
		CommentToken: "#",
		Grammar:      &smackerProvider{tsLang: python.GetLanguage()},
	}, nil
}

func newJavaScriptDescriptor() (*Descriptor, error) {
	return &Descriptor{
		Name:       "javascript",
		Extensions: []string{".js", ".mjs", ".jsx"},
		SignificantNodeTypes: map[string]Kind{
			"function_declaration": KindFunction,
			"function":             KindFunction,
			"method_definition":    KindMethod,
			"class_declaration":    KindClass,
			"lexical_declaration":  KindVariable,
			"variable_declaration": KindVariable,
		},
		DecisionPointTypes: decisionSet(
			"if_statement", "for_statement", "for_in_statement",
			"while_statement", "do_statement", "switch_case",
			"catch_clause", "ternary_expression", "binary_expression",
		),
		NameField:    "name",
		CommentToken: "//",
		Grammar:      &smackerProvider{tsLang: javascript.GetLanguage()},
	}, nil
}

func newTypeScriptDescriptor() (*Descriptor, error) {
	return &Descriptor{
		Name:       "typescript",
		Extensions: []string{".ts"},
		SignificantNodeTypes: map[string]Kind{
			"function_declaration":   KindFunction,
			"method_definition":      KindMethod,
			"class_declaration":      KindClass,
			"interface_declaration":  KindInterface,
			"type_alias_declaration": KindTypeDef,
			"lexical_declaration":    KindVariable,
			"variable_declaration":   KindVariable,
		},
		DecisionPointTypes: decisionSet(
			"if_statement", "for_statement", "for_in_statement",
			"while_statement", "do_statement", "switch_case",
			"catch_clause", "ternary_expression", "binary_expression",
		),
		NameField:    "name",
		CommentToken: "//",
		Grammar:      &smackerProvider{tsLang: typescript.GetLanguage()},
	}, nil
}

func newTSXDescriptor() (*Descriptor, error) {
	ts, _ := newTypeScriptDescriptor()
	return &Descriptor{
		Name:                 "tsx",
		Extensions:           []string{".tsx"},
		SignificantNodeTypes: ts.SignificantNodeTypes,
		DecisionPointTypes:   ts.DecisionPointTypes,
		NameField:            ts.NameField,
		CommentToken:         ts.CommentToken,
		Grammar:              &smackerProvider{tsLang: tsx.GetLanguage()},
	}, nil
}
