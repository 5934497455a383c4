package lang

import (
	"context"
	"errors"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
)

var errNilTree = errors.New("lang: parser returned a nil tree")

// tsProvider wraps a grammar from the tree-sitter/go-tree-sitter binding
// family, used for the five languages the bundled smacker grammars don't
// cover.
type tsProvider struct {
	lang *tree_sitter.Language
}

func newTSProvider(lang *tree_sitter.Language) *tsProvider {
	return &tsProvider{lang: lang}
}

func (p *tsProvider) Parse(ctx context.Context, source []byte) (Tree, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(p.lang); err != nil {
		return nil, err
	}
	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, errNilTree
	}
	return &tsTree{tree: tree}, nil
}

type tsTree struct {
	tree *tree_sitter.Tree
}

func (t *tsTree) RootNode() Node { return &tsNode{n: t.tree.RootNode()} }
func (t *tsTree) Close()         { t.tree.Close() }

type tsNode struct {
	n *tree_sitter.Node
}

func (n *tsNode) Type() string      { return n.n.Kind() }
func (n *tsNode) StartByte() uint32 { return n.n.StartByte() }
func (n *tsNode) EndByte() uint32   { return n.n.EndByte() }

func (n *tsNode) StartPoint() (uint32, uint32) {
	p := n.n.StartPosition()
	return p.Row, p.Column
}

func (n *tsNode) EndPoint() (uint32, uint32) {
	p := n.n.EndPosition()
	return p.Row, p.Column
}

func (n *tsNode) ChildCount() int { return int(n.n.ChildCount()) }

func (n *tsNode) Child(i int) Node {
	c := n.n.Child(uint(i))
	if c == nil {
		return nil
	}
	return &tsNode{n: c}
}

func (n *tsNode) FieldNameForChild(i int) string {
	return n.n.FieldNameForChild(uint(i))
}

func (n *tsNode) ChildByFieldName(name string) Node {
	c := n.n.ChildByFieldName(name)
	if c == nil {
		return nil
	}
	return &tsNode{n: c}
}

func newJavaDescriptor() (*Descriptor, error) {
	return &Descriptor{
		Name:       "java",
		Extensions: []string{".java"},
		SignificantNodeTypes: map[string]Kind{
			"method_declaration":      KindMethod,
			"constructor_declaration": KindMethod,
			"class_declaration":       KindClass,
			"record_declaration":      KindClass,
			"interface_declaration":   KindInterface,
			"enum_declaration":        KindEnum,
			"field_declaration":       KindVariable,
		},
		DecisionPointTypes: decisionSet(
			"if_statement", "for_statement", "enhanced_for_statement",
			"while_statement", "do_statement", "switch_label",
			"catch_clause", "ternary_expression", "binary_expression",
		),
		NameField:    "name",
		CommentToken: "//",
		Grammar:      newTSProvider(tree_sitter.NewLanguage(tree_sitter_java.Language())),
	}, nil
}

func newCSharpDescriptor() (*Descriptor, error) {
	return &Descriptor{
		Name:       "c-sharp",
		Extensions: []string{".cs"},
		SignificantNodeTypes: map[string]Kind{
			"method_declaration":      KindMethod,
			"constructor_declaration": KindMethod,
			"class_declaration":       KindClass,
			"interface_declaration":   KindInterface,
			"struct_declaration":      KindStruct,
			"record_declaration":      KindClass,
			"enum_declaration":        KindEnum,
			"property_declaration":    KindVariable,
			"field_declaration":       KindVariable,
			"namespace_declaration":   KindNamespace,
		},
		DecisionPointTypes: decisionSet(
			"if_statement", "for_statement", "foreach_statement",
			"while_statement", "do_statement", "switch_section",
			"catch_clause", "conditional_expression", "binary_expression",
		),
		NameField:    "name",
		CommentToken: "//",
		Grammar:      newTSProvider(tree_sitter.NewLanguage(tree_sitter_csharp.Language())),
	}, nil
}

func newCppDescriptor() (*Descriptor, error) {
	return &Descriptor{
		Name:       "cpp",
		Extensions: []string{".cpp", ".cc", ".cxx", ".c", ".h", ".hpp"},
		SignificantNodeTypes: map[string]Kind{
			"function_definition": KindFunction,
			"class_specifier":     KindClass,
			"struct_specifier":    KindStruct,
			"enum_specifier":      KindEnum,
			"namespace_definition": KindNamespace,
		},
		DecisionPointTypes: decisionSet(
			"if_statement", "for_statement", "while_statement",
			"do_statement", "case_statement", "catch_clause",
			"conditional_expression", "binary_expression",
		),
		NameField:    "declarator",
		CommentToken: "//",
		Grammar:      newTSProvider(tree_sitter.NewLanguage(tree_sitter_cpp.Language())),
	}, nil
}

func newPHPDescriptor() (*Descriptor, error) {
	return &Descriptor{
		Name:       "php",
		Extensions: []string{".php", ".phtml"},
		SignificantNodeTypes: map[string]Kind{
			"class_declaration":     KindClass,
			"interface_declaration": KindInterface,
			"trait_declaration":     KindClass,
			"enum_declaration":      KindEnum,
			"function_definition":   KindFunction,
			"method_declaration":    KindMethod,
			"namespace_definition":  KindNamespace,
		},
		DecisionPointTypes: decisionSet(
			"if_statement", "for_statement", "foreach_statement",
			"while_statement", "do_statement", "switch_statement",
			"catch_clause", "conditional_expression", "binary_expression",
		),
		NameField:    "name",
		CommentToken: "//",
		Grammar:      newTSProvider(tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP())),
	}, nil
}

func newRustDescriptor() (*Descriptor, error) {
	return &Descriptor{
		Name:       "rust",
		Extensions: []string{".rs"},
		SignificantNodeTypes: map[string]Kind{
			"function_item": KindFunction,
			"struct_item":   KindStruct,
			"enum_item":     KindEnum,
			"trait_item":    KindInterface,
			"type_item":     KindTypeDef,
			"mod_item":      KindNamespace,
		},
		DecisionPointTypes: decisionSet(
			"if_expression", "for_expression", "while_expression",
			"loop_expression", "match_arm", "binary_expression",
		),
		NameField:    "name",
		CommentToken: "//",
		Grammar:      newTSProvider(tree_sitter.NewLanguage(tree_sitter_rust.Language())),
	}, nil
}
