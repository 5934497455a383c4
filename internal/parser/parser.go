// Package parser walks a source file's syntax tree (via internal/lang's
// grammar abstraction) into the normalized fragment stream described in
// §4.3: one store.Fragment per significant node, IDs stable across
// reparses, parent links to the nearest significant ancestor.
package parser

import (
	"context"
	"fmt"

	codelenserrors "github.com/codelens-dev/codelens/internal/errors"
	"github.com/codelens-dev/codelens/internal/lang"
	"github.com/codelens-dev/codelens/internal/store"
)

// DefaultMaxFileSizeBytes is the size limit applied when a Parser's
// caller never configures one, matching config.ParseConfig's default
// (§8's "file exceeding the configured size limit" boundary).
const DefaultMaxFileSizeBytes = 5 * 1024 * 1024

// Parser extracts fragments from source files using a lang.Registry. The
// teacher's chunk.Parser holds one *sitter.Parser and swaps its language
// per call; codelens instead delegates to each lang.Descriptor's own
// GrammarProvider, which opens a fresh native parser per Parse call,
// because the two binding families in the registry are not safe to share
// a single native parser handle across languages or goroutines.
type Parser struct {
	registry    *lang.Registry
	maxFileSize int64
}

// New builds a Parser backed by registry. Pass lang.Default() for the
// process-wide registry.
func New(registry *lang.Registry) *Parser {
	return &Parser{registry: registry, maxFileSize: DefaultMaxFileSizeBytes}
}

// SetMaxFileSize overrides the file-size limit ParseTree enforces. A
// non-positive n disables the check.
func (p *Parser) SetMaxFileSize(n int64) {
	p.maxFileSize = n
}

// Parse extracts the fragment stream for one file and immediately
// releases the native tree, for callers (e.g. batch re-indexing) that
// only need the fragment list. Callers that also need to annotate
// fragments from the same parse should use ParseTree instead, which
// keeps the tree open for node lookups.
func (p *Parser) Parse(ctx context.Context, filePath string, source []byte, language string) ([]*store.Fragment, error) {
	tree, frags, err := p.ParseTree(ctx, filePath, source, language)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	return frags, nil
}

// ParseTree parses source and returns both the fragment stream and the
// open Tree those fragments were extracted from, so a caller can look up
// each fragment's syntax node (via Tree.NodeFor) to annotate it. The
// caller owns the returned Tree and must Close it.
//
// A failure of the grammar's own parser surfaces as ErrCodeParseError.
// Syntax errors inside the source are not detected: the grammar recovers,
// the tree carries error nodes, and the fragments found in it are
// returned with a nil error. An unsupported or
// unavailable language surfaces as ErrCodeUnsupportedLang /
// ErrCodeGrammarUnavailable so the caller can skip just this file's
// language, never abort the batch. A file over the configured size limit
// (SetMaxFileSize, default DefaultMaxFileSizeBytes) surfaces as
// ErrCodeFileTooLarge before the native parser ever sees it, the same
// per-file skip-and-log path callers already use for parse errors.
func (p *Parser) ParseTree(ctx context.Context, filePath string, source []byte, language string) (*Tree, []*store.Fragment, error) {
	if p.maxFileSize > 0 && int64(len(source)) > p.maxFileSize {
		return nil, nil, codelenserrors.New(codelenserrors.ErrCodeFileTooLarge,
			fmt.Sprintf("%s: %d bytes exceeds limit of %d bytes", filePath, len(source), p.maxFileSize), nil)
	}

	desc, ok := p.registry.ByName(language)
	if !ok {
		return nil, nil, codelenserrors.New(codelenserrors.ErrCodeUnsupportedLang, "unsupported language: "+language, nil)
	}
	if desc.Grammar == nil {
		return nil, nil, codelenserrors.New(codelenserrors.ErrCodeGrammarUnavailable, "no grammar registered for language: "+language, nil)
	}

	native, err := desc.Grammar.Parse(ctx, source)
	if err != nil {
		return nil, nil, codelenserrors.Wrap(codelenserrors.ErrCodeParseError, err)
	}

	w := &walker{desc: desc, source: source, filePath: filePath, language: language, nodesByID: make(map[string]lang.Node)}
	w.walk(native.RootNode(), "")

	tree := &Tree{
		Root:       native.RootNode(),
		Source:     source,
		Descriptor: desc,
		nodesByID:  w.nodesByID,
		native:     native,
	}
	return tree, w.fragments, nil
}

// walker accumulates fragments depth-first, tracking the nearest
// enclosing significant node's ID so each new fragment can record its
// parent.
type walker struct {
	desc      *lang.Descriptor
	source    []byte
	filePath  string
	language  string
	fragments []*store.Fragment
	nodesByID map[string]lang.Node
}

func (w *walker) walk(n lang.Node, parentID string) {
	if n == nil {
		return
	}

	nextParent := parentID
	if kind, ok := w.desc.KindOf(n.Type()); ok {
		frag := w.newFragment(n, kind, parentID)
		w.fragments = append(w.fragments, frag)
		w.nodesByID[frag.ID] = n
		nextParent = frag.ID
	}

	for i := 0; i < n.ChildCount(); i++ {
		w.walk(n.Child(i), nextParent)
	}
}

func (w *walker) newFragment(n lang.Node, kind lang.Kind, parentID string) *store.Fragment {
	startRow, startCol := n.StartPoint()
	endRow, endCol := n.EndPoint()
	name := w.nodeName(n)

	id := FragmentID(w.filePath, string(kind), int(startRow), int(startCol), int(endRow), int(endCol), name)

	return &store.Fragment{
		ID:        id,
		Kind:      string(kind),
		Name:      name,
		StartLine: int(startRow),
		StartCol:  int(startCol),
		EndLine:   int(endRow),
		EndCol:    int(endCol),
		ParentID:  parentID,
		FilePath:  w.filePath,
		Language:  w.language,
	}
}

// nodeName extracts the identifier for a significant node via the
// descriptor's configured name field, falling back to empty (per §4.3:
// the id digest tolerates an empty name_or_empty).
func (w *walker) nodeName(n lang.Node) string {
	if w.desc.NameField == "" {
		return ""
	}
	nameNode := n.ChildByFieldName(w.desc.NameField)
	if nameNode == nil {
		return ""
	}
	start, end := nameNode.StartByte(), nameNode.EndByte()
	if int(end) > len(w.source) || start >= end {
		return ""
	}
	return string(w.source[start:end])
}
