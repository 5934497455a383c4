// Package changedetect resolves a file selector against the working
// tree and the store's file records, producing an ordered, classified
// list of paths for the parser/annotator/embedder pipeline to process.
package changedetect

// Selector names which files a detection pass should consider. Exactly
// one of the embedded fields is meaningful for a given Kind; Ref and
// Pattern are ignored unless Kind says otherwise.
type Selector struct {
	Kind    SelectorKind
	Ref     string   // meaningful for KindChangedSinceRef
	Pattern string   // meaningful for KindGlob
	Paths   []string // meaningful for KindPaths
}

// SelectorKind enumerates the closed set of selector variants.
type SelectorKind int

const (
	// KindChangedSinceHead selects files differing from HEAD (staged and
	// unstaged), via the VCS oracle.
	KindChangedSinceHead SelectorKind = iota
	// KindStaged selects files whose staged content differs from HEAD.
	KindStaged
	// KindChangedSinceRef selects files differing from an arbitrary ref.
	KindChangedSinceRef
	// KindGlob selects files under the workspace root matching Pattern.
	KindGlob
	// KindForceAll selects every file under the workspace root.
	KindForceAll
	// KindPaths classifies exactly the given paths, without walking the
	// rest of the workspace tree. Used by the Watcher, which already
	// knows which paths changed from filesystem events and would waste
	// a full tree walk re-discovering that per debounced batch.
	KindPaths
)

// ChangedSinceHead builds a Selector for files differing from HEAD.
func ChangedSinceHead() Selector { return Selector{Kind: KindChangedSinceHead} }

// Staged builds a Selector for files with staged changes against HEAD.
func Staged() Selector { return Selector{Kind: KindStaged} }

// ChangedSinceRef builds a Selector for files differing from ref.
func ChangedSinceRef(ref string) Selector { return Selector{Kind: KindChangedSinceRef, Ref: ref} }

// Glob builds a Selector for files matching a doublestar pattern.
func Glob(pattern string) Selector { return Selector{Kind: KindGlob, Pattern: pattern} }

// ForceAll builds a Selector matching every file in the workspace.
func ForceAll() Selector { return Selector{Kind: KindForceAll} }

// Paths builds a Selector that classifies exactly the given workspace-
// relative paths, bypassing the tree walk KindGlob/KindForceAll use.
func Paths(paths []string) Selector { return Selector{Kind: KindPaths, Paths: paths} }
