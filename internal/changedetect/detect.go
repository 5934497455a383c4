package changedetect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	codelenserrors "github.com/codelens-dev/codelens/internal/errors"
)

// Detect resolves sel against ws, returning an ordered (lexicographic by
// path), deduplicated list of classified paths. Behavior is deterministic
// for a fixed selector and a fixed repository/workspace state.
func Detect(ctx context.Context, sel Selector, ws *Workspace) ([]Classification, error) {
	switch sel.Kind {
	case KindChangedSinceHead:
		return detectFromOracle(ctx, ws, func(ctx context.Context) ([]string, error) {
			return ws.Oracle.ChangedFiles(ctx)
		})
	case KindStaged:
		return detectFromOracle(ctx, ws, func(ctx context.Context) ([]string, error) {
			return ws.Oracle.StagedFiles(ctx)
		})
	case KindChangedSinceRef:
		return detectFromOracle(ctx, ws, func(ctx context.Context) ([]string, error) {
			return ws.Oracle.DiffAgainst(ctx, sel.Ref)
		})
	case KindGlob:
		return detectByWalk(ctx, ws, func(relPath string) (bool, error) {
			return doublestar.Match(sel.Pattern, relPath)
		})
	case KindForceAll:
		return detectByWalk(ctx, ws, func(relPath string) (bool, error) { return true, nil })
	case KindPaths:
		return detectFromPaths(ctx, ws, sel.Paths)
	default:
		return nil, codelenserrors.New(codelenserrors.ErrCodeInvalidInput, fmt.Sprintf("unknown selector kind %d", sel.Kind), nil)
	}
}

// detectFromOracle classifies the candidate paths returned by an Oracle
// method, plus any store-recorded files among them that have since been
// deleted from disk.
func detectFromOracle(ctx context.Context, ws *Workspace, list func(context.Context) ([]string, error)) ([]Classification, error) {
	if ws.Oracle == nil {
		return nil, codelenserrors.New(codelenserrors.ErrCodeVCSUnavailable, "no VCS oracle configured for this selector", nil)
	}
	candidates, err := list(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Classification, 0, len(candidates))
	for _, rel := range candidates {
		if !pathIncluded(rel, ws) {
			continue
		}
		c, ok, err := classify(ctx, ws, rel)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	sortClassifications(out)
	return out, nil
}

// detectByWalk walks ws.Root, classifying every regular file for which
// match(relPath) is true, then adds Removed entries for any matching
// stored file record no longer present on disk.
func detectByWalk(ctx context.Context, ws *Workspace, match func(relPath string) (bool, error)) ([]Classification, error) {
	seen := make(map[string]bool)
	out := make([]Classification, 0)

	err := filepath.WalkDir(ws.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(ws.Root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !pathIncluded(rel, ws) {
			return nil
		}
		ok, err := match(rel)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		seen[rel] = true
		c, ok2, err := classify(ctx, ws, rel)
		if err != nil {
			return err
		}
		if ok2 {
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if ws.Store != nil {
		records, err := ws.Store.AllFileRecords(ctx)
		if err != nil {
			return nil, err
		}
		for _, fr := range records {
			if seen[fr.Path] {
				continue
			}
			ok, err := match(fr.Path)
			if err != nil {
				return nil, err
			}
			if !ok || !pathIncluded(fr.Path, ws) {
				continue
			}
			if _, statErr := os.Stat(filepath.Join(ws.Root, fr.Path)); os.IsNotExist(statErr) {
				out = append(out, Classification{Path: fr.Path, Status: Removed})
			}
		}
	}

	sortClassifications(out)
	return out, nil
}

// detectFromPaths classifies exactly the given relative paths, each
// already normalized by the caller, without walking the rest of the
// workspace tree. Grounded on classify(), the same per-path comparison
// detectByWalk and detectFromOracle both use.
func detectFromPaths(ctx context.Context, ws *Workspace, paths []string) ([]Classification, error) {
	out := make([]Classification, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, rel := range paths {
		rel = filepath.ToSlash(rel)
		if seen[rel] || !pathIncluded(rel, ws) {
			continue
		}
		seen[rel] = true
		c, ok, err := classify(ctx, ws, rel)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	sortClassifications(out)
	return out, nil
}

// classify compares rel's current disk state to its store.FileRecord (if
// any), returning ok=false when the file is unchanged and should be
// skipped entirely.
func classify(ctx context.Context, ws *Workspace, rel string) (Classification, bool, error) {
	abs := filepath.Join(ws.Root, rel)

	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			if ws.Store == nil {
				return Classification{}, false, nil
			}
			if _, recErr := ws.Store.GetFileRecord(ctx, rel); recErr == nil {
				return Classification{Path: rel, Status: Removed}, true, nil
			}
			return Classification{}, false, nil
		}
		return Classification{}, false, err
	}

	if ws.Store == nil {
		return Classification{Path: rel, Status: Added}, true, nil
	}

	rec, err := ws.Store.GetFileRecord(ctx, rel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Classification{Path: rel, Status: Added}, true, nil
		}
		return Classification{}, false, err
	}

	if rec.ContentHash == HashContent(data) {
		return Classification{}, false, nil
	}
	return Classification{Path: rel, Status: Modified}, true, nil
}

func pathIncluded(rel string, ws *Workspace) bool {
	if len(ws.IncludeGlobs) > 0 {
		matched := false
		for _, g := range ws.IncludeGlobs {
			if ok, _ := doublestar.Match(g, rel); ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, g := range ws.ExcludeGlobs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return false
		}
	}
	return true
}

func sortClassifications(cs []Classification) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Path < cs[j].Path })
}
