package changedetect

import (
	"github.com/codelens-dev/codelens/internal/store"
	"github.com/codelens-dev/codelens/internal/vcs"
)

// Workspace bundles the collaborators a detection pass needs: the
// repository root to walk, the include/exclude globs from config, the
// VCS oracle backing the first three Selector kinds, and the store
// holding the file records to diff against.
type Workspace struct {
	Root         string
	IncludeGlobs []string
	ExcludeGlobs []string
	Oracle       vcs.Oracle
	Store        *store.Store
}
