package repo

import (
	"sync"

	"github.com/rvs-vcs/rvs/internal/objcache"
	"github.com/rvs-vcs/rvs/pkg/object"
)

// Repo is an opened RVS repository, scoped to one worktree. RootDir is the
// worktree's working directory; RVSDir holds this worktree's own HEAD and
// index; CommonDir holds the shared object store and branch namespace. For
// the main worktree RVSDir == CommonDir; for a linked worktree RVSDir is
// CommonDir/worktrees/<name> and CommonDir is the main repository's .rvs.
type Repo struct {
	RootDir   string
	RVSDir    string
	CommonDir string
	Store     *object.Store

	mergeTraversalStateOnce sync.Once
	mergeTraversalState     *mergeBaseTraversalState

	statusHashCacheMu sync.Mutex
	statusHashCache   map[string]statusHashCacheEntry
	statusBlobHasher  func([]byte) object.Hash
}

func newRepo(rootDir, rvsDir, commonDir string) *Repo {
	store := object.NewStore(commonDir)
	store.SetCache(objcache.New(256))
	return &Repo{
		RootDir:   rootDir,
		RVSDir:    rvsDir,
		CommonDir: commonDir,
		Store:     store,
	}
}

func (r *Repo) getMergeTraversalState() *mergeBaseTraversalState {
	r.mergeTraversalStateOnce.Do(func() {
		r.mergeTraversalState = newMergeBaseTraversalState()
	})
	return r.mergeTraversalState
}

// IsLinkedWorktree reports whether this Repo is a linked worktree rather
// than the main checkout.
func (r *Repo) IsLinkedWorktree() bool { return r.RVSDir != r.CommonDir }
