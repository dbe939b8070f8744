package repo

import (
	"fmt"

	"github.com/odvcencio/strata/pkg/object"
)

// Fsck verifies the integrity of every object reachable from the
// repository's refs and from a detached HEAD. It re-hashes each reachable
// object and reports corrupt or missing ones; an empty repository passes.
func (r *Repo) Fsck() (*object.ClosureReport, error) {
	refs, err := r.ListRefs("")
	if err != nil {
		return nil, fmt.Errorf("fsck: %w", err)
	}

	var roots []object.Hash
	seen := make(map[object.Hash]bool)
	for _, h := range refs {
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		roots = append(roots, h)
	}

	// A detached HEAD may point at a commit no ref covers.
	if detached, err := r.Detached(); err == nil && detached {
		if h, err := r.ResolveRef("HEAD"); err == nil && h != "" && !seen[h] {
			roots = append(roots, h)
		}
	}

	report, err := r.Store.CheckClosure(roots)
	if err != nil {
		return nil, fmt.Errorf("fsck: %w", err)
	}
	return report, nil
}
