package repo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/odvcencio/strata/pkg/object"
)

// CommitSigner signs canonical commit payload bytes and returns an encoded
// signature string to be persisted in CommitObj.Signature.
type CommitSigner func(payload []byte) (string, error)

// commitRetryLimit bounds how often a lost ref race is retried before the
// conflict is surfaced to the caller.
const commitRetryLimit = 3

// Commit creates a new commit from the current staging area.
func (r *Repo) Commit(message, author string) (object.Hash, error) {
	return r.CommitWithSigner(message, author, nil)
}

// CommitWithSigner creates a new commit and signs it when signer is provided.
//
//  1. Read staging and build its tree.
//  2. Resolve HEAD to get the parent commit hash (if any).
//  3. Refuse with ErrNothingToCommit when the staged tree equals the
//     parent's tree (the very first root commit is always permitted).
//  4. Write the commit object and advance the current branch ref (or
//     detached HEAD) with a compare-and-swap against the observed parent.
//
// When the compare-and-swap loses a race to a concurrent commit, the whole
// sequence is retried against the new HEAD a bounded number of times; a
// persistent race surfaces ErrRefCASMismatch.
func (r *Repo) CommitWithSigner(message, author string, signer CommitSigner) (object.Hash, error) {
	var lastErr error
	for attempt := 0; attempt < commitRetryLimit; attempt++ {
		h, err := r.tryCommit(message, author, signer)
		if err != nil && errors.Is(err, ErrRefCASMismatch) {
			lastErr = err
			continue
		}
		return h, err
	}
	return "", fmt.Errorf("commit: persistent ref conflict after %d attempts: %w", commitRetryLimit, lastErr)
}

func (r *Repo) tryCommit(message, author string, signer CommitSigner) (object.Hash, error) {
	stg, err := r.ReadStaging()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	treeHash, err := r.BuildTree(stg)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	// Resolve HEAD to get the parent (absent for the first commit).
	var parents []object.Hash
	parentHash, err := r.ResolveRef("HEAD")
	if err == nil && parentHash != "" {
		parents = append(parents, parentHash)

		parentCommit, err := r.Store.ReadCommit(parentHash)
		if err != nil {
			return "", fmt.Errorf("commit: read parent %s: %w", parentHash, err)
		}
		if parentCommit.TreeHash == treeHash {
			return "", fmt.Errorf("commit: %w", ErrNothingToCommit)
		}
	}
	// If HEAD resolution fails (first commit, no ref file yet), this is the
	// root commit and any staged tree, including an empty one, is allowed.

	commitObj := &object.CommitObj{
		TreeHash:  treeHash,
		Parents:   parents,
		Author:    author,
		Timestamp: time.Now().Unix(),
		Message:   message,
	}
	if signer != nil {
		payload := object.CommitSigningPayload(commitObj)
		signature, err := signer(payload)
		if err != nil {
			return "", fmt.Errorf("commit: sign commit: %w", err)
		}
		commitObj.Signature = signature
	}

	commitHash, err := r.Store.WriteCommit(commitObj)
	if err != nil {
		return "", fmt.Errorf("commit: write commit: %w", err)
	}

	if err := r.advanceHead(commitHash, parentHash); err != nil {
		return "", err
	}
	return commitHash, nil
}

// advanceHead moves the current branch ref (or detached HEAD) from
// parentHash to commitHash with a compare-and-swap.
func (r *Repo) advanceHead(commitHash, parentHash object.Hash) error {
	head, err := r.Head()
	if err != nil {
		return fmt.Errorf("commit: read HEAD: %w", err)
	}

	// head is either a ref path ("refs/heads/main") or a detached hash.
	if strings.HasPrefix(head, "refs/") {
		var updateErr error
		if parentHash == "" {
			updateErr = r.UpdateRefCAS(head, commitHash, "")
		} else {
			updateErr = r.UpdateRefCAS(head, commitHash, parentHash)
		}
		if updateErr != nil {
			return fmt.Errorf("commit: update ref %q: %w", head, updateErr)
		}
		return nil
	}

	// Detached HEAD: update HEAD directly with a CAS against the old hash.
	if err := r.UpdateRefCAS("HEAD", commitHash, object.Hash(strings.TrimSpace(head))); err != nil {
		return fmt.Errorf("commit: update detached HEAD: %w", err)
	}
	return nil
}

// MergeCommit records a commit with multiple parents. The caller supplies
// the already-resolved merged tree hash; no conflict detection happens here.
// Every parent and the tree must already exist in the object store, so the
// new commit can only reference resolvable objects.
func (r *Repo) MergeCommit(message, author string, treeHash object.Hash, parents []object.Hash) (object.Hash, error) {
	if len(parents) < 2 {
		return "", fmt.Errorf("merge commit: need at least 2 parents, have %d", len(parents))
	}
	if _, err := r.Store.ReadTree(treeHash); err != nil {
		return "", fmt.Errorf("merge commit: tree %s: %w", treeHash, err)
	}
	for _, p := range parents {
		if _, err := r.Store.ReadCommit(p); err != nil {
			return "", fmt.Errorf("merge commit: parent %s: %w", p, err)
		}
	}

	commitObj := &object.CommitObj{
		TreeHash:  treeHash,
		Parents:   parents,
		Author:    author,
		Timestamp: time.Now().Unix(),
		Message:   message,
	}
	commitHash, err := r.Store.WriteCommit(commitObj)
	if err != nil {
		return "", fmt.Errorf("merge commit: write: %w", err)
	}

	if err := r.advanceHead(commitHash, parents[0]); err != nil {
		return "", err
	}
	return commitHash, nil
}

// Log walks the commit history starting from the given hash, following
// first-parent links, returning up to limit commits in reverse-chronological
// order (newest first).
func (r *Repo) Log(start object.Hash, limit int) ([]*object.CommitObj, error) {
	var commits []*object.CommitObj

	it := r.History(start, HistoryOptions{})
	for len(commits) < limit && it.Next() {
		commits = append(commits, it.Commit())
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}
	return commits, nil
}

// HistoryOptions selects how History traverses the commit graph.
type HistoryOptions struct {
	// AllParents follows every parent of a merge commit, yielding each
	// reachable commit once, newest timestamp first. When false only the
	// first-parent chain is followed.
	AllParents bool
}

// HistoryIter lazily walks commit history. It reads only immutable objects,
// so an iterator can be abandoned and a new one started from the same hash
// at any time. Traversal always terminates: it stops at root commits and a
// visited set prevents re-yielding shared ancestors.
type HistoryIter struct {
	repo     *Repo
	opts     HistoryOptions
	frontier []object.Hash
	visited  map[object.Hash]struct{}
	current  *object.CommitObj
	hash     object.Hash
	err      error
	done     bool
}

// History returns an iterator over the commits reachable from start.
func (r *Repo) History(start object.Hash, opts HistoryOptions) *HistoryIter {
	it := &HistoryIter{
		repo:    r,
		opts:    opts,
		visited: make(map[object.Hash]struct{}),
	}
	if strings.TrimSpace(string(start)) == "" {
		it.done = true
		return it
	}
	it.frontier = []object.Hash{start}
	return it
}

// Next advances the iterator. It returns false when the history is
// exhausted or an error occurred; check Err afterwards.
func (it *HistoryIter) Next() bool {
	if it.done || it.err != nil {
		return false
	}

	for len(it.frontier) > 0 {
		h := it.pickNext()
		if _, ok := it.visited[h]; ok {
			continue
		}
		it.visited[h] = struct{}{}

		c, err := it.repo.Store.ReadCommit(h)
		if err != nil {
			it.err = fmt.Errorf("history: read commit %s: %w", h, err)
			return false
		}

		it.hash = h
		it.current = c
		if it.opts.AllParents {
			it.frontier = append(it.frontier, c.Parents...)
		} else if len(c.Parents) > 0 {
			it.frontier = append(it.frontier, c.Parents[0])
		}
		return true
	}

	it.done = true
	return false
}

// pickNext pops the frontier commit that should be yielded next. In
// first-parent mode the frontier holds at most one hash; in all-parents
// mode the commit with the newest timestamp wins (ties broken by hash so
// the order is deterministic).
func (it *HistoryIter) pickNext() object.Hash {
	if len(it.frontier) == 1 || !it.opts.AllParents {
		h := it.frontier[len(it.frontier)-1]
		it.frontier = it.frontier[:len(it.frontier)-1]
		return h
	}

	type candidate struct {
		idx int
		ts  int64
	}
	best := candidate{idx: -1}
	for i, h := range it.frontier {
		if _, ok := it.visited[h]; ok {
			continue
		}
		c, err := it.repo.Store.ReadCommit(h)
		if err != nil {
			// Let Next surface the read error for this hash.
			best = candidate{idx: i}
			break
		}
		if best.idx < 0 || c.Timestamp > best.ts ||
			(c.Timestamp == best.ts && h < it.frontier[best.idx]) {
			best = candidate{idx: i, ts: c.Timestamp}
		}
	}
	if best.idx < 0 {
		// Everything left is already visited; drain in stable order.
		sort.Slice(it.frontier, func(i, j int) bool { return it.frontier[i] < it.frontier[j] })
		h := it.frontier[0]
		it.frontier = it.frontier[1:]
		return h
	}

	h := it.frontier[best.idx]
	it.frontier = append(it.frontier[:best.idx], it.frontier[best.idx+1:]...)
	return h
}

// Hash returns the hash of the commit most recently yielded by Next.
func (it *HistoryIter) Hash() object.Hash { return it.hash }

// Commit returns the commit most recently yielded by Next.
func (it *HistoryIter) Commit() *object.CommitObj { return it.current }

// Err returns the first error encountered during iteration, if any.
func (it *HistoryIter) Err() error { return it.err }
