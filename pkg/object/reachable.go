package object

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ClosureReport summarizes a walk over every object reachable from a set of
// roots.
type ClosureReport struct {
	Reachable map[Hash]struct{} // objects found intact
	Missing   []Hash            // referenced but absent from the store
	Corrupt   []Hash            // present but failing the integrity recheck
}

// Clean reports whether the closure holds: every referenced object exists
// and re-hashes to its name.
func (cr *ClosureReport) Clean() bool {
	return len(cr.Missing) == 0 && len(cr.Corrupt) == 0
}

// CheckClosure walks all objects reachable from roots with an explicit
// work stack, re-reading each one (which re-verifies its hash) and following
// commit → tree → blob and tag → target references. Dangling references and
// corrupt objects are collected rather than aborting the walk.
func (s *Store) CheckClosure(roots []Hash) (*ClosureReport, error) {
	roots = uniqueNormalizedHashes(roots)
	cr := &ClosureReport{Reachable: make(map[Hash]struct{}, len(roots))}

	seen := make(map[Hash]struct{}, len(roots))
	stack := make([]Hash, 0, len(roots))
	stack = append(stack, roots...)

	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}

		objType, data, err := s.Read(h)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				cr.Missing = append(cr.Missing, h)
				continue
			}
			if IsIntegrityError(err) {
				cr.Corrupt = append(cr.Corrupt, h)
				continue
			}
			return nil, fmt.Errorf("closure check read %s: %w", h, err)
		}
		cr.Reachable[h] = struct{}{}

		refs, err := referencedHashes(objType, data)
		if err != nil {
			return nil, fmt.Errorf("closure check parse %s (%s): %w", h, objType, err)
		}
		stack = append(stack, refs...)
	}

	sortHashes(cr.Missing)
	sortHashes(cr.Corrupt)
	return cr, nil
}

func referencedHashes(objType ObjectType, data []byte) ([]Hash, error) {
	switch objType {
	case TypeBlob:
		return nil, nil
	case TypeTag:
		tag, err := UnmarshalTag(data)
		if err != nil {
			return nil, err
		}
		return []Hash{tag.TargetHash}, nil
	case TypeCommit:
		commit, err := UnmarshalCommit(data)
		if err != nil {
			return nil, err
		}
		refs := make([]Hash, 0, 1+len(commit.Parents))
		refs = append(refs, commit.TreeHash)
		refs = append(refs, commit.Parents...)
		return refs, nil
	case TypeTree:
		tree, err := UnmarshalTree(data)
		if err != nil {
			return nil, err
		}
		refs := make([]Hash, 0, len(tree.Entries))
		for _, e := range tree.Entries {
			if e.IsDir {
				refs = append(refs, e.SubtreeHash)
			} else {
				refs = append(refs, e.BlobHash)
			}
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("unsupported object type %q", objType)
	}
}

func uniqueNormalizedHashes(in []Hash) []Hash {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[Hash]struct{}, len(in))
	out := make([]Hash, 0, len(in))
	for _, h := range in {
		h = Hash(strings.TrimSpace(string(h)))
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	sortHashes(out)
	return out
}

func sortHashes(hs []Hash) {
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
}
