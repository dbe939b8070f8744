package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/strata/pkg/object"
)

// ListRefs lists references under .strata/refs.
// Names are returned relative to refs root, e.g. "heads/main", "tags/v1".
func (r *Repo) ListRefs(prefix string) (map[string]object.Hash, error) {
	root := filepath.Join(r.StrataDir, "refs")
	dir := root
	if strings.TrimSpace(prefix) != "" {
		dir = filepath.Join(root, filepath.FromSlash(prefix))
	}

	refs := make(map[string]object.Hash)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasSuffix(path, ".lock") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		refs[name] = object.Hash(strings.TrimSpace(string(data)))
		return nil
	})
	if os.IsNotExist(err) {
		return refs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return refs, nil
}

// SetRef points the named ref at the given hash, creating it if needed.
// Bare names are taken as branch names under refs/heads/.
func (r *Repo) SetRef(name string, h object.Hash) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("set ref: name is required")
	}
	if strings.TrimSpace(string(h)) == "" {
		return fmt.Errorf("set ref %q: target hash is required", name)
	}
	return r.UpdateRef(refFullName(name), h)
}

// GetRef returns the hash the named ref points at, or ErrRefNotFound.
func (r *Repo) GetRef(name string) (object.Hash, error) {
	return r.ResolveRef(refFullName(name))
}

// DeleteRef removes the named ref file.
func (r *Repo) DeleteRef(name string) error {
	refPath := filepath.Join(r.StrataDir, filepath.FromSlash(refFullName(name)))
	if err := os.Remove(refPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("delete ref %q: %w", name, ErrRefNotFound)
		}
		return fmt.Errorf("delete ref %q: %w", name, err)
	}
	return nil
}

// refFullName expands a bare ref name to its refs/heads/ path; names
// already under refs/ (and HEAD) pass through unchanged.
func refFullName(name string) string {
	if name == "HEAD" || strings.HasPrefix(name, "refs/") {
		return name
	}
	return "refs/heads/" + name
}
