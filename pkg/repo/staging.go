package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/strata/pkg/object"
)

// StagingEntry records the staged state of a single file.
type StagingEntry struct {
	Path     string      `json:"path"`
	BlobHash object.Hash `json:"blob_hash"`
	Mode     string      `json:"mode"`
	ModTime  int64       `json:"mod_time"`
	Size     int64       `json:"size"`
}

// Staging holds the full staging area (index) for a strata repository.
type Staging struct {
	Entries map[string]*StagingEntry `json:"entries"`
}

// indexPath returns the filesystem path to the staging index file.
func (r *Repo) indexPath() string {
	return filepath.Join(r.StrataDir, "index")
}

// ReadStaging loads the staging area from .strata/index. If the file does
// not exist, an empty Staging is returned (no error).
func (r *Repo) ReadStaging() (*Staging, error) {
	data, err := os.ReadFile(r.indexPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Staging{Entries: make(map[string]*StagingEntry)}, nil
		}
		return nil, fmt.Errorf("read staging: %w", err)
	}

	var stg Staging
	if err := json.Unmarshal(data, &stg); err != nil {
		return nil, fmt.Errorf("read staging: unmarshal: %w", err)
	}
	if stg.Entries == nil {
		stg.Entries = make(map[string]*StagingEntry)
	}
	return &stg, nil
}

// WriteStaging atomically writes the staging area to .strata/index.
func (r *Repo) WriteStaging(s *Staging) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("write staging: marshal: %w", err)
	}

	// Atomic write via temp file + rename.
	tmp, err := os.CreateTemp(r.StrataDir, ".index-tmp-*")
	if err != nil {
		return fmt.Errorf("write staging: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write staging: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write staging: close: %w", err)
	}

	if err := os.Rename(tmpName, r.indexPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write staging: rename: %w", err)
	}
	return nil
}

// Add stages the given pathspecs. Each pathspec is resolved relative to the repo
// root; directories are walked recursively (honoring .strataignore) and glob
// patterns are expanded. For each file the raw content is written as a blob
// to the object store and a StagingEntry is created or updated with the blob
// hash, mode and file metadata.
//
// Staging a file at a path that is currently a directory prefix of another
// staged entry (or vice versa) fails with ErrPathConflict: the index must
// always flatten into a valid tree.
func (r *Repo) Add(paths []string) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	files, err := r.expandPathspecs(paths)
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	for _, relPath := range files {
		for _, component := range strings.Split(relPath, "/") {
			if !object.ValidTreeEntryName(component) {
				return fmt.Errorf("add %q: path component %q cannot be stored in a tree", relPath, component)
			}
		}
		if err := checkPathConflict(stg, relPath); err != nil {
			return fmt.Errorf("add %q: %w", relPath, err)
		}

		absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))
		content, err := os.ReadFile(absPath)
		if err != nil {
			return fmt.Errorf("add: read %q: %w", relPath, err)
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("add: stat %q: %w", relPath, err)
		}

		blobHash, err := r.Store.WriteBlob(&object.Blob{Data: content})
		if err != nil {
			return fmt.Errorf("add: write blob %q: %w", relPath, err)
		}

		stg.Entries[relPath] = &StagingEntry{
			Path:     relPath,
			BlobHash: blobHash,
			Mode:     modeFromFileInfo(info),
			ModTime:  info.ModTime().UnixNano(),
			Size:     info.Size(),
		}
	}

	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	return nil
}

// Remove deletes staging entries for the given paths. A path naming a
// directory removes every staged entry beneath it. Unless cached is true,
// matching working-tree files are deleted as well.
func (r *Repo) Remove(paths []string, cached bool) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}

	var removed []string
	for _, p := range paths {
		relPath, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("remove: resolve path %q: %w", p, err)
		}

		matched := false
		if _, ok := stg.Entries[relPath]; ok {
			delete(stg.Entries, relPath)
			removed = append(removed, relPath)
			matched = true
		}
		prefix := relPath + "/"
		for staged := range stg.Entries {
			if strings.HasPrefix(staged, prefix) {
				delete(stg.Entries, staged)
				removed = append(removed, staged)
				matched = true
			}
		}
		if !matched {
			return fmt.Errorf("remove: path %q is not staged", p)
		}
	}

	if !cached {
		for _, relPath := range removed {
			absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))
			if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove: delete %q: %w", relPath, err)
			}
			r.removeEmptyParents(filepath.Dir(absPath))
		}
	}

	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// checkPathConflict rejects a new file path that collides with the staged
// tree shape: either an ancestor of relPath is already staged as a file, or
// relPath itself is already the directory prefix of another staged entry.
func checkPathConflict(stg *Staging, relPath string) error {
	for ancestor := path.Dir(relPath); ancestor != "." && ancestor != "/"; ancestor = path.Dir(ancestor) {
		if _, ok := stg.Entries[ancestor]; ok {
			return fmt.Errorf("%w: %q is staged as a file", ErrPathConflict, ancestor)
		}
	}
	prefix := relPath + "/"
	for staged := range stg.Entries {
		if strings.HasPrefix(staged, prefix) {
			return fmt.Errorf("%w: %q is staged under directory %q", ErrPathConflict, staged, relPath)
		}
	}
	return nil
}

// expandPathspecs turns user pathspecs (files, directories, globs) into a
// sorted list of repo-relative file paths, applying ignore rules when
// walking directories.
func (r *Repo) expandPathspecs(paths []string) ([]string, error) {
	ic := NewIgnoreChecker(r.RootDir)
	seen := make(map[string]struct{})

	addFile := func(rel string) {
		seen[rel] = struct{}{}
	}

	walkDir := func(relDir string) error {
		absDir := filepath.Join(r.RootDir, filepath.FromSlash(relDir))
		return filepath.WalkDir(absDir, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			rel, err := filepath.Rel(r.RootDir, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if rel == "." {
				return nil
			}
			if ic.IsIgnored(rel) {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if !d.IsDir() {
				addFile(rel)
			}
			return nil
		})
	}

	for _, p := range paths {
		relPath, err := r.repoRelPath(p)
		if err != nil {
			return nil, fmt.Errorf("resolve path %q: %w", p, err)
		}

		// Glob pathspec.
		if strings.ContainsAny(relPath, "*?[") {
			matches, err := filepath.Glob(filepath.Join(r.RootDir, filepath.FromSlash(relPath)))
			if err != nil {
				return nil, fmt.Errorf("glob %q: %w", p, err)
			}
			for _, m := range matches {
				rel, err := filepath.Rel(r.RootDir, m)
				if err != nil {
					return nil, err
				}
				rel = filepath.ToSlash(rel)
				if ic.IsIgnored(rel) {
					continue
				}
				info, err := os.Stat(m)
				if err != nil {
					return nil, fmt.Errorf("stat %q: %w", rel, err)
				}
				if info.IsDir() {
					if err := walkDir(rel); err != nil {
						return nil, err
					}
				} else {
					addFile(rel)
				}
			}
			continue
		}

		absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))
		info, err := os.Stat(absPath)
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", p, err)
		}
		if info.IsDir() {
			if relPath == "." {
				relPath = ""
			}
			if err := walkDir(relPath); err != nil {
				return nil, err
			}
		} else {
			addFile(relPath)
		}
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// repoRelPath converts a path (absolute, or relative to CWD) into a path
// relative to the repository root. If the path is already relative and does
// not start with the repo root, it is assumed to already be repo-relative.
func (r *Repo) repoRelPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(r.RootDir, p)
		if err != nil {
			return "", fmt.Errorf("cannot make %q relative to %q: %w", p, r.RootDir, err)
		}
		return filepath.ToSlash(rel), nil
	}

	// Try to resolve via CWD.
	cwd, err := os.Getwd()
	if err != nil {
		// Fall through to treating p as repo-relative.
		return filepath.ToSlash(filepath.Clean(p)), nil
	}

	abs := filepath.Join(cwd, p)
	// Check if the absolute path lives within the repo root.
	rel, err := filepath.Rel(r.RootDir, abs)
	if err != nil {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}

	// If the relative path starts with "..", p is outside the repo.
	// In that case, treat the original p as already repo-relative.
	if len(rel) >= 2 && rel[:2] == ".." {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}

	return filepath.ToSlash(rel), nil
}
