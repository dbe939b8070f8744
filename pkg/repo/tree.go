package repo

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/odvcencio/strata/pkg/object"
)

// TreeFileEntry represents a single file in a flattened tree.
type TreeFileEntry struct {
	Path     string
	Mode     string
	BlobHash object.Hash
}

// BuildTree converts the flat staging entries into a hierarchy of tree
// objects, writing each one to the store and returning the root hash.
//
// Staging entries use forward-slash paths (e.g. "pkg/util/util.go").
// Directories are assembled bottom-up without recursion: every directory in
// the staged path table is collected first, then processed deepest-first so
// that a directory's subtree hashes are always available when its own tree
// object is written. Identical staged snapshots always produce the same
// root hash.
func (r *Repo) BuildTree(s *Staging) (object.Hash, error) {
	// Group staged files by containing directory and collect every
	// directory that must exist, including empty-string for the root.
	childFiles := map[string]map[string]*StagingEntry{"": {}}
	childDirs := map[string]map[string]struct{}{"": {}}
	ensureDir := func(dir string) {
		if _, ok := childFiles[dir]; !ok {
			childFiles[dir] = make(map[string]*StagingEntry)
			childDirs[dir] = make(map[string]struct{})
		}
	}

	for p, entry := range s.Entries {
		for _, component := range strings.Split(p, "/") {
			if !object.ValidTreeEntryName(component) {
				return "", fmt.Errorf("build tree: invalid path component %q in %q", component, p)
			}
		}
		dir := ""
		if i := strings.LastIndexByte(p, '/'); i >= 0 {
			dir = p[:i]
		}
		// Register every ancestor directory and its parent linkage.
		for d := dir; ; {
			ensureDir(d)
			if d == "" {
				break
			}
			parent := ""
			name := d
			if i := strings.LastIndexByte(d, '/'); i >= 0 {
				parent = d[:i]
				name = d[i+1:]
			}
			ensureDir(parent)
			childDirs[parent][name] = struct{}{}
			d = parent
		}
		childFiles[dir][path.Base(p)] = entry
	}

	// Deepest directories first, so subtrees are built before their parents.
	dirs := make([]string, 0, len(childFiles))
	for d := range childFiles {
		dirs = append(dirs, d)
	}
	sort.Slice(dirs, func(i, j int) bool {
		di, dj := strings.Count(dirs[i], "/"), strings.Count(dirs[j], "/")
		if dirs[i] == "" {
			di = -1
		}
		if dirs[j] == "" {
			dj = -1
		}
		if di != dj {
			return di > dj
		}
		return dirs[i] < dirs[j]
	})

	built := make(map[string]object.Hash, len(dirs))
	for _, dir := range dirs {
		names := make([]string, 0, len(childFiles[dir])+len(childDirs[dir]))
		for name := range childFiles[dir] {
			if _, alsoDir := childDirs[dir][name]; alsoDir {
				return "", fmt.Errorf("build tree: %w: %q", ErrPathConflict, path.Join(dir, name))
			}
			names = append(names, name)
		}
		for name := range childDirs[dir] {
			names = append(names, name)
		}
		sort.Strings(names)

		var entries []object.TreeEntry
		for _, name := range names {
			if entry, isFile := childFiles[dir][name]; isFile {
				entries = append(entries, object.TreeEntry{
					Name:     name,
					Mode:     normalizeFileMode(entry.Mode),
					BlobHash: entry.BlobHash,
				})
				continue
			}
			subHash, ok := built[path.Join(dir, name)]
			if !ok {
				return "", fmt.Errorf("build tree: subtree %q not built", path.Join(dir, name))
			}
			entries = append(entries, object.TreeEntry{
				Name:        name,
				IsDir:       true,
				Mode:        object.TreeModeDir,
				SubtreeHash: subHash,
			})
		}

		h, err := r.Store.WriteTree(&object.TreeObj{Entries: entries})
		if err != nil {
			return "", fmt.Errorf("write tree (dir=%q): %w", dir, err)
		}
		built[dir] = h
	}

	return built[""], nil
}

// FlattenTree walks a tree object, returning all file entries with their
// full forward-slash paths. The walk uses an explicit stack so that tree
// depth never translates into call depth.
func (r *Repo) FlattenTree(h object.Hash) ([]TreeFileEntry, error) {
	type frame struct {
		hash   object.Hash
		prefix string
	}

	var result []TreeFileEntry
	stack := []frame{{hash: h}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		treeObj, err := r.Store.ReadTree(f.hash)
		if err != nil {
			return nil, fmt.Errorf("flatten tree: read %s: %w", f.hash, err)
		}

		for _, entry := range treeObj.Entries {
			fullPath := entry.Name
			if f.prefix != "" {
				fullPath = f.prefix + "/" + entry.Name
			}

			if entry.IsDir {
				stack = append(stack, frame{hash: entry.SubtreeHash, prefix: fullPath})
			} else {
				result = append(result, TreeFileEntry{
					Path:     fullPath,
					Mode:     normalizeFileMode(entry.Mode),
					BlobHash: entry.BlobHash,
				})
			}
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}
