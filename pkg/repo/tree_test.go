package repo

import (
	"errors"
	"testing"

	"github.com/odvcencio/strata/pkg/object"
)

// Test 1: identical staged snapshots produce identical root hashes,
// independent of the order entries were staged in.
func TestBuildTree_Deterministic(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	files := map[string][]byte{
		"zeta.txt":        []byte("z"),
		"alpha.txt":       []byte("a"),
		"pkg/util/u.go":   []byte("package util\n"),
		"pkg/util/v.go":   []byte("package util\n\nvar V int\n"),
		"pkg/deep/x/y.go": []byte("package x\n"),
	}
	for name, content := range files {
		writeWorktreeFile(t, r, name, content)
	}

	// First pass: stage alphabetically.
	if err := r.Add([]string{"alpha.txt", "pkg", "zeta.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	stg1, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	root1, err := r.BuildTree(stg1)
	if err != nil {
		t.Fatalf("BuildTree(1): %v", err)
	}

	// Second pass: wipe the index and stage in reverse order.
	if err := r.WriteStaging(&Staging{Entries: map[string]*StagingEntry{}}); err != nil {
		t.Fatalf("WriteStaging: %v", err)
	}
	if err := r.Add([]string{"zeta.txt", "pkg", "alpha.txt"}); err != nil {
		t.Fatalf("Add(reversed): %v", err)
	}
	stg2, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	root2, err := r.BuildTree(stg2)
	if err != nil {
		t.Fatalf("BuildTree(2): %v", err)
	}

	if root1 != root2 {
		t.Errorf("root hash differs across staging orders: %s vs %s", root1, root2)
	}
}

// Test 2: each tree object lists its children sorted by name, directories
// and files interleaved.
func TestBuildTree_SortedSiblings(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	writeWorktreeFile(t, r, "b.txt", []byte("b"))
	writeWorktreeFile(t, r, "a/inner.txt", []byte("i"))
	writeWorktreeFile(t, r, "c.txt", []byte("c"))
	if err := r.Add([]string{"."}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	root, err := r.BuildTree(stg)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	tree, err := r.Store.ReadTree(root)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	wantNames := []string{"a", "b.txt", "c.txt"}
	if len(tree.Entries) != len(wantNames) {
		t.Fatalf("root entries = %d, want %d", len(tree.Entries), len(wantNames))
	}
	for i, want := range wantNames {
		if tree.Entries[i].Name != want {
			t.Errorf("entry[%d].Name = %q, want %q", i, tree.Entries[i].Name, want)
		}
	}
	if !tree.Entries[0].IsDir {
		t.Error("entry \"a\" should be a directory")
	}
	if tree.Entries[0].SubtreeHash == "" {
		t.Error("directory entry has empty subtree hash")
	}
}

// Test 3: BuildTree then FlattenTree round-trips every staged path.
func TestFlattenTree_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	paths := []string{"readme.md", "src/main.go", "src/lib/lib.go", "docs/a/b/c.txt"}
	for _, p := range paths {
		writeWorktreeFile(t, r, p, []byte("content of "+p+"\n"))
	}
	if err := r.Add([]string{"."}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	root, err := r.BuildTree(stg)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	flat, err := r.FlattenTree(root)
	if err != nil {
		t.Fatalf("FlattenTree: %v", err)
	}
	if len(flat) != len(paths) {
		t.Fatalf("flattened %d entries, want %d", len(flat), len(paths))
	}

	// FlattenTree returns paths sorted.
	for i := 1; i < len(flat); i++ {
		if flat[i-1].Path >= flat[i].Path {
			t.Errorf("flatten output not sorted: %q before %q", flat[i-1].Path, flat[i].Path)
		}
	}
	for _, f := range flat {
		se, ok := stg.Entries[f.Path]
		if !ok {
			t.Errorf("flattened path %q was never staged", f.Path)
			continue
		}
		if f.BlobHash != se.BlobHash {
			t.Errorf("%q: blob hash %s, want %s", f.Path, f.BlobHash, se.BlobHash)
		}
	}
}

// Test 4: an empty staging area builds an empty (but valid) root tree.
func TestBuildTree_Empty(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	root, err := r.BuildTree(&Staging{Entries: map[string]*StagingEntry{}})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	tree, err := r.Store.ReadTree(root)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(tree.Entries) != 0 {
		t.Errorf("empty staging built %d entries, want 0", len(tree.Entries))
	}
}

// Test 5: a name staged as both file and directory fails tree construction.
func TestBuildTree_FileDirClash(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	// Forge an index that Add would have refused.
	stg := &Staging{Entries: map[string]*StagingEntry{
		"name": {
			Path:     "name",
			BlobHash: object.HashObject(object.TypeBlob, []byte("file")),
			Mode:     object.TreeModeFile,
		},
		"name/child.txt": {
			Path:     "name/child.txt",
			BlobHash: object.HashObject(object.TypeBlob, []byte("nested")),
			Mode:     object.TreeModeFile,
		},
	}}

	_, err = r.BuildTree(stg)
	if !errors.Is(err, ErrPathConflict) {
		t.Errorf("err = %v, want ErrPathConflict", err)
	}
}

// Test 6: names containing spaces survive the snapshot round trip.
func TestTree_NamesWithSpacesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	paths := []string{"my file.txt", "space dir/inner note.md"}
	for _, p := range paths {
		writeWorktreeFile(t, r, p, []byte("content of "+p))
	}
	if err := r.Add([]string{"."}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	head, err := r.Commit("spaced", "test-author")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	commit, err := r.Store.ReadCommit(head)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}

	flat, err := r.FlattenTree(commit.TreeHash)
	if err != nil {
		t.Fatalf("FlattenTree: %v", err)
	}
	if len(flat) != len(paths) {
		t.Fatalf("flattened %d entries, want %d", len(flat), len(paths))
	}
	got := make(map[string]bool, len(flat))
	for _, f := range flat {
		got[f.Path] = true
	}
	for _, p := range paths {
		if !got[p] {
			t.Errorf("path %q missing after round trip: %v", p, flat)
		}
	}
}

// Test 7: a path component with a newline cannot be written into a tree.
func TestBuildTree_RejectsNewlineName(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	stg := &Staging{Entries: map[string]*StagingEntry{
		"bad\nname": {
			Path:     "bad\nname",
			BlobHash: object.HashObject(object.TypeBlob, []byte("x")),
			Mode:     object.TreeModeFile,
		},
	}}

	if _, err := r.BuildTree(stg); err == nil {
		t.Error("BuildTree accepted a newline in an entry name")
	}
}

// Test 8: deep single-chain trees flatten without recursion limits.
func TestFlattenTree_DeepNesting(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	deep := "d0"
	for i := 1; i < 60; i++ {
		deep += "/d" + string(rune('0'+i%10))
	}
	deepPath := deep + "/leaf.txt"

	stg := &Staging{Entries: map[string]*StagingEntry{}}
	blobHash, err := r.Store.WriteBlob(&object.Blob{Data: []byte("deep")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	stg.Entries[deepPath] = &StagingEntry{
		Path:     deepPath,
		BlobHash: blobHash,
		Mode:     object.TreeModeFile,
	}

	root, err := r.BuildTree(stg)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	flat, err := r.FlattenTree(root)
	if err != nil {
		t.Fatalf("FlattenTree: %v", err)
	}
	if len(flat) != 1 || flat[0].Path != deepPath {
		t.Errorf("flatten = %v, want single entry %q", flat, deepPath)
	}
}
