package repo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/strata/pkg/object"
)

func statusByPath(t *testing.T, r *Repo) map[string]StatusEntry {
	t.Helper()
	entries, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	m := make(map[string]StatusEntry, len(entries))
	for _, e := range entries {
		m[e.Path] = e
	}
	return m
}

// Test 1: a file on disk but never staged is untracked.
func TestStatus_Untracked(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	writeWorktreeFile(t, r, "loose.txt", []byte("untracked"))

	m := statusByPath(t, r)
	e, ok := m["loose.txt"]
	if !ok {
		t.Fatal("loose.txt missing from status")
	}
	if e.WorkStatus != StatusUntracked {
		t.Errorf("WorkStatus = %v, want StatusUntracked", e.WorkStatus)
	}
}

// Test 2: a staged file that is not in HEAD shows as new.
func TestStatus_StagedNew(t *testing.T) {
	r := initRepoWithFile(t, "new.txt", []byte("staged"))

	m := statusByPath(t, r)
	e, ok := m["new.txt"]
	if !ok {
		t.Fatal("new.txt missing from status")
	}
	if e.IndexStatus != StatusNew {
		t.Errorf("IndexStatus = %v, want StatusNew", e.IndexStatus)
	}
	if e.WorkStatus != StatusClean {
		t.Errorf("WorkStatus = %v, want StatusClean", e.WorkStatus)
	}
}

// Test 3: after a commit everything is clean.
func TestStatus_CleanAfterCommit(t *testing.T) {
	r := initRepoWithFile(t, "file.txt", []byte("content"))
	if _, err := r.Commit("first", "test-author"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	m := statusByPath(t, r)
	e, ok := m["file.txt"]
	if !ok {
		t.Fatal("file.txt missing from status")
	}
	if e.IndexStatus != StatusClean || e.WorkStatus != StatusClean {
		t.Errorf("index=%v work=%v, want clean/clean", e.IndexStatus, e.WorkStatus)
	}
}

// Test 4: an unstaged edit after commit shows as dirty in the worktree but
// clean in the index.
func TestStatus_DirtyWorktree(t *testing.T) {
	r := initRepoWithFile(t, "file.txt", []byte("v1"))
	if _, err := r.Commit("first", "test-author"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	writeWorktreeFile(t, r, "file.txt", []byte("v2 modified"))

	m := statusByPath(t, r)
	e := m["file.txt"]
	if e.IndexStatus != StatusClean {
		t.Errorf("IndexStatus = %v, want StatusClean", e.IndexStatus)
	}
	if e.WorkStatus != StatusDirty {
		t.Errorf("WorkStatus = %v, want StatusDirty", e.WorkStatus)
	}
}

// Test 5: staging the edit moves the change into the index column.
func TestStatus_StagedModification(t *testing.T) {
	r := initRepoWithFile(t, "file.txt", []byte("v1"))
	if _, err := r.Commit("first", "test-author"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	writeWorktreeFile(t, r, "file.txt", []byte("v2 modified"))
	if err := r.Add([]string{"file.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	m := statusByPath(t, r)
	e := m["file.txt"]
	if e.IndexStatus != StatusModified {
		t.Errorf("IndexStatus = %v, want StatusModified", e.IndexStatus)
	}
	if e.WorkStatus != StatusClean {
		t.Errorf("WorkStatus = %v, want StatusClean", e.WorkStatus)
	}
}

// Test 6: a committed file deleted from disk shows as deleted in the
// worktree; unstaging it flips the deletion into the index column.
func TestStatus_Deletions(t *testing.T) {
	r := initRepoWithFile(t, "gone.txt", []byte("bye"))
	if _, err := r.Commit("first", "test-author"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := os.Remove(filepath.Join(r.RootDir, "gone.txt")); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	m := statusByPath(t, r)
	e := m["gone.txt"]
	if e.WorkStatus != StatusDeleted {
		t.Errorf("WorkStatus = %v, want StatusDeleted", e.WorkStatus)
	}
	if e.IndexStatus != StatusClean {
		t.Errorf("IndexStatus = %v, want StatusClean", e.IndexStatus)
	}

	if err := r.Remove([]string{"gone.txt"}, true); err != nil {
		t.Fatalf("Remove(cached): %v", err)
	}

	m = statusByPath(t, r)
	e = m["gone.txt"]
	if e.IndexStatus != StatusDeleted {
		t.Errorf("after unstage: IndexStatus = %v, want StatusDeleted", e.IndexStatus)
	}
}

// Test 7: a same-size edit within the stat-cache window is still detected.
func TestStatus_SameSizeRecentEdit(t *testing.T) {
	r := initRepoWithFile(t, "file.txt", []byte("AAAA"))
	if _, err := r.Commit("first", "test-author"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// Same byte length, different content, written immediately: the stat
	// fast path must not trust mtime here.
	writeWorktreeFile(t, r, "file.txt", []byte("BBBB"))

	m := statusByPath(t, r)
	if e := m["file.txt"]; e.WorkStatus != StatusDirty {
		t.Errorf("WorkStatus = %v, want StatusDirty for same-size edit", e.WorkStatus)
	}
}

// Test 8: a corrupt HEAD commit must fail status loudly, not read as an
// empty HEAD tree that re-labels everything as newly staged.
func TestStatus_CorruptHEADCommitSurfaces(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("content"))
	head, err := r.Commit("first", "test-author")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// Overwrite the stored commit with another object's bytes: the file
	// still decompresses, but its digest no longer matches the hash it is
	// addressed by.
	intruder, err := r.Store.WriteBlob(&object.Blob{Data: []byte("intruder")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	raw, err := os.ReadFile(objectFilePath(r, intruder))
	if err != nil {
		t.Fatalf("read intruder object: %v", err)
	}
	if err := os.WriteFile(objectFilePath(r, head), raw, 0o644); err != nil {
		t.Fatalf("tamper commit: %v", err)
	}

	if _, err := r.Status(); !object.IsIntegrityError(err) {
		t.Fatalf("Status error = %v, want IntegrityError", err)
	}

	// Checkout must surface the corruption too, not claim the worktree is
	// dirty.
	err = r.Checkout("main")
	if err == nil {
		t.Fatal("Checkout over corrupt HEAD should fail")
	}
	if errors.Is(err, ErrUncommittedChanges) {
		t.Errorf("Checkout error = %v, must not be ErrUncommittedChanges", err)
	}
	if !object.IsIntegrityError(err) {
		t.Errorf("Checkout error = %v, want IntegrityError", err)
	}
}

// Test 9: ignored files never appear in status.
func TestStatus_IgnoredFilesOmitted(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	writeWorktreeFile(t, r, ".strataignore", []byte("*.log\n"))
	writeWorktreeFile(t, r, "debug.log", []byte("noise"))
	writeWorktreeFile(t, r, "kept.txt", []byte("signal"))

	m := statusByPath(t, r)
	if _, ok := m["debug.log"]; ok {
		t.Error("ignored debug.log appeared in status")
	}
	if _, ok := m["kept.txt"]; !ok {
		t.Error("kept.txt missing from status")
	}
}
