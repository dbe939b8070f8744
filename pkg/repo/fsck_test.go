package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/strata/pkg/object"
)

// objectFilePath locates the loose object file for a hash.
func objectFilePath(r *Repo, hash object.Hash) string {
	h := string(hash)
	return filepath.Join(r.StrataDir, "objects", h[:2], h[2:])
}

// Test 1: a healthy repository passes fsck.
func TestFsck_CleanRepo(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("content"))
	if _, err := r.Commit("first", "test-author"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	stageAndCommit(t, r, "b.txt", []byte("more"), "second")

	report, err := r.Fsck()
	if err != nil {
		t.Fatalf("Fsck: %v", err)
	}
	if !report.Clean() {
		t.Errorf("fsck not clean: missing=%v corrupt=%v", report.Missing, report.Corrupt)
	}
	if len(report.Reachable) == 0 {
		t.Error("fsck found no reachable objects")
	}
}

// Test 2: an empty repository passes fsck.
func TestFsck_EmptyRepo(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	report, err := r.Fsck()
	if err != nil {
		t.Fatalf("Fsck: %v", err)
	}
	if !report.Clean() {
		t.Errorf("empty repo fsck not clean: %+v", report)
	}
}

// Test 3: a deleted blob shows up as missing.
func TestFsck_ReportsMissingBlob(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("content"))
	if _, err := r.Commit("first", "test-author"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	blobHash := mustStagedHash(t, r, "a.txt")
	if err := os.Remove(objectFilePath(r, blobHash)); err != nil {
		t.Fatalf("remove blob: %v", err)
	}

	report, err := r.Fsck()
	if err != nil {
		t.Fatalf("Fsck: %v", err)
	}
	if report.Clean() {
		t.Fatal("fsck should report the deleted blob")
	}
	found := false
	for _, h := range report.Missing {
		if h == blobHash {
			found = true
		}
	}
	if !found {
		t.Errorf("missing = %v, want to contain %s", report.Missing, blobHash)
	}
}

// Test 4: a blob whose stored bytes were tampered with shows up as corrupt.
func TestFsck_ReportsCorruptBlob(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("content"))
	if _, err := r.Commit("first", "test-author"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	blobHash := mustStagedHash(t, r, "a.txt")
	if err := os.WriteFile(objectFilePath(r, blobHash), []byte("garbage bytes"), 0o644); err != nil {
		t.Fatalf("tamper blob: %v", err)
	}

	report, err := r.Fsck()
	if err != nil {
		t.Fatalf("Fsck: %v", err)
	}
	found := false
	for _, h := range report.Corrupt {
		if h == blobHash {
			found = true
		}
	}
	if !found {
		t.Errorf("corrupt = %v, want to contain %s", report.Corrupt, blobHash)
	}
}

// Test 5: objects reachable only from a tag ref are still checked.
func TestFsck_FollowsTagRefs(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("v1"))
	h1, err := r.Commit("first", "test-author")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := r.CreateTag("v1", h1, false); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	// Move the branch forward; h1 is now reachable only via the tag.
	stageAndCommit(t, r, "a.txt", []byte("v2"), "second")

	report, err := r.Fsck()
	if err != nil {
		t.Fatalf("Fsck: %v", err)
	}
	if _, ok := report.Reachable[h1]; !ok {
		t.Errorf("tagged commit %s not among reachable objects", h1)
	}
}
