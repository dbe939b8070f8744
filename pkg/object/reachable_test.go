package object

import (
	"os"
	"testing"
)

// buildSmallGraph writes blob -> tree -> commit and returns all three hashes.
func buildSmallGraph(t *testing.T, s *Store) (blob, tree, commit Hash) {
	t.Helper()

	blob, err := s.WriteBlob(&Blob{Data: []byte("content")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	tree, err = s.WriteTree(&TreeObj{Entries: []TreeEntry{
		{Name: "a.txt", Mode: TreeModeFile, BlobHash: blob},
	}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	commit, err = s.WriteCommit(&CommitObj{
		TreeHash:  tree,
		Author:    "alice",
		Timestamp: 1,
		Message:   "init",
	})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	return blob, tree, commit
}

func TestCheckClosureClean(t *testing.T) {
	s := tempStore(t)
	blob, tree, commit := buildSmallGraph(t, s)

	cr, err := s.CheckClosure([]Hash{commit})
	if err != nil {
		t.Fatalf("CheckClosure: %v", err)
	}
	if !cr.Clean() {
		t.Fatalf("closure not clean: missing=%v corrupt=%v", cr.Missing, cr.Corrupt)
	}
	for _, h := range []Hash{blob, tree, commit} {
		if _, ok := cr.Reachable[h]; !ok {
			t.Errorf("object %s not in reachable set", h)
		}
	}
}

func TestCheckClosureReportsMissing(t *testing.T) {
	s := tempStore(t)
	blob, _, commit := buildSmallGraph(t, s)

	// Delete the blob out-of-band; the tree now dangles.
	if err := os.Remove(s.objectPath(blob)); err != nil {
		t.Fatalf("remove blob: %v", err)
	}

	cr, err := s.CheckClosure([]Hash{commit})
	if err != nil {
		t.Fatalf("CheckClosure: %v", err)
	}
	if cr.Clean() {
		t.Fatal("closure reported clean despite a missing blob")
	}
	if len(cr.Missing) != 1 || cr.Missing[0] != blob {
		t.Errorf("Missing = %v, want [%s]", cr.Missing, blob)
	}
}

func TestCheckClosureReportsCorrupt(t *testing.T) {
	s := tempStore(t)
	blob, _, commit := buildSmallGraph(t, s)

	forged, err := compressZstd([]byte("blob 3\x00bad"))
	if err != nil {
		t.Fatalf("compress forged bytes: %v", err)
	}
	if err := os.WriteFile(s.objectPath(blob), forged, 0o644); err != nil {
		t.Fatalf("overwrite blob: %v", err)
	}

	cr, err := s.CheckClosure([]Hash{commit})
	if err != nil {
		t.Fatalf("CheckClosure: %v", err)
	}
	if len(cr.Corrupt) != 1 || cr.Corrupt[0] != blob {
		t.Errorf("Corrupt = %v, want [%s]", cr.Corrupt, blob)
	}
}

func TestCheckClosureFollowsParents(t *testing.T) {
	s := tempStore(t)
	_, tree, root := buildSmallGraph(t, s)

	child, err := s.WriteCommit(&CommitObj{
		TreeHash:  tree,
		Parents:   []Hash{root},
		Author:    "alice",
		Timestamp: 2,
		Message:   "second",
	})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}

	cr, err := s.CheckClosure([]Hash{child})
	if err != nil {
		t.Fatalf("CheckClosure: %v", err)
	}
	if _, ok := cr.Reachable[root]; !ok {
		t.Error("parent commit not reached from child")
	}
}

func TestCheckClosureEmptyRoots(t *testing.T) {
	s := tempStore(t)

	cr, err := s.CheckClosure(nil)
	if err != nil {
		t.Fatalf("CheckClosure: %v", err)
	}
	if !cr.Clean() || len(cr.Reachable) != 0 {
		t.Errorf("unexpected report for empty roots: %+v", cr)
	}
}
