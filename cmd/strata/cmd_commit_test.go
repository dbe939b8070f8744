package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/repo"
	"golang.org/x/crypto/ssh"
)

func writeTestSigningKey(t *testing.T, dir string) string {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "strata test key")
	if err != nil {
		t.Fatalf("MarshalPrivateKey: %v", err)
	}

	keyPath := filepath.Join(dir, "id_test")
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return keyPath
}

func TestCommitCmd_SignAndVerify(t *testing.T) {
	dir := t.TempDir()
	r, err := repo.Init(dir)
	if err != nil {
		t.Fatalf("repo.Init: %v", err)
	}

	keyPath := writeTestSigningKey(t, t.TempDir())
	if err := r.ConfigSet("commit.signingkey", keyPath); err != nil {
		t.Fatalf("ConfigSet: %v", err)
	}
	if err := r.ConfigSet("user.name", "Test Signer"); err != nil {
		t.Fatalf("ConfigSet: %v", err)
	}

	writeRepoFile(t, dir, "a.txt", "signed content\n")
	if err := r.Add([]string{"a.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	chdir(t, dir)

	var out bytes.Buffer
	cmd := newCommitCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-m", "signed commit", "--sign"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("commit Execute: %v\noutput:\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "signed commit") {
		t.Errorf("commit output = %q, want message echoed", out.String())
	}

	head, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef(HEAD): %v", err)
	}
	commit, err := r.Store.ReadCommit(head)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if commit.Signature == "" {
		t.Fatal("commit has no signature")
	}
	if !strings.HasPrefix(commit.Signature, commitSignaturePrefix+":") {
		t.Errorf("signature = %q, want %q prefix", commit.Signature, commitSignaturePrefix)
	}
	if commit.Author != "Test Signer" {
		t.Errorf("author = %q, want configured user.name", commit.Author)
	}

	// The stored signature verifies against the canonical payload.
	payload := object.CommitSigningPayload(commit)
	if _, err := verifyCommitSignature(commit.Signature, payload); err != nil {
		t.Errorf("verifyCommitSignature: %v", err)
	}

	// And the verify-commit command agrees.
	var verifyOut bytes.Buffer
	verifyCmd := newVerifyCommitCmd()
	verifyCmd.SetOut(&verifyOut)
	verifyCmd.SetArgs([]string{string(head)})
	if err := verifyCmd.Execute(); err != nil {
		t.Fatalf("verify-commit Execute: %v\noutput:\n%s", err, verifyOut.String())
	}
	if !strings.Contains(verifyOut.String(), "good signature") {
		t.Errorf("verify output = %q", verifyOut.String())
	}
}

func TestVerifyCommitCmd_TamperedSignature(t *testing.T) {
	dir := t.TempDir()
	r, err := repo.Init(dir)
	if err != nil {
		t.Fatalf("repo.Init: %v", err)
	}

	keyPath := writeTestSigningKey(t, t.TempDir())
	signer, _, err := newSSHCommitSigner(keyPath)
	if err != nil {
		t.Fatalf("newSSHCommitSigner: %v", err)
	}

	writeRepoFile(t, dir, "a.txt", "content\n")
	if err := r.Add([]string{"a.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	h, err := r.CommitWithSigner("signed", "tester", signer)
	if err != nil {
		t.Fatalf("CommitWithSigner: %v", err)
	}

	commit, err := r.Store.ReadCommit(h)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}

	// A signature over different bytes must not verify.
	tampered := object.CommitSigningPayload(&object.CommitObj{
		TreeHash:  commit.TreeHash,
		Parents:   commit.Parents,
		Author:    commit.Author,
		Timestamp: commit.Timestamp,
		Message:   "rewritten message",
	})
	if _, err := verifyCommitSignature(commit.Signature, tampered); err == nil {
		t.Error("tampered payload should fail verification")
	}

	if _, err := verifyCommitSignature("garbage", object.CommitSigningPayload(commit)); err == nil {
		t.Error("malformed signature should fail verification")
	}
}

func TestCommitCmd_RequiresMessage(t *testing.T) {
	dir := t.TempDir()
	if _, err := repo.Init(dir); err != nil {
		t.Fatalf("repo.Init: %v", err)
	}
	chdir(t, dir)

	cmd := newCommitCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Error("commit without -m should fail")
	}
}
