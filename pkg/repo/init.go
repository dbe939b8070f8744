package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/odvcencio/strata/pkg/object"
)

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second
)

const symbolicRefPrefix = "ref: "

// Init creates a new strata repository at path. It creates the .strata/
// directory structure: HEAD, config, objects/, refs/heads/, refs/tags/ and
// logs/. Returns an error if a .strata/ directory already exists.
func Init(path string) (*Repo, error) {
	strataDir := filepath.Join(path, ".strata")

	// Fail if .strata/ already exists.
	if _, err := os.Stat(strataDir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", strataDir)
	}

	// Create directory structure.
	dirs := []string{
		filepath.Join(strataDir, "objects"),
		filepath.Join(strataDir, "refs", "heads"),
		filepath.Join(strataDir, "refs", "tags"),
		filepath.Join(strataDir, "logs", "refs", "heads"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	// Write default HEAD.
	headPath := filepath.Join(strataDir, "HEAD")
	if err := os.WriteFile(headPath, []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	// Seed an empty config so "config set" has a file to load.
	configPath := filepath.Join(strataDir, "config")
	if err := os.WriteFile(configPath, []byte("[core]\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write config: %w", err)
	}

	return &Repo{
		RootDir:   path,
		StrataDir: strataDir,
		Store:     object.NewStore(strataDir),
	}, nil
}

// Open searches upward from path for a .strata/ directory and opens the
// repository. Returns an error if no .strata/ directory is found.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		strataDir := filepath.Join(cur, ".strata")
		info, err := os.Stat(strataDir)
		if err == nil && info.IsDir() {
			return &Repo{
				RootDir:   cur,
				StrataDir: strataDir,
				Store:     object.NewStore(strataDir),
			}, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			// Reached filesystem root without finding .strata/.
			return nil, fmt.Errorf("open: not a strata repository (or any parent up to /)")
		}
		cur = parent
	}
}

// Head reads .strata/HEAD. If the content starts with "ref: ", it returns
// the ref path (e.g., "refs/heads/main"). Otherwise it returns the raw
// content as a detached hash string.
func (r *Repo) Head() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.StrataDir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	content := strings.TrimRight(string(data), "\n")

	if strings.HasPrefix(content, symbolicRefPrefix) {
		return strings.TrimPrefix(content, symbolicRefPrefix), nil
	}
	return content, nil
}

// Detached reports whether HEAD holds a raw commit hash instead of a branch.
func (r *Repo) Detached() (bool, error) {
	head, err := r.Head()
	if err != nil {
		return false, err
	}
	return !strings.HasPrefix(head, "refs/"), nil
}

// ResolveRef resolves a ref name to an object hash.
//
// Resolution order:
//  1. If name is "HEAD", read HEAD. If HEAD is symbolic, resolve the target
//     ref file. Symbolic indirection stops there: a ref file that itself
//     contains "ref: ..." fails with ErrInvalidRef.
//  2. If name starts with "refs/", read .strata/<name>.
//  3. Otherwise, try "refs/heads/<name>".
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	if name == "HEAD" {
		head, err := r.Head()
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(head, "refs/") {
			return r.ResolveRef(head)
		}
		// Detached HEAD: the value is a hash.
		return object.Hash(head), nil
	}

	var refPath string
	if strings.HasPrefix(name, "refs/") {
		refPath = filepath.Join(r.StrataDir, filepath.FromSlash(name))
	} else {
		refPath = filepath.Join(r.StrataDir, "refs", "heads", filepath.FromSlash(name))
	}

	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("resolve ref %q: %w", name, ErrRefNotFound)
		}
		return "", fmt.Errorf("resolve ref %q: %w", name, err)
	}

	content := strings.TrimSpace(string(data))
	if strings.HasPrefix(content, symbolicRefPrefix) {
		// Only HEAD may be symbolic; ref-to-ref chains are rejected so a
		// cycle can never form.
		return "", fmt.Errorf("resolve ref %q: %w", name, ErrInvalidRef)
	}
	return object.Hash(content), nil
}

// UpdateRef writes a hash to the named ref file under .strata/. Parent
// directories are created as needed.
func (r *Repo) UpdateRef(name string, h object.Hash) error {
	return r.UpdateRefCAS(name, h)
}

// UpdateRefCAS writes a hash to the named ref file under .strata/ using
// lockfile + rename atomic semantics. If expectedOld is provided, the
// update only succeeds when the current ref hash matches it; otherwise it
// fails with ErrRefCASMismatch and leaves the previous value intact.
//
// Reflog append happens after the ref rename; if reflog append fails, the
// ref update remains committed and a RefUpdateReflogError is returned.
func (r *Repo) UpdateRefCAS(name string, h object.Hash, expectedOld ...object.Hash) error {
	if len(expectedOld) > 1 {
		return fmt.Errorf("update ref %q: expected at most one old hash", name)
	}
	hasExpectedOld := len(expectedOld) == 1
	wantOldHash := object.Hash("")
	if hasExpectedOld {
		wantOldHash = expectedOld[0]
	}

	refPath := filepath.Join(r.StrataDir, filepath.FromSlash(name))

	dir := filepath.Dir(refPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", name, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("update ref %q: lock: %w", name, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	oldHash, err := readRefHash(refPath)
	if err != nil {
		return fmt.Errorf("update ref %q: read old hash: %w", name, err)
	}
	if hasExpectedOld && oldHash != wantOldHash {
		return fmt.Errorf(
			"update ref %q: %w (expected %s, found %s)",
			name,
			ErrRefCASMismatch,
			wantOldHash,
			oldHash,
		)
	}

	if _, err := lockFile.WriteString(string(h) + "\n"); err != nil {
		return fmt.Errorf("update ref %q: write: %w", name, err)
	}
	if err := lockFile.Sync(); err != nil {
		return fmt.Errorf("update ref %q: sync: %w", name, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return fmt.Errorf("update ref %q: close: %w", name, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return fmt.Errorf("update ref %q: rename: %w", name, err)
	}
	cleanupLock = false

	if err := r.appendReflog(name, oldHash, h, "update"); err != nil {
		return &RefUpdateReflogError{
			Ref:     name,
			OldHash: oldHash,
			NewHash: h,
			Err:     err,
		}
	}

	return nil
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}

func readRefHash(refPath string) (object.Hash, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	content := strings.TrimSpace(string(data))
	if strings.HasPrefix(content, symbolicRefPrefix) {
		return "", ErrInvalidRef
	}
	return object.Hash(content), nil
}

// setHead points HEAD at a branch (symbolic) or a raw commit hash (detached).
func (r *Repo) setHead(content string) error {
	headPath := filepath.Join(r.StrataDir, "HEAD")
	if err := os.WriteFile(headPath, []byte(content+"\n"), 0o644); err != nil {
		return fmt.Errorf("update HEAD: %w", err)
	}
	return nil
}
