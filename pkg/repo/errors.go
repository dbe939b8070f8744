package repo

import (
	"errors"
	"fmt"

	"github.com/odvcencio/strata/pkg/object"
)

// ErrRefCASMismatch reports that a compare-and-swap ref update lost a race:
// the ref no longer held the expected old hash.
var ErrRefCASMismatch = errors.New("ref compare-and-swap mismatch")

// ErrRefNotFound reports that a named reference does not exist.
var ErrRefNotFound = errors.New("ref not found")

// ErrInvalidRef reports a symbolic reference chain deeper than one level.
// Only HEAD may be symbolic; a ref file pointing at another ref name is
// rejected outright, which makes reference cycles unrepresentable.
var ErrInvalidRef = errors.New("invalid symbolic ref")

// ErrNothingToCommit reports that the staged tree is identical to the
// current commit's tree.
var ErrNothingToCommit = errors.New("nothing to commit")

// ErrPathConflict reports that a path is staged as both a file and a
// directory prefix.
var ErrPathConflict = errors.New("path conflict between file and directory")

// ErrUncommittedChanges reports that an operation refusing to clobber
// uncommitted state found some.
var ErrUncommittedChanges = errors.New("uncommitted changes in working tree")

var ErrRefUpdatedButReflogAppendFailed = errors.New("ref updated but reflog append failed")

// RefUpdateReflogError indicates the ref file update succeeded, but appending
// the corresponding reflog entry failed.
type RefUpdateReflogError struct {
	Ref     string
	OldHash object.Hash
	NewHash object.Hash
	Err     error
}

func (e *RefUpdateReflogError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf(
		"update ref %q: %s (old=%s new=%s): %v",
		e.Ref,
		ErrRefUpdatedButReflogAppendFailed,
		e.OldHash,
		e.NewHash,
		e.Err,
	)
}

func (e *RefUpdateReflogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *RefUpdateReflogError) Is(target error) bool {
	return target == ErrRefUpdatedButReflogAppendFailed
}
