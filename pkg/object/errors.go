package object

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that no object with the requested hash exists.
var ErrNotFound = errors.New("object not found")

// IntegrityError reports that an object's stored bytes no longer hash to the
// hash they were requested by. It signals on-disk corruption and is never
// recovered silently.
type IntegrityError struct {
	Want Hash // hash the object was requested by
	Got  Hash // hash recomputed from the stored bytes
}

func (e *IntegrityError) Error() string {
	if e.Got == "" {
		return fmt.Sprintf("object %s: integrity check failed (stored bytes unreadable)", e.Want)
	}
	return fmt.Sprintf("object %s: integrity check failed (stored bytes hash to %s)", e.Want, e.Got)
}

// IsIntegrityError reports whether err is (or wraps) an IntegrityError.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
