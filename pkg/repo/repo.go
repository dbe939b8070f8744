package repo

import (
	"github.com/odvcencio/strata/pkg/object"
)

// Repo represents an opened strata repository.
type Repo struct {
	RootDir   string        // working directory root
	StrataDir string        // .strata/ directory
	Store     *object.Store // content-addressed object store
}
