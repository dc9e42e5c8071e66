package credentials

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Load when no credential is stored for the
// requested host.
var ErrNotFound = errors.New("no stored credential")

// StorageError reports a credential persistence I/O failure.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("credential storage: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("credential storage: %s (%s): %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
