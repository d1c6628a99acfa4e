package harvester

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrAlreadyHarvested is returned by Run when the harvester has
	// already performed its harvest. Harvesters are single use.
	ErrAlreadyHarvested = errors.New("harvester instances can only perform a single harvest, create a new instance to harvest again")

	// ErrKilled is returned by Run when the harvest was stopped via
	// Kill before completing.
	ErrKilled = errors.New("harvest killed before completion")
)

// ConfigError indicates an invalid harvest request: bad base URL,
// missing metadata prefix, until before from, and the like.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return e.Reason
}

// StorageError indicates a failure reading or writing harvested
// records on disk. Cause carries a permission diagnosis when one can
// be made, since unreadable or unwritable harvest directories are the
// most common operational failure.
type StorageError struct {
	Path  string
	Cause string
	Err   error
}

func (e *StorageError) Error() string {
	if e.Cause != "" {
		return fmt.Sprintf("storage error for %q (%s): %s", e.Path, e.Cause, e.Err)
	}
	return fmt.Sprintf("storage error for %q: %s", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// newStorageError wraps err with a permission diagnosis for path.
func newStorageError(path string, err error) *StorageError {
	se := &StorageError{Path: path, Err: err}
	if errors.Is(err, os.ErrPermission) {
		se.Cause = "permission denied, check read/write permissions on the harvest directory"
	}
	return se
}
