package layer

import (
	"errors"
	"fmt"
)

var (
	// ErrBuild matches every *BuildError via errors.Is.
	ErrBuild = errors.New("layer build failed")

	// ErrNotFound is returned by a Store that holds no layer for a key.
	ErrNotFound = errors.New("layer not found")

	// ErrClosed is returned by a closed LayerCache.
	ErrClosed = errors.New("layer cache closed")

	// ErrNilRequest is returned by GetLayer for a nil request.
	ErrNilRequest = errors.New("decoded request cannot be nil")
)

// BuildError reports a layer build failure. Every caller waiting on the
// same key receives the same BuildError.
type BuildError struct {
	// Key is the composite cache key of the failed layer.
	Key string

	// Module is the module whose build failed, if one did.
	Module string

	Err error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.Module != "" {
		return fmt.Sprintf("build layer: module %s: %v", e.Module, e.Err)
	}
	return fmt.Sprintf("build layer: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *BuildError) Unwrap() error {
	return e.Err
}

// Is reports ErrBuild as a match.
func (e *BuildError) Is(target error) bool {
	return target == ErrBuild
}

// SnapshotError reports that the cache could not be snapshotted for a
// dump. Nothing has been written to the sink when it is returned.
type SnapshotError struct {
	Err error
}

// Error implements the error interface.
func (e *SnapshotError) Error() string {
	return fmt.Sprintf("snapshot layer cache: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SnapshotError) Unwrap() error {
	return e.Err
}
