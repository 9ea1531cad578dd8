package engine

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrInvalidConfig is returned before any I/O when a Config is malformed.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound is returned when the source does not exist. It also
	// matches fs.ErrNotExist.
	ErrNotFound = fmt.Errorf("source not found: %w", fs.ErrNotExist)

	// ErrAlreadyExists is returned under OverwriteRaise when the target
	// exists. It also matches fs.ErrExist.
	ErrAlreadyExists = fmt.Errorf("target already exists: %w", fs.ErrExist)

	// ErrRecursiveCopy is returned when source and target overlap on the
	// same backend.
	ErrRecursiveCopy = errors.New("source and target overlap")

	// ErrVerifyMismatch is returned when a copied file's digest differs from
	// its source.
	ErrVerifyMismatch = errors.New("checksum mismatch")
)

// OpError records the operation, source and target of a failed copy step.
// Err is the backend error unchanged, or one of the sentinels above.
type OpError struct {
	Op  string
	Src string
	Dst string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s -> %s: %v", e.Op, e.Src, e.Dst, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
