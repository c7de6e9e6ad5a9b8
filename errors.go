package tigstore

import (
	"errors"
	"fmt"
)

var (
	// ErrTigDeleted is returned when loading or copying a logically removed
	// tig.
	ErrTigDeleted = errors.New("tig is deleted")

	// ErrVersionOverflow is returned when a version transition would exceed
	// the 10-bit version space (1023).
	ErrVersionOverflow = errors.New("store version overflow")

	// ErrInvalidMode is returned on a mutating call against a store that was
	// not opened writable.
	ErrInvalidMode = errors.New("operation not permitted in this open mode")

	// ErrClosed is returned on any call after Close.
	ErrClosed = errors.New("store is closed")
)

// CorruptStoreError indicates damage to the store itself: a bad index magic,
// a slot referencing past the end of a data file, or a framing disagreement.
// Not recoverable.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type CorruptStoreError struct {
	Path   string
	Reason string
	cause  error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("corrupt store at %s: %s", e.Path, e.Reason)
}

func (e *CorruptStoreError) Unwrap() error { return e.cause }

// CorruptPayloadError indicates a single record that cannot be decoded. The
// caller may skip the tig and continue.
type CorruptPayloadError struct {
	TigID uint32
	cause error
}

func (e *CorruptPayloadError) Error() string {
	return fmt.Sprintf("corrupt payload for tig %d: %v", e.TigID, e.cause)
}

func (e *CorruptPayloadError) Unwrap() error { return e.cause }

// IOError wraps a read, write, or seek failure with the (version, offset)
// it occurred at.
type IOError struct {
	Op      string
	Version uint32
	Offset  uint64
	cause   error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s failed at version %d offset %d: %v", e.Op, e.Version, e.Offset, e.cause)
}

func (e *IOError) Unwrap() error { return e.cause }

// ExitCode maps an error from the store to the process exit code convention
// used by the command-line wrappers: 0 success, 1 generic, 2 corrupt store
// or payload, 3 version overflow, 4 IO.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var cs *CorruptStoreError
	var cp *CorruptPayloadError
	if errors.As(err, &cs) || errors.As(err, &cp) {
		return 2
	}
	if errors.Is(err, ErrVersionOverflow) {
		return 3
	}
	var ioe *IOError
	if errors.As(err, &ioe) {
		return 4
	}
	return 1
}
