package credential

import (
	"errors"
	"fmt"
)

// OpError is a typed operation error with a stable Op + Kind contract for callers/tests.
// Kind MUST be one of the sentinel kinds when applicable (ErrInvalidInput,
// ErrNotFound, ...). Msg may include human-readable context; do not include
// secrets or raw driver messages.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// StorageError reports a transient backend failure. The cause is retained for
// logging but the error surfaces as ErrStorageUnavailable to callers; raw
// driver errors never cross the API boundary.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrStorageUnavailable, e.Err)
}

func (e StorageError) Unwrap() error { return ErrStorageUnavailable }

// Cause returns the underlying driver error for structured logging.
func (e StorageError) Cause() error { return e.Err }

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsDuplicate reports whether err represents ErrDuplicateUsername.
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicateUsername) }

// IsInvalidInput reports whether err represents ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsStorageUnavailable reports whether err represents ErrStorageUnavailable.
func IsStorageUnavailable(err error) bool { return errors.Is(err, ErrStorageUnavailable) }
