package cart

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrStorage matches every failure of the durable cart storage.
var ErrStorage = errors.New("cart storage failure")

// StorageError wraps an I/O failure of a Repository. It is returned to the
// caller of a mutation; the cache is never touched on this path.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cart storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func storageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// DeserializationError reports a persisted payload that is not a valid ledger.
// Repositories recover from it by treating the ledger as empty.
type DeserializationError struct {
	Err error
}

func (e *DeserializationError) Error() string {
	return "failed to decode cart ledger: " + e.Err.Error()
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// IsStorageFailure reports whether err came from the storage boundary.
func IsStorageFailure(err error) bool {
	return errors.Is(err, ErrStorage)
}
