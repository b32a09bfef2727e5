package castore

import (
	"errors"
	"fmt"

	bk "github.com/unkn0wn-root/castore/backend"
)

var (
	ErrNilBackend         = errors.New("castore: backend is required")
	ErrBackendUnavailable = errors.New("castore: backend unavailable")
	ErrTransactionFailed  = errors.New("castore: transaction failed")
	ErrCorruptItem        = errors.New("castore: corrupt item")
	ErrInvalidKind        = errors.New("castore: invalid kind")
)

// BackendError wraps a failed backend request. It matches both
// ErrBackendUnavailable and the underlying cause.
type BackendError struct {
	Op  string
	Key string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("castore: %s %q: backend unavailable: %v", e.Op, e.Key, e.Err)
}

func (e *BackendError) Unwrap() []error {
	return []error{ErrBackendUnavailable, e.Err}
}

// TransactionError reports the Init batch that failed. Batches before it
// were committed and are not rolled back.
type TransactionError struct {
	Batch   int // 1-based
	Batches int
	Ops     int
	Err     error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("castore: init batch %d/%d (%d ops) failed, %d committed: %v",
		e.Batch, e.Batches, e.Ops, e.Batch-1, e.Err)
}

// Unwrap matches ErrTransactionFailed and the cause. A batch that never
// reached a verdict from the service also matches ErrBackendUnavailable.
func (e *TransactionError) Unwrap() []error {
	errs := []error{ErrTransactionFailed, e.Err}
	var te *bk.TxnError
	if !errors.As(e.Err, &te) && !errors.Is(e.Err, bk.ErrTooManyOps) {
		errs = append(errs, ErrBackendUnavailable)
	}
	return errs
}

func corrupt(storageKey string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCorruptItem, storageKey, err)
}
