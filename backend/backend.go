// Package backend defines the key-value primitives castore is built on.
//
// A Backend is a flat string-keyed byte store that assigns every key a
// modification index. The index grows on every successful write of that key
// and is 0 for a key that does not exist. Implementations MUST be
// byte-for-byte transparent and safe for concurrent use.
//
// Important: everything under "<prefix>/" is owned by castore. Init deletes
// keys below the prefix that are not part of the data set it writes.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// MaxTxnOps is the largest transaction a Backend has to accept.
// Consul refuses transactions with more operations.
const MaxTxnOps = 64

var ErrTooManyOps = fmt.Errorf("backend: transaction exceeds %d operations", MaxTxnOps)

type Verb uint8

const (
	VerbSet Verb = iota + 1
	VerbDelete
)

func (v Verb) String() string {
	switch v {
	case VerbSet:
		return "set"
	case VerbDelete:
		return "delete"
	default:
		return fmt.Sprintf("verb(%d)", uint8(v))
	}
}

// Op is one step of a transaction. Value is ignored for deletes.
type Op struct {
	Verb  Verb
	Key   string
	Value []byte
}

func Set(key string, value []byte) Op { return Op{Verb: VerbSet, Key: key, Value: value} }
func Delete(key string) Op            { return Op{Verb: VerbDelete, Key: key} }

// Entry is a stored value with its modification index.
type Entry struct {
	Key      string
	Value    []byte
	ModIndex uint64
}

type Backend interface {
	// Name identifies the backend in logs and diagnostics, e.g. "consul".
	Name() string

	// Get returns (nil, nil) when the key does not exist.
	Get(ctx context.Context, key string) (*Entry, error)

	// List returns every entry whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]Entry, error)

	// Keys returns every key that starts with prefix. Some services report
	// an empty result as a not-found StatusError instead of an empty slice.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// CAS writes value only if the key's modification index still equals
	// modIndex; modIndex 0 means "only if the key does not exist".
	// ok=false with a nil error means another writer got there first.
	CAS(ctx context.Context, key string, value []byte, modIndex uint64) (ok bool, err error)

	// Txn applies ops atomically: all or none. len(ops) <= MaxTxnOps.
	// A rolled-back transaction returns a *TxnError.
	Txn(ctx context.Context, ops []Op) error

	// Close releases resources. Safe to call more than once.
	Close(ctx context.Context) error
}

// StatusError carries a service-specific status code, e.g. an HTTP status
// from Consul. Callers inspect Code; they never match on Body.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("backend: unexpected status %d: %s", e.Code, strings.TrimSpace(e.Body))
}

// HasStatus reports whether err wraps a StatusError with one of codes.
func HasStatus(err error, codes ...int) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	for _, c := range codes {
		if se.Code == c {
			return true
		}
	}
	return false
}

// TxnError reports a transaction the service rolled back.
type TxnError struct {
	// OpIndex -> reason, as reported by the service.
	Reasons map[int]string
}

func (e *TxnError) Error() string {
	if len(e.Reasons) == 0 {
		return "backend: transaction rolled back"
	}
	idx := make([]int, 0, len(e.Reasons))
	for i := range e.Reasons {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	var b strings.Builder
	b.WriteString("backend: transaction rolled back:")
	for _, i := range idx {
		fmt.Fprintf(&b, " op[%d]: %s;", i, e.Reasons[i])
	}
	return strings.TrimSuffix(b.String(), ";")
}

// CheckOps validates a transaction before it is sent.
func CheckOps(ops []Op) error {
	if len(ops) > MaxTxnOps {
		return ErrTooManyOps
	}
	for i, op := range ops {
		if op.Verb != VerbSet && op.Verb != VerbDelete {
			return fmt.Errorf("backend: op[%d]: unknown %s", i, op.Verb)
		}
		if op.Key == "" {
			return fmt.Errorf("backend: op[%d]: empty key", i)
		}
	}
	return nil
}
