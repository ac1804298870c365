package reconcile

import (
	"errors"
	"fmt"
)

// ErrReconcileFailed matches every *Error with errors.Is.
var ErrReconcileFailed = errors.New("reconcile failed")

// FailureKind says which collaborator failed.
type FailureKind int

const (
	StoreFailure FailureKind = iota + 1
	TransportFailure
)

func (k FailureKind) String() string {
	switch k {
	case StoreFailure:
		return "store"
	case TransportFailure:
		return "transport"
	default:
		return "unknown"
	}
}

// Error reports a failed step of a reconciliation.
type Error struct {
	Op    string // get, create, update, put, delete, expire
	RunID string
	Kind  FailureKind
	Err   error
}

func (e *Error) Error() string {
	if e.RunID == "" {
		return fmt.Sprintf("reconcile %s: %s failure: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("reconcile %s run %s: %s failure: %v", e.Op, e.RunID, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrReconcileFailed }

func storeErr(op, runID string, err error) error {
	return &Error{Op: op, RunID: runID, Kind: StoreFailure, Err: err}
}

func transportErr(op, runID string, err error) error {
	return &Error{Op: op, RunID: runID, Kind: TransportFailure, Err: err}
}
