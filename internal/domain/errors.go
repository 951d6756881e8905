package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures by how the engine must react to them
type ErrorKind int

const (
	// KindTransient failures are logged and retried next cycle
	KindTransient ErrorKind = iota
	// KindNotFound means an expected element or page was absent
	KindNotFound
	// KindBusinessRejected means the supplier refused the order (credit limit)
	KindBusinessRejected
	// KindFatal stops the engine
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindNotFound:
		return "not_found"
	case KindBusinessRejected:
		return "business_rejected"
	case KindFatal:
		return "fatal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a classified engine error
type Error struct {
	Err    error
	Op     string
	Reason string
	Kind   ErrorKind
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Reason != "" {
		if msg != "" {
			msg += ": "
		}
		msg += e.Reason
	}
	if e.Err != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors by kind and reason so errors.Is(err, ErrCreditLimit) works
// across wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Reason != "" && t.Reason == e.Reason && t.Op == ""
}

var (
	// ErrCreditLimit is the supplier's credit-limit rejection
	ErrCreditLimit = &Error{Kind: KindBusinessRejected, Reason: "credit limit exceeded"}
	// ErrSessionExpired means the supplier session can no longer be used
	ErrSessionExpired = &Error{Kind: KindFatal, Reason: "session expired"}
	// ErrStoppedForToday is returned when an order sequence exhausted its reductions
	ErrStoppedForToday = &Error{Kind: KindBusinessRejected, Reason: "stopped for today"}
)

// NewError creates a classified error
func NewError(kind ErrorKind, op, reason string, err error) *Error {
	return &Error{Kind: kind, Op: op, Reason: reason, Err: err}
}

// Transient wraps err as a transient failure of op
func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// NotFound reports a missing element or page
func NotFound(op, what string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Reason: what + " not found"}
}

// Fatal wraps err as a fatal failure of op
func Fatal(op string, err error) *Error {
	return &Error{Kind: KindFatal, Op: op, Err: err}
}

// KindOf returns the kind of the outermost classified error in the chain.
// Unclassified errors are transient.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// IsFatal reports whether err must stop the engine
func IsFatal(err error) bool {
	return err != nil && KindOf(err) == KindFatal
}

// IsBusinessRejected reports whether the supplier refused the order
func IsBusinessRejected(err error) bool {
	return err != nil && KindOf(err) == KindBusinessRejected
}

// IsNotFound reports whether an expected element or page was absent
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}
