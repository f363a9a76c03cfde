package apperr

import "errors"

// Kind classifies a rejection so callers can branch on it without string matching.
type Kind string

const (
	KindPrecondition Kind = "precondition"
	KindCapability   Kind = "capability"
	KindNotFound     Kind = "not_found"
	KindResource     Kind = "resource"
	KindInvariant    Kind = "invariant"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// Error is a sentinel rejection. Compare with errors.Is; pointers are unique.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

// KindOf returns the kind of the first *Error in the chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Retryable reports whether the same request may succeed once the blocking
// condition (funds, concurrent operation) clears.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindResource, KindConflict:
		return true
	}
	return false
}

var (
	ErrInvalidIdentity = New(KindPrecondition, "invalid identity")
	ErrInvalidAmount   = New(KindPrecondition, "amount must be positive")
	ErrForbidden       = New(KindCapability, "caller lacks required capability")
	ErrReentrantCall   = New(KindConflict, "operation already in progress for this key")
)
