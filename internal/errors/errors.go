// Package errors defines the closed error taxonomy shared by every core
// subsystem (query codec, payload, full-text index, result pool, bindings).
package errors

import (
	"errors"
	"fmt"
)

// Kind is a closed enumeration of error categories surfaced to callers.
// It never grows silently — every new failure mode must map onto one of
// these.
type Kind int

const (
	KindOK Kind = iota
	KindParseSQL
	KindParseJSON
	KindParseDSL
	KindParseBin
	KindParams
	KindLogic
	KindNotValid
	KindConflict
	KindStateInvalidated
	KindTagsMissmatch
	KindNotFound
	KindTimeout
	KindCanceled
	KindTooManyParallelQueries
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindParseSQL:
		return "parse-sql"
	case KindParseJSON:
		return "parse-json"
	case KindParseDSL:
		return "parse-dsl"
	case KindParseBin:
		return "parse-bin"
	case KindParams:
		return "params"
	case KindLogic:
		return "logic"
	case KindNotValid:
		return "not-valid"
	case KindConflict:
		return "conflict"
	case KindStateInvalidated:
		return "state-invalidated"
	case KindTagsMissmatch:
		return "tags-missmatch"
	case KindNotFound:
		return "not-found"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindTooManyParallelQueries:
		return "too-many-parallel-queries"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is a formatted, kind-tagged error. No stack traces are carried —
// the taxonomy is the diagnostic surface, per spec.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind of err, or KindLogic if err does not carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return KindOK
	}
	return KindLogic
}

// New constructs a *Error with the given kind and formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind to an underlying error, preserving it for Unwrap.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Sentinel values for conditions that are checked by identity rather than
// kind alone, using a flat var-block style.
var (
	ErrFreePayload       = errors.New("dereferencing a free payload")
	ErrRefcountUnderflow = errors.New("payload refcount underflow")
	ErrBracketImbalance  = errors.New("unbalanced query brackets")
	ErrPoolStopped       = errors.New("result pool is stopped")
	ErrHandleNotFound    = errors.New("handle not found")
	ErrHandleFreedTwice  = errors.New("buffer handle freed twice")
)
