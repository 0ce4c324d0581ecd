// Package clauseerr defines the error kinds surfaced by the retrieval core.
package clauseerr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds named by the core's error handling design.
type Kind string

const (
	// InvalidInput marks malformed filters or unknown enum values.
	InvalidInput Kind = "invalid_input"
	// NotFound marks an unknown product_code in tools that require one.
	NotFound Kind = "not_found"
	// EmptyResult marks a retrieval that completed but met no threshold.
	// Callers should treat this as a valid, contentless result, not a failure.
	EmptyResult Kind = "empty_result"
	// CircuitOpen marks an offline-only rate-limiter trip; caller must back off.
	CircuitOpen Kind = "circuit_open"
	// ParseFailure marks a per-document ingestion failure.
	ParseFailure Kind = "parse_failure"
	// IndexMismatch marks a query embedding model/dimension disagreement with
	// the stored index.
	IndexMismatch Kind = "index_mismatch"
	// Timeout marks a deadline exceeded on the online path.
	Timeout Kind = "timeout"
	// InternalError is the catch-all kind.
	InternalError Kind = "internal_error"
)

// Error is a Kind-tagged error that wraps an underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a Kind-tagged error for operation op.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// KindOf returns the kind carried by err, or InternalError if err does not
// carry one.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return InternalError
}
