// Package apperr defines the error taxonomy returned across operation
// boundaries.
//
// Domain failures (Validation, Duplicate, NotFound, Unauthorized) are recovered
// at the boundary of each operation and returned as *Error values. Delivery
// failures are never surfaced to callers; the kind exists so logs can tag them.
// Infrastructure failures are wrapped as Persistence with the underlying cause
// preserved for errors.Is / errors.As.
package apperr

import (
	"errors"
	"fmt"
)

// Kind categorizes an error for callers.
type Kind string

const (
	// KindValidation indicates malformed or missing input.
	KindValidation Kind = "VALIDATION"

	// KindDuplicate indicates a uniqueness rule was violated.
	KindDuplicate Kind = "DUPLICATE"

	// KindNotFound indicates the entity does not exist or is not owned by the caller.
	KindNotFound Kind = "NOT_FOUND"

	// KindUnauthorized indicates invalid credentials.
	KindUnauthorized Kind = "UNAUTHORIZED"

	// KindDelivery indicates an outbound message could not be sent.
	KindDelivery Kind = "DELIVERY"

	// KindPersistence indicates a storage failure.
	KindPersistence Kind = "PERSISTENCE"
)

// Error is a typed operation error.
type Error struct {
	// Kind is the error category.
	Kind Kind

	// Op names the failing operation (e.g. "warranty.add").
	Op string

	// Message is a human-readable description safe to show end users.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindPersistence {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a KindValidation error.
func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Duplicate creates a KindDuplicate error.
func Duplicate(op, message string) *Error {
	return &Error{Kind: KindDuplicate, Op: op, Message: message}
}

// NotFound creates a KindNotFound error.
func NotFound(op, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

// Unauthorized creates a KindUnauthorized error.
func Unauthorized(op, message string) *Error {
	return &Error{Kind: KindUnauthorized, Op: op, Message: message}
}

// Persistence wraps a storage failure.
func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Op: op, Message: "storage failure", Err: err}
}

// KindOf returns the kind of err, or KindPersistence for untyped errors.
// Returns "" for a nil error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}

// Is reports whether err is an *Error of the given kind.
// Uses errors.As to handle wrapped errors.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Message returns the user-facing message for err.
// Infrastructure failures collapse to a generic message.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindPersistence {
		return e.Message
	}
	return "an internal error occurred"
}
