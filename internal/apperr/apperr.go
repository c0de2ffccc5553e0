// Package apperr defines the error taxonomy shared by every board operation.
//
// Callers classify failures with errors.Is against the four sentinel kinds
// and recover detail (which entity, which id, which constraint) with
// errors.As. Detail is meant for logs; user-facing text should come from
// Message.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel kinds.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrConflict            = errors.New("conflict or transient failure")
	ErrConstraintViolation = errors.New("constraint violation")
)

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound returns a *NotFoundError for entity/id.
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// InvalidError reports an argument rejected before any write.
type InvalidError struct {
	Field  string
	Reason string
}

func (e *InvalidError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidError) Is(target error) bool { return target == ErrInvalidArgument }

// Invalid returns an *InvalidError. The reason is formatted with args.
func Invalid(field, reason string, args ...any) error {
	return &InvalidError{Field: field, Reason: fmt.Sprintf(reason, args...)}
}

// ConstraintError reports an operation refused because it would break a
// relationship, with a human-readable reason.
type ConstraintError struct {
	Reason string
}

func (e *ConstraintError) Error() string { return e.Reason }

func (e *ConstraintError) Is(target error) bool { return target == ErrConstraintViolation }

// Constraint returns a *ConstraintError.
func Constraint(reason string, args ...any) error {
	return &ConstraintError{Reason: fmt.Sprintf(reason, args...)}
}

// ConflictError wraps a store failure caused by concurrent conflicting
// writes. The identical operation may be retried.
type ConflictError struct {
	Err error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("transaction conflict: %v", e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// Conflict wraps err as a *ConflictError. A nil err yields nil.
func Conflict(err error) error {
	if err == nil {
		return nil
	}
	return &ConflictError{Err: err}
}

// Kind returns the taxonomy sentinel err belongs to, or nil for an
// unclassified (internal) failure.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrInvalidArgument, ErrConflict, ErrConstraintViolation} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Message returns the text safe to show a user. Not-found and internal
// failures collapse to fallback; invalid-argument and constraint reasons are
// shown as-is because they describe what the user did.
func Message(err error, fallback string) string {
	var inv *InvalidError
	if errors.As(err, &inv) {
		return inv.Error()
	}
	var cons *ConstraintError
	if errors.As(err, &cons) {
		return cons.Reason
	}
	if errors.Is(err, ErrConflict) {
		return fallback + ": please retry"
	}
	return fallback
}
