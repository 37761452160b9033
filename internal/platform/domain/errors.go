package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an AppError so transports can map it to a caller-facing status.
type ErrorKind string

const (
	KindNotFound                ErrorKind = "NOT_FOUND"
	KindUnauthenticated         ErrorKind = "UNAUTHENTICATED"
	KindForbidden               ErrorKind = "FORBIDDEN"
	KindValidation              ErrorKind = "VALIDATION_ERROR"
	KindInvalidDateRange        ErrorKind = "INVALID_DATE_RANGE"
	KindDateConflict            ErrorKind = "DATE_CONFLICT"
	KindPriceMismatch           ErrorKind = "PRICE_MISMATCH"
	KindSelfBookingForbidden    ErrorKind = "SELF_BOOKING_FORBIDDEN"
	KindInvalidTransition       ErrorKind = "INVALID_TRANSITION"
	KindImmutableFieldViolation ErrorKind = "IMMUTABLE_FIELD_VIOLATION"
	KindConcurrentModification  ErrorKind = "CONCURRENT_MODIFICATION"
	KindStorage                 ErrorKind = "STORAGE_ERROR"
)

// AppError is the typed failure returned by every service operation.
type AppError struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches on Kind so errors.Is(err, &AppError{Kind: KindNotFound}) works.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of err, or KindStorage for untyped errors.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStorage
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// NewNotFoundError creates a not-found error for the given entity.
func NewNotFoundError(entity, id string) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", entity),
		Details: map[string]any{"entity": entity, "id": id},
	}
}

func NewUnauthenticatedError(message string) *AppError {
	return &AppError{Kind: KindUnauthenticated, Message: message}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message}
}

func NewValidationError(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

func NewInvalidDateRangeError(message string) *AppError {
	return &AppError{Kind: KindInvalidDateRange, Message: message}
}

// NewDateConflictError carries the conflicting range so clients can adjust their dates.
// start and end may be empty when the conflict was detected by the storage constraint.
func NewDateConflictError(start, end string) *AppError {
	e := &AppError{Kind: KindDateConflict, Message: "requested dates are not available"}
	if start != "" || end != "" {
		e.Details = map[string]any{
			"conflictingRange": map[string]string{"start": start, "end": end},
		}
	}
	return e
}

func NewPriceMismatchError(expected, got int64) *AppError {
	return &AppError{
		Kind:    KindPriceMismatch,
		Message: "submitted total price does not match the computed price",
		Details: map[string]any{"expected": expected, "submitted": got},
	}
}

func NewSelfBookingError() *AppError {
	return &AppError{Kind: KindSelfBookingForbidden, Message: "you cannot book your own listing"}
}

// NewInvalidTransitionError reports a status pair outside the state machine.
func NewInvalidTransitionError(from, to string) *AppError {
	return &AppError{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
		Details: map[string]any{"from": from, "to": to},
	}
}

func NewImmutableFieldError(fields []string, status string) *AppError {
	return &AppError{
		Kind:    KindImmutableFieldViolation,
		Message: fmt.Sprintf("fields cannot be modified on a %s reservation", status),
		Details: map[string]any{"fields": fields, "status": status},
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{Kind: KindConcurrentModification, Message: message}
}

// NewStorageError wraps a persistence failure; the cause is kept for logs only.
func NewStorageError(op string, err error) *AppError {
	return &AppError{Kind: KindStorage, Message: op, Err: err}
}
