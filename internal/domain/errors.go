package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports missing or malformed caller input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a referenced resource that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

type ConflictReason string

const (
	ConflictInsufficientStock ConflictReason = "insufficient_stock"
	ConflictStaleCart         ConflictReason = "stale_cart"
	ConflictDuplicate         ConflictReason = "duplicate"
	ConflictOrderNumber       ConflictReason = "duplicate_order_number"
	ConflictTransition        ConflictReason = "invalid_transition"
)

// ConflictError reports a request that clashes with current state. The caller
// may fix the state (e.g. review the cart) and resubmit.
type ConflictError struct {
	Reason ConflictReason
	Msg    string
	Err    error
}

func (e *ConflictError) Error() string { return e.Msg }
func (e *ConflictError) Unwrap() error { return e.Err }

func Conflict(reason ConflictReason, format string, args ...any) error {
	return &ConflictError{Reason: reason, Msg: fmt.Sprintf(format, args...)}
}

// AuthorizationError reports an acting identity that may not perform the
// operation. Unauthenticated marks a missing or invalid credential.
type AuthorizationError struct {
	Msg             string
	Unauthenticated bool
}

func (e *AuthorizationError) Error() string { return e.Msg }

func Forbidden(msg string) error { return &AuthorizationError{Msg: msg} }

func Unauthenticated(msg string) error {
	return &AuthorizationError{Msg: msg, Unauthenticated: true}
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is a ConflictError with the given reason; an
// empty reason matches any conflict.
func IsConflict(err error, reason ConflictReason) bool {
	var ce *ConflictError
	if !errors.As(err, &ce) {
		return false
	}
	return reason == "" || ce.Reason == reason
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsAuthorization(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}
