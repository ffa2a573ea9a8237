package app

import (
	"errors"
	"fmt"
)

// Kind categorizes an operation failure. The HTTP layer maps kinds to
// status codes.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindValidation
	KindConflict
	KindInvalidState
	KindTimeout
	KindRateLimited
	KindService
)

// Error is a categorized failure with a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// E builds a categorized error.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// wrapE builds a categorized error around a cause.
func wrapE(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf extracts the category from an error chain. Uncategorized errors
// report KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message for an error chain. The cause
// of a categorized error is never exposed.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}
