// Package errs defines the application error taxonomy. Every error carries a
// code; errors.Is matches two errors when their codes are equal, so callers
// compare against the package-level sentinels (errs.ErrNotFound and friends).
package errs

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown         = "UNKNOWN"
	CodeNotFound        = "NOT_FOUND"
	CodeNotReady        = "NOT_READY"
	CodeEmptyCache      = "EMPTY_CACHE"
	CodeProvider        = "PROVIDER"
	CodeValidation      = "VALIDATION"
	CodeDeliveryBlocked = "DELIVERY_BLOCKED"
	CodeDelivery        = "DELIVERY"
	CodeDatabase        = "DATABASE"
	CodeConfig          = "CONFIG"
)

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound        = &Error{code: CodeNotFound, message: "not found"}
	ErrNotReady        = &Error{code: CodeNotReady, message: "not ready"}
	ErrEmptyCache      = &Error{code: CodeEmptyCache, message: "empty cache"}
	ErrProvider        = &Error{code: CodeProvider, message: "provider failure"}
	ErrValidation      = &Error{code: CodeValidation, message: "validation failed"}
	ErrDeliveryBlocked = &Error{code: CodeDeliveryBlocked, message: "delivery blocked"}
	ErrDelivery        = &Error{code: CodeDelivery, message: "delivery failed"}
	ErrDatabase        = &Error{code: CodeDatabase, message: "database error"}
	ErrConfig          = &Error{code: CodeConfig, message: "configuration error"}
)

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error represents an application error with a code, a message and an optional cause.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *Error) Code() string {
	return e.code
}

// Message returns the error text without its cause, safe to show to users.
func (e *Error) Message() string {
	return e.message
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return t.code == e.code
}

// Code returns the code of the first ApplicationError in err's chain,
// or CodeUnknown if it doesn't.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

// Message returns the user-facing message of the first *Error in err's chain,
// or fallback if there is none.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.message
	}

	return fallback
}

func newError(code, message string, cause error) error {
	return &Error{code: code, message: message, err: cause}
}

func NewNotFoundError(message string, cause error) error {
	return newError(CodeNotFound, message, cause)
}

func NewNotReadyError(message string, cause error) error {
	return newError(CodeNotReady, message, cause)
}

func NewEmptyCacheError(message string, cause error) error {
	return newError(CodeEmptyCache, message, cause)
}

func NewProviderError(message string, cause error) error {
	return newError(CodeProvider, message, cause)
}

func NewValidationError(message string, cause error) error {
	return newError(CodeValidation, message, cause)
}

func NewDeliveryBlockedError(message string, cause error) error {
	return newError(CodeDeliveryBlocked, message, cause)
}

func NewDeliveryError(message string, cause error) error {
	return newError(CodeDelivery, message, cause)
}

func NewDatabaseError(message string, cause error) error {
	return newError(CodeDatabase, message, cause)
}

func NewConfigError(message string, cause error) error {
	return newError(CodeConfig, message, cause)
}
