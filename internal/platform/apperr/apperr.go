// Package apperr defines the error taxonomy shared by the inventory core.
//
// Business-rule failures (malformed input, missing references, insufficient
// stock) carry no side effects and are returned as *Error values. Infrastructure
// failures (lock timeout, storage outage) are a distinct fatal class; their
// original cause stays reachable through errors.Unwrap.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies the class of an *Error.
type Code string

const (
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeInvalidQuantity    Code = "INVALID_QUANTITY"
	CodeAmbiguousTarget    Code = "AMBIGUOUS_OR_MISSING_TARGET"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInsufficientStock  Code = "INSUFFICIENT_STOCK"
	CodeTransactionTimeout Code = "TRANSACTION_TIMEOUT"
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
)

// argument reports whether the code is a malformed-input rejection.
func (c Code) argument() bool {
	return c == CodeInvalidArgument || c == CodeInvalidQuantity || c == CodeAmbiguousTarget
}

// Infrastructure reports whether the code belongs to the fatal class.
func (c Code) Infrastructure() bool {
	return c == CodeTransactionTimeout || c == CodeStorageUnavailable
}

// Error is the typed result returned across the coordinator boundary.
type Error struct {
	Code    Code
	Message string

	// Available and Requested are set for INSUFFICIENT_STOCK.
	Available int
	Requested int

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code, so errors.Is(err, ErrNotFound) holds for any NOT_FOUND
// error. INVALID_QUANTITY and AMBIGUOUS_OR_MISSING_TARGET also match
// ErrInvalidArgument.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == e.Code {
		return true
	}
	return t.Code == CodeInvalidArgument && e.Code.argument()
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidArgument    = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
	ErrInvalidQuantity    = &Error{Code: CodeInvalidQuantity, Message: "quantity must be positive"}
	ErrAmbiguousTarget    = &Error{Code: CodeAmbiguousTarget, Message: "exactly one of blood or organ unit must be set"}
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrInsufficientStock  = &Error{Code: CodeInsufficientStock, Message: "insufficient stock"}
	ErrTransactionTimeout = &Error{Code: CodeTransactionTimeout, Message: "transaction timed out"}
	ErrStorageUnavailable = &Error{Code: CodeStorageUnavailable, Message: "storage unavailable"}
)

// New builds an *Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error that keeps err as its cause.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func InvalidArgument(format string, args ...any) *Error {
	return New(CodeInvalidArgument, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, format, args...)
}

// InsufficientStock reports the quantity currently on hand.
func InsufficientStock(available, requested int) *Error {
	return &Error{
		Code:      CodeInsufficientStock,
		Message:   fmt.Sprintf("requested %d but only %d available", requested, available),
		Available: available,
		Requested: requested,
	}
}

// CodeOf returns the Code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsInfrastructure reports whether err belongs to the fatal class. Errors that
// carry no *Error are treated as infrastructure failures.
func IsInfrastructure(err error) bool {
	if err == nil {
		return false
	}
	code := CodeOf(err)
	return code == "" || code.Infrastructure()
}
