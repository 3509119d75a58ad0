package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeUpstream     ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrCodePartial      ErrorCode = "PARTIAL_RESOLUTION"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	ErrProductNotFound = NewError(ErrCodeNotFound, "product not found")
	ErrSessionNotFound = NewError(ErrCodeNotFound, "wallet session not found")
	ErrInvalidID       = NewError(ErrCodeInvalid, "invalid product id")
	ErrInvalidAddress  = NewError(ErrCodeInvalid, "invalid owner address")
	ErrInvalidPayload  = NewError(ErrCodeInvalid, "invalid payload")
	ErrUnauthorized    = NewError(ErrCodeUnauthorized, "unauthorized")
)

// UpstreamError classifies a failed ledger or cache transport call. The
// reconciliation layer never retries; callers decide.
func UpstreamError(err error) *Error {
	return WrapError(ErrCodeUpstream, "upstream unavailable", err)
}

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}
