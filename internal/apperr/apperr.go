package apperr

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeIncompleteData      Code = "INCOMPLETE_DATA"
	CodeInvalidInput        Code = "INVALID_INPUT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeInsufficientStock   Code = "INSUFFICIENT_STOCK"
	CodeInvalidStatus       Code = "INVALID_STATUS"
	CodeConstraintViolation Code = "CONSTRAINT_VIOLATION"
	CodeConflict            Code = "CONFLICT"
	CodeStoreUnavailable    Code = "STORE_UNAVAILABLE"
)

// Error carries a stable code for callers and a human-readable message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the outermost *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Retryable reports whether the caller may repeat the operation unchanged.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeStoreUnavailable, CodeConflict:
		return true
	}
	return false
}
