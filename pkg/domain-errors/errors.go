// Package domainerrors defines client-safe coded errors. Services return them,
// and the HTTP edge turns the code into a status and an error envelope.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies an error kind. The string value is what clients see in the
// "error" field of the envelope.
type Code string

const (
	CodeValidation       Code = "validation_error"
	CodeBadRequest       Code = "bad_request"
	CodeConflict         Code = "conflict"
	CodeNotFound         Code = "not_found"
	CodeUnsupportedMedia Code = "unsupported_media_type"
	CodePayloadTooLarge  Code = "payload_too_large"
	CodeInvalidState     Code = "invalid_state"
	CodePersistence      Code = "persistence_error"
	CodeStorage          Code = "storage_error"
	CodeUnauthorized     Code = "unauthorized"
	CodeRateLimited      Code = "rate_limit_exceeded"
	CodeInternal         Code = "internal_error"
)

// Error is a coded error. Message is safe to show to clients; Err keeps the
// underlying cause for logs.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// New builds an Error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an Error that keeps err as its cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same code. An empty target message
// matches any message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal
// when there is none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message of the first *Error in err's chain.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
