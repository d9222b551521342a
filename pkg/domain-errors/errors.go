// Package domainerrors provides coded errors for the service layer.
//
// Services construct these at domain boundaries so transports can translate
// them into consistent HTTP responses without inspecting error strings.
// Infrastructure layers should return pkg/platform/sentinel errors instead;
// services wrap those into coded errors here.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for transport mapping and branching.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeUnavailable        Code = "unavailable"
	CodeInternal           Code = "internal"
)

// Error is a coded domain error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		de = nil
	}
	return false
}

// Is is a readability alias for HasCode, matching handler-side usage.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf returns the outermost code on err, or CodeInternal when uncoded.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to an HTTP status for the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvariantViolation:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
