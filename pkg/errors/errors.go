package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code is the stable, client-visible error identifier.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_CONFLICT"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	CodeSignatureInvalid  Code = "SIGNATURE_INVALID"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeSettlement        Code = "SETTLEMENT_FAILED"
)

// Metadata describes how a code is surfaced over HTTP.
//
// ShowMessage lets the error's own message reach the client in place of
// PublicMessage; it is only set for codes whose messages are written for
// callers and never carry driver or gateway text.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	ShowMessage    bool
	DetailsAllowed bool
}

const (
	retryable = 1 << iota
	showMessage
	detailsAllowed
)

func meta(status int, public string, flags int) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      flags&retryable != 0,
		ShowMessage:    flags&showMessage != 0,
		DetailsAllowed: flags&detailsAllowed != 0,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:        meta(http.StatusBadRequest, "validation failed", showMessage|detailsAllowed),
	CodeForbidden:         meta(http.StatusForbidden, "access denied", showMessage),
	CodeNotFound:          meta(http.StatusNotFound, "resource not found", showMessage),
	CodeConflict:          meta(http.StatusConflict, "conflict detected", showMessage),
	CodeStateConflict:     meta(http.StatusUnprocessableEntity, "state transition disallowed", showMessage|detailsAllowed),
	CodeIdempotency:       meta(http.StatusConflict, "idempotency key conflict", showMessage|detailsAllowed),
	CodeInternal:          meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:        meta(http.StatusServiceUnavailable, "dependency unavailable", retryable|detailsAllowed),
	CodeSignatureInvalid:  meta(http.StatusBadRequest, "signature verification failed", showMessage),
	CodeInsufficientStock: meta(http.StatusConflict, "insufficient stock", showMessage|detailsAllowed),
	CodeSettlement:        meta(http.StatusInternalServerError, "settlement could not be completed", retryable|showMessage|detailsAllowed),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a code to err. A nil err yields a plain New.
func Wrap(code Code, err error, message string) *Error {
	e := New(code, message)
	e.cause = err
	return e
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost *Error in err's chain carries code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// Retryable reports whether repeating the failed call may succeed. Untyped
// errors are treated as transient.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	typed := As(err)
	if typed == nil {
		return true
	}
	return MetadataFor(typed.code).Retryable
}
