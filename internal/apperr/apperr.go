package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a failure for callers and for the HTTP boundary.
type Code string

const (
	CodeValidation     Code = "VALIDATION_ERROR"
	CodeNotFound       Code = "NOT_FOUND"
	CodeStateViolation Code = "STATE_VIOLATION"
	CodeTransport      Code = "TRANSPORT_ERROR"
	CodeInternal       Code = "INTERNAL_ERROR"
)

// Metadata describes how a code surfaces to users.
type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:    http.StatusBadRequest,
		Retryable:     false,
		PublicMessage: "validation failed",
	},
	CodeNotFound: {
		HTTPStatus:    http.StatusNotFound,
		Retryable:     false,
		PublicMessage: "resource not found",
	},
	CodeStateViolation: {
		HTTPStatus:    http.StatusUnprocessableEntity,
		Retryable:     false,
		PublicMessage: "state transition disallowed",
	},
	CodeTransport: {
		HTTPStatus:    http.StatusBadGateway,
		Retryable:     true,
		PublicMessage: "remote store unavailable, try again",
	},
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "internal server error",
	},
}

// MetadataFor returns the metadata of a code, falling back to internal.
func MetadataFor(code Code) Metadata {
	if md, ok := metadataByCode[code]; ok {
		return md
	}
	return metadataByCode[CodeInternal]
}

// Error is a classified error. The message is safe to show to a user.
type Error struct {
	code Code
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Code() Code { return e.code }

func (e *Error) Message() string { return e.msg }

func (e *Error) Retryable() bool { return MetadataFor(e.code).Retryable }

// New creates a classified error.
func New(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

// Newf creates a classified error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, err error, msg string) *Error {
	return &Error{code: code, msg: msg, err: err}
}

func Validation(msg string) *Error     { return New(CodeValidation, msg) }
func NotFound(msg string) *Error       { return New(CodeNotFound, msg) }
func StateViolation(msg string) *Error { return New(CodeStateViolation, msg) }

// Transport wraps a network or non-success failure of a remote call.
func Transport(err error, msg string) *Error { return Wrap(CodeTransport, err, msg) }

// As returns the first classified error in the chain, or nil.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// CodeOf returns the code of err; unclassified errors are internal.
func CodeOf(err error) Code {
	if e := As(err); e != nil {
		return e.code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}
