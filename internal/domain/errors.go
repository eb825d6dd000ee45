package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the tool server can report back to a
// caller. The set is closed: each kind maps to exactly one recovery strategy
// on the agent side.
type ErrorKind string

const (
	ErrUnknownTool         ErrorKind = "unknown_tool"
	ErrInvalidArguments    ErrorKind = "invalid_arguments"
	ErrNotFound            ErrorKind = "not_found"
	ErrForbiddenOperation  ErrorKind = "forbidden_operation"
	ErrQueryError          ErrorKind = "query_error"
	ErrResultTooLarge      ErrorKind = "result_too_large"
	ErrQueryTimeout        ErrorKind = "query_timeout"
	ErrProtocolDecodeError ErrorKind = "protocol_decode_error"
	ErrFatalStartup        ErrorKind = "fatal_startup"
)

// Error is a structured error carrying a kind and a human-readable message.
// Everything except a fatal startup failure is reported to the caller as a
// tool error response rather than terminating the server.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	wrapped error
}

func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches an underlying cause so errors.Is/As still sees it.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), wrapped: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// KindOf returns the ErrorKind of err if it is (or wraps) a domain Error,
// or ErrQueryError as the fallback classification for raw store failures.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ErrQueryError
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}
