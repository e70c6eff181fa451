package model

import (
	"errors"
	"fmt"
)

// ErrorKind is a stable machine-readable failure category. Tools return these
// instead of bare errors so the orchestrator can decide locally whether a
// failure is recoverable.
type ErrorKind string

const (
	ErrInvalidArgs        ErrorKind = "invalid_args"
	ErrInvalidFilters     ErrorKind = "invalid_filters"
	ErrBackendUnavailable ErrorKind = "backend_unavailable"
	ErrCredentialsMissing ErrorKind = "credentials_missing"
	ErrInsufficientSlots  ErrorKind = "insufficient_slots"
)

type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func Errf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the error kind carried by err, or "" for plain errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
