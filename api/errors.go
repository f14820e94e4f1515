// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-parfor.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrNotInitialized       = errors.New("pool is not initialized")
	ErrPoolBusy             = errors.New("pool dispatch already in flight")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrTopologyUnavailable  = errors.New("hardware parallelism cannot be detected")
	ErrWorkerSpawn          = errors.New("worker thread could not be started")
	ErrAffinityNotSupported = errors.New("CPU affinity not supported")
	ErrCallbackExited       = errors.New("callback called runtime.Goexit")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	// ErrCodePrecondition covers misuse: wrong lifecycle state or bad arguments.
	ErrCodePrecondition
	// ErrCodeResourceExhausted covers thread creation and topology detection.
	ErrCodeResourceExhausted
	ErrCodeNotSupported
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodePrecondition:
		return "precondition"
	case ErrCodeResourceExhausted:
		return "resource_exhausted"
	case ErrCodeNotSupported:
		return "not_supported"
	default:
		return "internal"
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the sentinel cause for errors.Is.
func (e *Error) Unwrap() error { return e.cause }

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// Wrap builds a structured error around cause, classified by CodeOf(cause).
func Wrap(cause error, message string) *Error {
	e := NewError(CodeOf(cause), message)
	e.cause = cause
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf maps an error onto the library taxonomy.
func CodeOf(err error) ErrorCode {
	var e *Error
	switch {
	case err == nil:
		return ErrCodeOK
	case errors.As(err, &e) && e.Code != ErrCodeOK:
		return e.Code
	case errors.Is(err, ErrNotInitialized), errors.Is(err, ErrPoolBusy), errors.Is(err, ErrInvalidArgument):
		return ErrCodePrecondition
	case errors.Is(err, ErrTopologyUnavailable), errors.Is(err, ErrWorkerSpawn):
		return ErrCodeResourceExhausted
	case errors.Is(err, ErrAffinityNotSupported):
		return ErrCodeNotSupported
	default:
		return ErrCodeInternal
	}
}
