package transport

import (
	"errors"
	"fmt"
)

// Kind classifies an API error
type Kind string

const (
	// Client-side, raised before any network call
	KindAuthRequired        Kind = "auth_required"
	KindValidation          Kind = "validation"
	KindOperationInProgress Kind = "operation_in_progress"

	// Transient, retried with bounded backoff
	KindNetwork           Kind = "network"
	KindTimeout           Kind = "timeout"
	KindServerUnavailable Kind = "server_unavailable"

	// Terminal, surfaced with the server's message
	KindAuthExpired Kind = "auth_expired"
	KindForbidden   Kind = "forbidden"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
)

// Error is a classified API error
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Transient reports whether the error may succeed on retry
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout, KindServerUnavailable:
		return true
	}
	return false
}

// NewError creates a classified error
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError wraps a cause with a classification
func WrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// IsKind reports whether err is a classified error of the given kind
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// KindOf returns the classification of err, or an empty Kind
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// errorResponse is the server's error envelope
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// message returns the best server-provided message
func (r errorResponse) message() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Error
}
