// Package errs defines the error kinds surfaced at the request boundary.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind distinguishes failure classes so callers can branch without string matching.
type Kind string

const (
	KindModelLoad      Kind = "model_load"
	KindEmbedding      Kind = "embedding"
	KindNotInitialized Kind = "not_initialized"
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindUnauthorized   Kind = "unauthorized"
	KindForbidden      Kind = "forbidden"
	KindConflict       Kind = "conflict"
	KindInternal       Kind = "internal"
)

// Error is a typed error carrying its kind and the HTTP status it maps to.
type Error struct {
	Kind       Kind
	HTTPStatus int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// for wrapped instances with different messages.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, HTTPStatus: statusFor(kind), Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, HTTPStatus: statusFor(kind), Message: message, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusOf returns the HTTP status for err, defaulting to 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func statusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindModelLoad, KindNotInitialized:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Sentinels for errors.Is checks.
var (
	ErrModelLoad      = New(KindModelLoad, "embedding model failed to load")
	ErrEmbedding      = New(KindEmbedding, "failed to generate embedding")
	ErrNotInitialized = New(KindNotInitialized, "category embeddings are not initialized yet")
	ErrValidation     = New(KindValidation, "invalid input")
	ErrNotFound       = New(KindNotFound, "not found")
	ErrUnauthorized   = New(KindUnauthorized, "not authorized")
	ErrForbidden      = New(KindForbidden, "forbidden")
	ErrConflict       = New(KindConflict, "conflict")
)
