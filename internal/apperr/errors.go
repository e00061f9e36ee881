package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure independently of the backend that produced it.
type Kind string

const (
	KindValidation       Kind = "ValidationFailed"
	KindNotFound         Kind = "NotFound"
	KindConflict         Kind = "Conflict"
	KindPermissionDenied Kind = "PermissionDenied"
	KindUnavailable      Kind = "Unavailable"
	KindTimeout          Kind = "Timeout"
	KindInternal         Kind = "Internal"
)

var (
	// ErrRetriesExhausted marks an operation that kept failing with retryable
	// errors until its retry policy ran out.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

// KindOf returns the Kind of the outermost classified error in err's chain.
// Unclassified errors are Internal, except context deadline errors which are
// Timeout.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func IsNotFound(err error) bool {
	return Is(err, KindNotFound)
}

func IsConflict(err error) bool {
	return Is(err, KindConflict)
}

// HTTPStatus maps err onto the API status code surfaced to clients.
//
// Exhausted retries surface as 503 when the last failure was an outage and as
// 408 otherwise.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	kind := KindOf(err)
	if errors.Is(err, ErrRetriesExhausted) {
		if kind == KindUnavailable {
			return http.StatusServiceUnavailable
		}
		return http.StatusRequestTimeout
	}
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Code is the stable machine-readable code carried by API error responses.
func Code(err error) string {
	if errors.Is(err, ErrRetriesExhausted) {
		return "RetriesExhausted"
	}
	return string(KindOf(err))
}
