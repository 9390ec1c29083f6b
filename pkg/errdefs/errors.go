// Package errdefs defines the error kinds shared by the registry, the
// dispatcher and the HTTP surface, and maps each kind to a status code.
package errdefs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindMissingParameter
	KindUnsupportedType
	KindNotFound
	KindMethodNotAllowed
	KindNotAcceptable
	KindConflict
	KindUnsupportedMediaType
	KindHandler
	KindUnserializableResult
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindMissingParameter:
		return "missing_parameter"
	case KindUnsupportedType:
		return "unsupported_type"
	case KindNotFound:
		return "not_found"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindNotAcceptable:
		return "not_acceptable"
	case KindConflict:
		return "conflict"
	case KindUnsupportedMediaType:
		return "unsupported_media_type"
	case KindHandler:
		return "handler"
	case KindUnserializableResult:
		return "unserializable_result"
	default:
		return "unknown"
	}
}

// Error is the error type returned across package boundaries.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind. A missing parameter is also a validation
// failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" || t.Err != nil {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindValidation && e.Kind == KindMissingParameter
}

var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrMissingParameter     = &Error{Kind: KindMissingParameter}
	ErrUnsupportedType      = &Error{Kind: KindUnsupportedType}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrMethodNotAllowed     = &Error{Kind: KindMethodNotAllowed}
	ErrNotAcceptable        = &Error{Kind: KindNotAcceptable}
	ErrConflict             = &Error{Kind: KindConflict}
	ErrUnsupportedMediaType = &Error{Kind: KindUnsupportedMediaType}
	ErrHandler              = &Error{Kind: KindHandler}
	ErrUnserializableResult = &Error{Kind: KindUnserializableResult}
)

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

func MissingParameter(format string, args ...any) *Error {
	return newf(KindMissingParameter, format, args...)
}

func UnsupportedType(format string, args ...any) *Error {
	return newf(KindUnsupportedType, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newf(KindConflict, format, args...)
}

func NotAcceptable(format string, args ...any) *Error {
	return newf(KindNotAcceptable, format, args...)
}

func UnsupportedMediaType(format string, args ...any) *Error {
	return newf(KindUnsupportedMediaType, format, args...)
}

func Unserializable(format string, args ...any) *Error {
	return newf(KindUnserializableResult, format, args...)
}

// MethodNotAllowed reports an HTTP method the target does not handle. The
// message always names the method.
func MethodNotAllowed(method string) *Error {
	return &Error{Kind: KindMethodNotAllowed, Message: "Method Not Allowed: " + method}
}

// Handler wraps a failure raised by component logic.
func Handler(err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindHandler, Message: "handler failed", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps err to the status code reported to callers.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindMissingParameter, KindUnsupportedType:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindNotAcceptable:
		return http.StatusNotAcceptable
	case KindConflict:
		return http.StatusConflict
	case KindUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}
