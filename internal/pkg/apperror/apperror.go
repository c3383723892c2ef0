package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies an error for callers independent of the HTTP status.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindCapacity       Kind = "capacity"
	KindPriorityDenied Kind = "priority_denied"
	KindTransaction    Kind = "transaction"
	KindNotFound       Kind = "not_found"
	KindForbidden      Kind = "forbidden"
	KindInternal       Kind = "internal"
)

// AppError is a custom error type that includes an HTTP status code and an optional internal error code.
type AppError struct {
	Code      int    // HTTP Status Code (e.g., 400, 404)
	Kind      Kind   // Error family reported to clients
	Message   string // User-facing error message
	Details   any    // Structured, user-facing details
	Retryable bool   // Whether the caller may retry the same request
	Err       error  // The underlying error, if any (not exposed to user)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with a status code and message.
// The kind is derived from the status code.
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kindForStatus(code),
		Message: message,
	}
}

// NewKind creates an AppError with an explicit kind.
func NewKind(code int, kind Kind, message string) *AppError {
	return &AppError{
		Code:      code,
		Kind:      kind,
		Message:   message,
		Retryable: kind == KindTransaction,
	}
}

// Wrap creates a new AppError wrapping an existing error.
// Kind and retryability are inherited when err is itself an AppError.
func Wrap(err error, code int, message string) *AppError {
	out := &AppError{
		Code:    code,
		Kind:    kindForStatus(code),
		Message: message,
		Err:     err,
	}
	var inner *AppError
	if errors.As(err, &inner) {
		out.Kind = inner.Kind
		out.Retryable = inner.Retryable
	}
	return out
}

// Derive returns a copy of sentinel carrying a more specific message and details.
// errors.Is(result, sentinel) still holds.
func Derive(sentinel *AppError, message string, details any) *AppError {
	return &AppError{
		Code:      sentinel.Code,
		Kind:      sentinel.Kind,
		Message:   message,
		Details:   details,
		Retryable: sentinel.Retryable,
		Err:       sentinel,
	}
}

// WithCause returns a copy of e that wraps cause instead of e's own cause.
// The copy still matches e through errors.Is.
func (e *AppError) WithCause(cause error) *AppError {
	return &AppError{
		Code:      e.Code,
		Kind:      e.Kind,
		Message:   e.Message,
		Details:   e.Details,
		Retryable: e.Retryable,
		Err:       errors.Join(e, cause),
	}
}

// KindOf returns the kind of the first AppError in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind != "" {
		return appErr.Kind
	}
	return KindInternal
}

func kindForStatus(code int) Kind {
	switch code {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusForbidden, http.StatusUnauthorized:
		return KindForbidden
	case http.StatusServiceUnavailable:
		return KindTransaction
	default:
		return KindInternal
	}
}
