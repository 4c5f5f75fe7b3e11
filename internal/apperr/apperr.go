// Package apperr defines the error kinds surfaced by the career board and
// their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	goerrors "github.com/go-errors/errors"
)

type Kind string

const (
	KindAuthInvalid      Kind = "AUTH_INVALID"
	KindSessionInvalid   Kind = "SESSION_INVALID"
	KindValidationFailed Kind = "VALIDATION_FAILED"
	KindUploadRejected   Kind = "UPLOAD_REJECTED"
	KindUploadFailed     Kind = "UPLOAD_FAILED"
	KindUpstreamError    Kind = "UPSTREAM_ERROR"
	KindNetworkFailure   Kind = "NETWORK_FAILURE"
	KindMisconfigured    Kind = "MISCONFIGURED"
	KindInternal         Kind = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Message string
	// Detail is extra data safe to show to the caller, such as a provider's
	// error body.
	Detail any
	// Status overrides the kind's default HTTP status when non-zero.
	Status int
	Err    error
	Stack  []byte
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) StackTrace() []byte {
	return e.Stack
}

func New(kind Kind, message string, err error) *Error {
	var stack []byte
	if err != nil {
		if stackErr, ok := err.(*goerrors.Error); ok {
			stack = stackErr.Stack()
		} else {
			stack = goerrors.Wrap(err, 2).Stack()
		}
	} else {
		stack = goerrors.New(message).Stack()
	}

	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
		Stack:   stack,
	}
}

func AuthInvalid(message string) *Error {
	return New(KindAuthInvalid, message, nil)
}

func SessionInvalid(err error) *Error {
	return New(KindSessionInvalid, "session invalid", err)
}

func ValidationFailed(message string) *Error {
	return New(KindValidationFailed, message, nil)
}

func UploadRejected(message string) *Error {
	return New(KindUploadRejected, message, nil)
}

func UploadFailed(message string, detail any) *Error {
	e := New(KindUploadFailed, message, nil)
	e.Detail = detail
	return e
}

func UpstreamError(status int, message string) *Error {
	e := New(KindUpstreamError, message, nil)
	e.Status = status
	return e
}

func NetworkFailure(message string, err error) *Error {
	return New(KindNetworkFailure, message, err)
}

func Misconfigured(message string) *Error {
	return New(KindMisconfigured, message, nil)
}

func Internal(message string, err error) *Error {
	return New(KindInternal, message, err)
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// Status maps err onto an HTTP status. Errors without a kind are 500.
func Status(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindAuthInvalid, KindSessionInvalid:
		return http.StatusUnauthorized
	case KindValidationFailed, KindUploadRejected, KindUploadFailed:
		return http.StatusBadRequest
	case KindUpstreamError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the caller-facing message for err. Errors without a kind
// get a generic message so internals never leak.
func Message(err error) string {
	if e, ok := As(err); ok {
		return e.Message
	}
	return "Internal server error"
}
