// Package apperr defines the error taxonomy surfaced to API clients.
// Internal causes are carried for logging but never serialized.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	Validation Kind = iota
	Auth
	Forbidden
	NotFound
	Business
	RateLimit
	Internal
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "VALIDATION"
	case Auth:
		return "UNAUTHORIZED"
	case Forbidden:
		return "FORBIDDEN"
	case NotFound:
		return "NOT_FOUND"
	case Business:
		return "BUSINESS"
	case RateLimit:
		return "TOO_MANY_REQUESTS"
	default:
		return "INTERNAL"
	}
}

func (k Kind) HTTPStatus() int {
	switch k {
	case Validation, Business:
		return http.StatusBadRequest
	case Auth:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case RateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func ValidationError(message string) *Error { return New(Validation, message) }
func AuthError(message string) *Error       { return New(Auth, message) }
func ForbiddenError(message string) *Error  { return New(Forbidden, message) }
func NotFoundError(message string) *Error   { return New(NotFound, message) }
func BusinessError(message string) *Error   { return New(Business, message) }
func TooManyRequests(message string) *Error { return New(RateLimit, message) }

// InternalError hides the underlying cause from clients; callers log it
// with the request transaction id before returning.
func InternalError(cause error) *Error {
	return Wrap(Internal, "An internal error occurred", cause)
}

// KindOf reports the taxonomy kind of err, defaulting to Internal for
// errors raised outside this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
