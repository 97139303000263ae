package application

import (
	"errors"
	"net/http"
)

// Kind classifies every failure a caller of the auth core can observe.
type Kind string

const (
	KindValidation            Kind = "validation_error"
	KindDuplicateEmail        Kind = "duplicate_email"
	KindMissingCredentials    Kind = "missing_credentials"
	KindInvalidCredentials    Kind = "invalid_credentials"
	KindIncorrectPassword     Kind = "incorrect_password"
	KindUnauthenticated       Kind = "unauthenticated"
	KindForbidden             Kind = "forbidden"
	KindUserNotFound          Kind = "user_not_found"
	KindInvalidOrExpiredToken Kind = "invalid_or_expired_token"
	KindEmailDeliveryFailed   Kind = "email_delivery_failed"
)

// Status maps a kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindDuplicateEmail, KindMissingCredentials,
		KindInvalidCredentials, KindInvalidOrExpiredToken:
		return http.StatusBadRequest
	case KindIncorrectPassword, KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure with a client-safe message.
// Fields holds per-field messages for validation failures.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string { return e.Message }

// Is matches on Kind so errors.Is(err, ErrInvalidCredentials) works for any instance.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrMissingCredentials    = &Error{Kind: KindMissingCredentials, Message: "Please provide an email and password"}
	ErrInvalidCredentials    = &Error{Kind: KindInvalidCredentials, Message: "Invalid credentials"}
	ErrIncorrectPassword     = &Error{Kind: KindIncorrectPassword, Message: "Password is incorrect"}
	ErrUnauthenticated       = &Error{Kind: KindUnauthenticated, Message: "Not authorized to access this route"}
	ErrForbidden             = &Error{Kind: KindForbidden, Message: "Not allowed to access this route"}
	ErrUserNotFound          = &Error{Kind: KindUserNotFound, Message: "There is no user with that email"}
	ErrInvalidOrExpiredToken = &Error{Kind: KindInvalidOrExpiredToken, Message: "Invalid token"}
	ErrEmailDeliveryFailed   = &Error{Kind: KindEmailDeliveryFailed, Message: "Email could not be sent"}
	ErrDuplicateEmail        = &Error{Kind: KindDuplicateEmail, Message: "Duplicate field value entered", Fields: map[string]string{"email": "email already exists"}}
)

// NewValidationError builds a validation failure from field messages.
func NewValidationError(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "Validation failed", Fields: fields}
}

// NotFound reports a missing resource by id (admin surface).
func NotFound(msg string) *Error {
	return &Error{Kind: KindUserNotFound, Message: msg}
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
