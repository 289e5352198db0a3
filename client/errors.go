package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotAuthenticated is returned by operations that need a signed-in session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSuperseded means a logout or another sign-in happened while the
	// request was in flight; its result was discarded.
	ErrSuperseded = errors.New("session changed while the request was in flight")
)

// Messages surfaced by the request pipeline.
const (
	MessageServerError = "Server error, please retry later."
	MessageUnreachable = "Cannot reach the server. Check your connection."
)

// FieldError is one field-level validation failure reported by the server.
type FieldError struct {
	Field   string
	Message string
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode  int
	Detail      string
	Code        string
	FieldErrors []FieldError
	Body        []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
}

// Message is the headline for the error: the first field error when the
// server reported any, the detail otherwise.
func (e *APIError) Message() string {
	if len(e.FieldErrors) > 0 && e.FieldErrors[0].Message != "" {
		return e.FieldErrors[0].Message
	}
	return e.Detail
}

// NetworkError means no response was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "cannot reach server: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// Kind classifies a failed login or signup.
type Kind int

const (
	KindInvalidCredentials Kind = iota + 1
	KindBadRequest
	KindValidation
	KindSessionExpired
	KindServer
	KindNetwork
	KindAccountCreatedSignInFailed
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindBadRequest:
		return "bad_request"
	case KindValidation:
		return "validation"
	case KindSessionExpired:
		return "session_expired"
	case KindServer:
		return "server"
	case KindNetwork:
		return "network"
	case KindAccountCreatedSignInFailed:
		return "account_created_sign_in_failed"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// AuthError is the failure outcome of Login and Signup. Message is safe to
// show next to the form.
type AuthError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.Err }

// KindOf returns the kind of an *AuthError in err's chain, or 0.
func KindOf(err error) Kind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return 0
}
