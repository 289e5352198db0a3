package core

import "errors"

// Authentication Related Errors
var (
	// User errors
	ErrUserExists         = errors.New("user already exists")       // 400 Bad Request
	ErrUserNotFound       = errors.New("user not found")            // 404 Not Found
	ErrInvalidCredentials = errors.New("invalid email or password") // 400 Bad Request
	ErrInactiveUser       = errors.New("inactive user")             // 400 Bad Request
	ErrForbidden          = errors.New("not enough permissions")    // 403 Forbidden
)

// Session errors
var (
	ErrMissingAuthHeader = errors.New("missing authorization header") // 401
	ErrInvalidToken      = errors.New("invalid session token")        // 401
	ErrSessionNotFound   = errors.New("session not found")            // 401
	ErrSessionExpired    = errors.New("session expired")              // 401
	ErrCacheNotFound     = errors.New("session not found in cache")
	ErrNoSuchSession     = errors.New("no such session") // 404, revoking a session the caller does not own
)

// Alert preference errors
var (
	ErrAlertPreferencesNotFound = errors.New("alert preferences not found")
)

// Validation errors (client input)
var (
	ErrInvalidAuthHeader = errors.New("invalid authorization format, expected 'Bearer <token>'") // 401
	ErrValidation        = errors.New("validation failed")                                       // 422
	ErrRateLimited       = errors.New("too many attempts")                                       // 429
)

// Config errors (server-side configuration)
var (
	ErrDBAdapterRequired   = errors.New("database adapter is required") // 500
	ErrHTTPAdapterRequired = errors.New("adapter is required")          // 500
	ErrSecretRequired      = errors.New("secret is required")           // 500
	ErrSecretTooShort      = errors.New("secret too short")             // 500
)
