package auth

import (
	"errors"
	"fmt"
)

// Error is a typed failure carrying a machine-readable code, an HTTP status
// and a user-safe message. The cause, if any, stays internal.
type Error struct {
	Code    string
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Code + ": " + e.cause.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches by code so wrapped copies still compare equal to the sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// With returns a copy of the error carrying cause as operational context.
func (e *Error) With(cause error) *Error {
	clone := *e
	clone.cause = cause
	return &clone
}

// Withf is shorthand for With(fmt.Errorf(...)).
func (e *Error) Withf(format string, args ...any) *Error {
	return e.With(fmt.Errorf(format, args...))
}

// Validation (400)
var (
	ErrInvalidEmail            = &Error{Code: "invalid_email", Status: 400, Message: "Please provide a valid email address"}
	ErrInvalidUserName         = &Error{Code: "invalid_user_name", Status: 400, Message: "User name must be 1-50 characters of letters, spaces, apostrophes, periods or hyphens"}
	ErrInvalidPassword         = &Error{Code: "invalid_password", Status: 400, Message: "Password must be at least 8 characters and contain uppercase, lowercase and numbers"}
	ErrInvalidOrganizationName = &Error{Code: "invalid_organization_name", Status: 400, Message: "Organization name must be between 2 and 100 characters"}
	ErrInvalidRole             = &Error{Code: "invalid_role", Status: 400, Message: "Unknown role name"}
	ErrMissingRoles            = &Error{Code: "missing_roles", Status: 400, Message: "At least one role must be specified"}
	ErrMissingBody             = &Error{Code: "missing_body", Status: 400, Message: "Request body is required"}
	ErrInvalidBody             = &Error{Code: "invalid_body", Status: 400, Message: "Request body is not valid JSON"}
	ErrMissingToken            = &Error{Code: "missing_token", Status: 400, Message: "Token is required"}
	ErrMissingIdentity         = &Error{Code: "missing_identity", Status: 400, Message: "Caller identity headers are required"}
	ErrInvalidGrant            = &Error{Code: "invalid_grant", Status: 400, Message: "Unsupported grant type"}
)

// Authentication (401). Token failures keep one code each so callers can tell
// an expired token from an otherwise invalid one.
var (
	ErrAuthenticationFailed = &Error{Code: "authentication_failed", Status: 401, Message: "Invalid credentials"}
	ErrTokenExpired         = &Error{Code: "token_expired", Status: 401, Message: "Token has expired"}
	ErrMalformedToken       = &Error{Code: "invalid_token", Status: 401, Message: "Invalid token provided"}
	ErrUnknownKey           = &Error{Code: "unknown_key", Status: 401, Message: "Token signed with an unknown key"}
	ErrSignatureInvalid     = &Error{Code: "invalid_signature", Status: 401, Message: "Token signature verification failed"}
	ErrIssuerMismatch       = &Error{Code: "issuer_mismatch", Status: 401, Message: "Token issuer is not trusted"}
)

// Authorization (403)
var ErrInsufficientPermissions = &Error{Code: "insufficient_permissions", Status: 403, Message: "You don't have permission to perform this action"}

// Resources (404 / 409)
var (
	ErrUserNotFound      = &Error{Code: "user_not_found", Status: 404, Message: "User not found"}
	ErrUserAlreadyExists = &Error{Code: "user_already_exists", Status: 409, Message: "A user with this email already exists"}
)

// Infrastructure (500)
var (
	ErrUpstream = &Error{Code: "upstream_error", Status: 500, Message: "An upstream service failed. Please try again later"}
	ErrInternal = &Error{Code: "internal_error", Status: 500, Message: "An internal error occurred. Please try again later"}
)

// IsInvalidTokenClass reports whether err belongs to the invalid-token class:
// every verifier failure except expiry.
func IsInvalidTokenClass(err error) bool {
	for _, target := range []*Error{ErrMalformedToken, ErrUnknownKey, ErrSignatureInvalid, ErrIssuerMismatch} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
