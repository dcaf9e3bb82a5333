package errors

import (
	"errors"
	"fmt"
)

// Domain errors - Sentinel errors for use with errors.Is()
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrConflict       = errors.New("resource already exists")
	ErrStateConflict  = errors.New("state conflict")
	ErrInternalServer = errors.New("internal server error")
	ErrValidation     = errors.New("validation error")

	// Token errors. Each kind stays distinct so callers can tell
	// "expired" from "malformed" from "untrusted signer".
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthHeader = errors.New("invalid authorization header")
	ErrNotBearer         = errors.New("authorization scheme is not bearer")
	ErrInvalidSignature  = errors.New("invalid token signature")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenNotYetValid  = errors.New("token not yet valid")
	ErrUnknownKeyID      = errors.New("unknown signing key id")
	ErrMalformedToken    = errors.New("malformed token")

	// Policy errors - the token itself was valid but the request
	// exceeds what it grants.
	ErrInsufficientPerms = errors.New("insufficient permissions")
)

// Custom error type with context
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Constructors
func NotFound(msg string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: msg, Err: ErrNotFound}
}

func Unauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: msg, Err: ErrUnauthorized}
}

func Forbidden(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Message: msg, Err: ErrForbidden}
}

func BadRequest(msg string) *AppError {
	return &AppError{Code: "BAD_REQUEST", Message: msg, Err: ErrBadRequest}
}

func Conflict(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Message: msg, Err: ErrConflict}
}

func StateConflict(msg string) *AppError {
	return &AppError{Code: "STATE_CONFLICT", Message: msg, Err: ErrStateConflict}
}

func InternalServer(msg string, err error) *AppError {
	return &AppError{Code: "INTERNAL_SERVER_ERROR", Message: msg, Err: err}
}

func MissingAuthHeader() *AppError {
	return &AppError{Code: "MISSING_AUTH_HEADER", Message: "missing authorization header", Err: ErrMissingAuthHeader}
}

func InvalidAuthHeader(msg string) *AppError {
	return &AppError{Code: "INVALID_AUTH_HEADER", Message: msg, Err: ErrInvalidAuthHeader}
}

func NotBearer() *AppError {
	return &AppError{Code: "NOT_BEARER", Message: "expected Bearer authorization scheme", Err: ErrNotBearer}
}

func InvalidSignature() *AppError {
	return &AppError{Code: "INVALID_SIGNATURE", Message: "token signature could not be verified", Err: ErrInvalidSignature}
}

func TokenExpired() *AppError {
	return &AppError{Code: "TOKEN_EXPIRED", Message: "token has expired", Err: ErrTokenExpired}
}

func TokenNotYetValid() *AppError {
	return &AppError{Code: "TOKEN_NOT_YET_VALID", Message: "token is not valid yet", Err: ErrTokenNotYetValid}
}

func UnknownKeyID(kid string) *AppError {
	return &AppError{Code: "UNKNOWN_KEY_ID", Message: fmt.Sprintf("no trusted signing key %q", kid), Err: ErrUnknownKeyID}
}

func MalformedToken(msg string) *AppError {
	return &AppError{Code: "MALFORMED_TOKEN", Message: msg, Err: ErrMalformedToken}
}

func InsufficientPermission(msg string) *AppError {
	return &AppError{Code: "INSUFFICIENT_PERMISSION", Message: msg, Err: ErrInsufficientPerms}
}
