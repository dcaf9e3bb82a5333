package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	apperrors "asset-service/pkg/errors"
)

// MapToPublicError maps internal errors to public-facing HTTP status codes and messages
// This prevents information disclosure by providing consistent, generic error messages
func MapToPublicError(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "resource not found"
	case errors.Is(err, apperrors.ErrUnauthorized),
		errors.Is(err, apperrors.ErrMissingAuthHeader),
		errors.Is(err, apperrors.ErrInvalidAuthHeader),
		errors.Is(err, apperrors.ErrNotBearer),
		errors.Is(err, apperrors.ErrInvalidSignature),
		errors.Is(err, apperrors.ErrUnknownKeyID),
		errors.Is(err, apperrors.ErrMalformedToken):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, apperrors.ErrTokenExpired):
		return http.StatusUnauthorized, "credentials expired"
	case errors.Is(err, apperrors.ErrTokenNotYetValid):
		return http.StatusUnauthorized, "credentials not yet valid"
	case errors.Is(err, apperrors.ErrForbidden), errors.Is(err, apperrors.ErrInsufficientPerms):
		return http.StatusForbidden, "access denied"
	case errors.Is(err, apperrors.ErrStateConflict):
		return http.StatusConflict, "operation not allowed in current state"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "resource conflict"
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrBadRequest):
		return http.StatusBadRequest, "invalid input"
	default:
		// Never expose internal errors to clients
		return http.StatusInternalServerError, "internal server error"
	}
}

// RespondWithMappedError responds with a mapped error, preventing information disclosure
func RespondWithMappedError(c echo.Context, err error) error {
	status, msg := MapToPublicError(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("internal error")
	}
	return respondError(c, status, msg)
}

// SafeErrorResponse provides a safe error response that doesn't leak information
// Use this when you want to return "not found" for both missing resources and authorization failures
func SafeErrorResponse(c echo.Context, err error, safeStatus int, safeMessage string) error {
	log.Debug().Err(err).Int("status", safeStatus).Msg("error masked in response")

	return respondError(c, safeStatus, safeMessage)
}
