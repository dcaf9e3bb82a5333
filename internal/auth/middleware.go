package auth

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"asset-service/internal/domain/user"
	apperrors "asset-service/pkg/errors"
	"asset-service/pkg/metrics"
)

// Principal is the authenticated actor attached to a request after
// successful authorization. Exactly one of the fields is populated:
// Root for public-route bypass, Identity for user tokens, Permission
// for capability tokens.
type Principal struct {
	Root       bool
	Identity   *user.Identity
	Permission *Permission
}

// Validator is the per-route strategy that turns a decoded claim into
// a principal, or rejects the request with a policy error. It runs
// after signature validity is already established.
type Validator[T any] interface {
	Validate(c echo.Context, claims *TokenClaims[T]) (*Principal, error)
}

// RequireToken builds the authorization middleware for one claim type.
// Public routes (per the rule table) bypass straight to the handler
// with a root-equivalent principal; everything else goes through
// bearer extraction, the codec and the validator. Any failure
// short-circuits with a stable error response; full detail is only
// logged server-side.
func RequireToken[T any](codec *Codec[T], rules *PathRuleTable, validator Validator[T]) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			if rules != nil && rules.Public(HTTPMethod(req.Method), req.URL.Path) {
				c.Set(ContextKeyPrincipal, &Principal{Root: true})
				return next(c)
			}

			tokenString, err := bearerToken(req.Header)
			if err != nil {
				return rejectRequest(c, err)
			}

			claims, err := codec.Decode(tokenString)
			if err != nil {
				return rejectRequest(c, err)
			}

			principal, err := validator.Validate(c, claims)
			if err != nil {
				return rejectRequest(c, err)
			}

			c.Set(ContextKeyPrincipal, principal)
			return next(c)
		}
	}
}

// bearerToken extracts the bearer token from the Authorization header.
// Absence, a malformed header and a non-Bearer scheme are distinct
// failures, all raised before any signature work.
func bearerToken(header http.Header) (string, error) {
	authHeader := header.Get(headerAuthorization)
	if authHeader == "" {
		return "", apperrors.MissingAuthHeader()
	}

	parts := strings.Fields(authHeader)
	if len(parts) != authHeaderParts {
		return "", apperrors.InvalidAuthHeader("authorization header is not two fields")
	}
	if !strings.EqualFold(parts[0], bearerScheme) {
		return "", apperrors.NotBearer()
	}
	if parts[1] == "" {
		return "", apperrors.InvalidAuthHeader(msgEmptyBearerToken)
	}

	return parts[1], nil
}

// rejectRequest resolves token and policy errors into a fixed response
// body while logging the real reason.
func rejectRequest(c echo.Context, err error) error {
	status := http.StatusUnauthorized
	code := "UNAUTHORIZED"

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
	}
	if errors.Is(err, apperrors.ErrInsufficientPerms) {
		status = http.StatusForbidden
	}

	metrics.IncAuthDenial()
	log.Debug().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Request().URL.Path).
		Str("remote_ip", c.RealIP()).
		Msg("request rejected by authorization middleware")

	return c.JSON(status, map[string]string{jsonKeyError: code})
}

// IdentityValidator accepts identity claims. It only requires the
// payload to actually carry a user id; route-level authority is the
// handlers' concern (ownership checks).
type IdentityValidator struct{}

func (IdentityValidator) Validate(_ echo.Context, claims *TokenClaims[user.Identity]) (*Principal, error) {
	if claims.Payload.ID == uuid.Nil {
		return nil, apperrors.MalformedToken(msgMissingIdentityID)
	}
	ident := claims.Payload
	return &Principal{Identity: &ident}, nil
}

// PermissionValidator enforces a capability claim against the request
// shape: method, path, and - where the permission restricts them -
// the Content-Length and Content-Type headers. The token constrains
// what MAY be permitted; the headers still have to prove compliance.
type PermissionValidator struct{}

func (PermissionValidator) Validate(c echo.Context, claims *TokenClaims[Permission]) (*Principal, error) {
	req := c.Request()
	perm := claims.Payload

	if !perm.CanPerformMethod(HTTPMethod(req.Method)) {
		return nil, apperrors.InsufficientPermission(msgMethodNotPermitted)
	}
	if !perm.CanAccess(req.URL.Path) {
		return nil, apperrors.InsufficientPermission(msgPathNotPermitted)
	}

	if perm.RestrictsSize() {
		rawLength := req.Header.Get(headerContentLength)
		if rawLength == "" {
			return nil, apperrors.InsufficientPermission(msgContentLengthRequired)
		}
		length, err := strconv.ParseInt(rawLength, 10, 64)
		if err != nil {
			return nil, apperrors.InsufficientPermission(msgContentLengthInvalid)
		}
		if !perm.CheckSize(length) {
			return nil, apperrors.InsufficientPermission(msgBodyTooLarge)
		}
	}

	if perm.RestrictsContentType() {
		rawType := req.Header.Get(headerContentType)
		if rawType == "" {
			return nil, apperrors.InsufficientPermission(msgContentTypeRequired)
		}
		mediaType, _, err := mime.ParseMediaType(rawType)
		if err != nil {
			return nil, apperrors.InsufficientPermission(msgContentTypeInvalid)
		}
		if !perm.CheckContentType(mediaType) {
			return nil, apperrors.InsufficientPermission(msgContentTypeDenied)
		}
	}

	return &Principal{Permission: &perm}, nil
}

// GetPrincipal returns the principal attached by RequireToken.
func GetPrincipal(c echo.Context) (*Principal, error) {
	principal, ok := c.Get(ContextKeyPrincipal).(*Principal)
	if !ok || principal == nil {
		return nil, apperrors.Unauthorized(msgPrincipalNotFound)
	}
	return principal, nil
}

// GetIdentity returns the identity principal, rejecting requests that
// were authorized as something else.
func GetIdentity(c echo.Context) (*user.Identity, error) {
	principal, err := GetPrincipal(c)
	if err != nil {
		return nil, err
	}
	if principal.Identity == nil {
		return nil, apperrors.Unauthorized(msgIdentityRequired)
	}
	return principal.Identity, nil
}
