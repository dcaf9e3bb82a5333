package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "asset-service/pkg/errors"
)

// SigningKey is one entry in the trusted key set. Multiple keys may be
// valid at once so tokens signed before a rotation keep verifying.
type SigningKey struct {
	ID     string
	Secret []byte
}

// CodecConfig describes one token audience: the identity tokens the
// API server accepts for itself, or the permission tokens it mints for
// the asset store.
type CodecConfig struct {
	Issuer      string
	Audience    string
	Expiry      time.Duration
	NotBefore   time.Duration
	Leeway      time.Duration
	Keys        []SigningKey
	ActiveKeyID string
}

// TokenClaims is the wire form of a claim: the registered claim set
// plus an application payload (identity or permission).
type TokenClaims[T any] struct {
	Payload T `json:"payload"`
	jwt.RegisteredClaims
}

// Codec encodes and decodes signed tokens for one issuer/audience
// pair. It holds only read-only configuration, performs no I/O, and is
// safe for unbounded concurrent use.
type Codec[T any] struct {
	cfg  CodecConfig
	keys map[string][]byte

	// now is swapped in tests to pin the clock.
	now func() time.Time
}

// NewCodec validates the configuration and builds a codec. An active
// key id that resolves to no key is a configuration error.
func NewCodec[T any](cfg CodecConfig) (*Codec[T], error) {
	if cfg.Issuer == "" {
		return nil, errors.New("codec: issuer must be set")
	}
	if cfg.Audience == "" {
		return nil, errors.New("codec: audience must be set")
	}
	if cfg.Expiry <= 0 {
		return nil, errors.New("codec: expiry must be positive")
	}
	if len(cfg.Keys) == 0 {
		return nil, errors.New("codec: at least one signing key required")
	}

	keys := make(map[string][]byte, len(cfg.Keys))
	for _, key := range cfg.Keys {
		if key.ID == "" || len(key.Secret) == 0 {
			return nil, errors.New("codec: signing key must have an id and a secret")
		}
		keys[key.ID] = key.Secret
	}

	if _, ok := keys[cfg.ActiveKeyID]; !ok {
		return nil, apperrors.UnknownKeyID(cfg.ActiveKeyID)
	}

	return &Codec[T]{cfg: cfg, keys: keys, now: time.Now}, nil
}

// Encode signs the payload with the named key and returns the compact
// token string. Encoding with an unknown key id is an error.
func (c *Codec[T]) Encode(payload T, keyID string) (string, error) {
	secret, ok := c.keys[keyID]
	if !ok {
		return "", apperrors.UnknownKeyID(keyID)
	}

	now := c.now()
	claims := TokenClaims[T]{
		Payload: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Issuer,
			Audience:  jwt.ClaimStrings{c.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(c.cfg.NotBefore)),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.cfg.Expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = keyID
	return token.SignedString(secret)
}

// EncodeActive signs with the currently active key.
func (c *Codec[T]) EncodeActive(payload T) (string, error) {
	return c.Encode(payload, c.cfg.ActiveKeyID)
}

// Expiry returns the configured token lifetime.
func (c *Codec[T]) Expiry() time.Duration {
	return c.cfg.Expiry
}

// Decode verifies signature, issuer, audience and time-window claims
// before handing back the claims. Every failure maps to a distinct
// error kind; exactly-at-expiry counts as expired.
func (c *Codec[T]) Decode(tokenString string) (*TokenClaims[T], error) {
	claims := &TokenClaims[T]{}
	token, err := jwt.ParseWithClaims(tokenString, claims, c.keyFor,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithAudience(c.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(c.cfg.Leeway),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, mapTokenError(err)
	}
	if !token.Valid {
		return nil, apperrors.MalformedToken("token did not validate")
	}
	return claims, nil
}

func (c *Codec[T]) keyFor(token *jwt.Token) (any, error) {
	kid, _ := token.Header["kid"].(string)
	secret, ok := c.keys[kid]
	if !ok {
		return nil, apperrors.UnknownKeyID(kid)
	}
	return secret, nil
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, apperrors.ErrUnknownKeyID):
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperrors.UnknownKeyID("")
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.TokenExpired()
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return apperrors.TokenNotYetValid()
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperrors.InvalidSignature()
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return apperrors.MalformedToken("token issuer not accepted")
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return apperrors.MalformedToken("token audience not accepted")
	default:
		return apperrors.MalformedToken("token could not be parsed")
	}
}
