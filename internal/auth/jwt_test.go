package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-service/internal/domain/user"
	apperrors "asset-service/pkg/errors"
)

var testKeys = []SigningKey{
	{ID: "k1", Secret: []byte("0123456789abcdefghijklmnopqrstuv")},
	{ID: "k2", Secret: []byte("vutsrqponmlkjihgfedcba9876543210")},
}

func testCodecConfig() CodecConfig {
	return CodecConfig{
		Issuer:      "asset-service",
		Audience:    "asset-service",
		Expiry:      time.Hour,
		Keys:        testKeys,
		ActiveKeyID: "k1",
	}
}

func newTestCodec(t *testing.T) *Codec[user.Identity] {
	t.Helper()
	codec, err := NewCodec[user.Identity](testCodecConfig())
	require.NoError(t, err)
	return codec
}

func testIdentity() user.Identity {
	return user.Identity{ID: uuid.Must(uuid.NewV7()), Name: "alice"}
}

func TestNewCodecRejectsBadConfig(t *testing.T) {
	cfg := testCodecConfig()
	cfg.ActiveKeyID = "missing"
	_, err := NewCodec[user.Identity](cfg)
	assert.ErrorIs(t, err, apperrors.ErrUnknownKeyID)

	cfg = testCodecConfig()
	cfg.Keys = nil
	_, err = NewCodec[user.Identity](cfg)
	assert.Error(t, err)

	cfg = testCodecConfig()
	cfg.Expiry = 0
	_, err = NewCodec[user.Identity](cfg)
	assert.Error(t, err)
}

func TestCodecRoundTrip(t *testing.T) {
	codec := newTestCodec(t)
	ident := testIdentity()

	token, err := codec.EncodeActive(ident)
	require.NoError(t, err)

	claims, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, ident.ID, claims.Payload.ID)
	assert.Equal(t, ident.Name, claims.Payload.Name)
	assert.Equal(t, "asset-service", claims.Issuer)
}

func TestCodecRoundTripNonActiveKey(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Encode(testIdentity(), "k2")
	require.NoError(t, err)

	_, err = codec.Decode(token)
	assert.NoError(t, err)
}

func TestEncodeUnknownKey(t *testing.T) {
	codec := newTestCodec(t)

	_, err := codec.Encode(testIdentity(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrUnknownKeyID)
}

func TestDecodeUnknownKeyID(t *testing.T) {
	codec := newTestCodec(t)

	otherCfg := testCodecConfig()
	otherCfg.Keys = []SigningKey{{ID: "k9", Secret: []byte("secretsecretsecretsecretsecret99")}}
	otherCfg.ActiveKeyID = "k9"
	other, err := NewCodec[user.Identity](otherCfg)
	require.NoError(t, err)

	token, err := other.EncodeActive(testIdentity())
	require.NoError(t, err)

	_, err = codec.Decode(token)
	assert.ErrorIs(t, err, apperrors.ErrUnknownKeyID)
}

func TestDecodeForgedSignature(t *testing.T) {
	codec := newTestCodec(t)

	// Same key id, different secret: the kid resolves but the
	// signature does not verify.
	forgedCfg := testCodecConfig()
	forgedCfg.Keys = []SigningKey{{ID: "k1", Secret: []byte("wrongwrongwrongwrongwrongwrong12")}}
	forged, err := NewCodec[user.Identity](forgedCfg)
	require.NoError(t, err)

	token, err := forged.EncodeActive(testIdentity())
	require.NoError(t, err)

	_, err = codec.Decode(token)
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)
}

func TestDecodeExpiry(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	codec := newTestCodec(t)
	codec.now = func() time.Time { return issued }

	token, err := codec.EncodeActive(testIdentity())
	require.NoError(t, err)

	// One second before expiry the token is still good.
	codec.now = func() time.Time { return issued.Add(time.Hour - time.Second) }
	_, err = codec.Decode(token)
	assert.NoError(t, err)

	// Exactly at expiry the token is already dead.
	codec.now = func() time.Time { return issued.Add(time.Hour) }
	_, err = codec.Decode(token)
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)

	codec.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = codec.Decode(token)
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestDecodeNotYetValid(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cfg := testCodecConfig()
	cfg.NotBefore = 10 * time.Minute
	codec, err := NewCodec[user.Identity](cfg)
	require.NoError(t, err)
	codec.now = func() time.Time { return issued }

	token, err := codec.EncodeActive(testIdentity())
	require.NoError(t, err)

	codec.now = func() time.Time { return issued.Add(time.Minute) }
	_, err = codec.Decode(token)
	assert.ErrorIs(t, err, apperrors.ErrTokenNotYetValid)

	codec.now = func() time.Time { return issued.Add(11 * time.Minute) }
	_, err = codec.Decode(token)
	assert.NoError(t, err)
}

func TestDecodeLeeway(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cfg := testCodecConfig()
	cfg.Leeway = time.Minute
	codec, err := NewCodec[user.Identity](cfg)
	require.NoError(t, err)
	codec.now = func() time.Time { return issued }

	token, err := codec.EncodeActive(testIdentity())
	require.NoError(t, err)

	// 30s past expiry is inside the leeway window.
	codec.now = func() time.Time { return issued.Add(time.Hour + 30*time.Second) }
	_, err = codec.Decode(token)
	assert.NoError(t, err)

	codec.now = func() time.Time { return issued.Add(time.Hour + 2*time.Minute) }
	_, err = codec.Decode(token)
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestDecodeWrongAudience(t *testing.T) {
	codec := newTestCodec(t)

	vaultCfg := testCodecConfig()
	vaultCfg.Audience = "asset-vault"
	vaultCodec, err := NewCodec[user.Identity](vaultCfg)
	require.NoError(t, err)

	token, err := vaultCodec.EncodeActive(testIdentity())
	require.NoError(t, err)

	_, err = codec.Decode(token)
	assert.ErrorIs(t, err, apperrors.ErrMalformedToken)
}

func TestDecodeGarbage(t *testing.T) {
	codec := newTestCodec(t)

	for _, tokenString := range []string{"", "not-a-token", "a.b.c"} {
		_, err := codec.Decode(tokenString)
		assert.Error(t, err)
		var appErr *apperrors.AppError
		assert.True(t, errors.As(err, &appErr))
	}
}
