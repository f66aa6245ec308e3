package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	issuer.now = func() time.Time { return testEpoch }

	tok, expAt, err := issuer.Issue("sess-1", "dev-1")
	require.NoError(t, err)
	assert.Equal(t, testEpoch.Add(time.Hour), expAt)

	claims, err := issuer.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "dev-1", claims.DeviceID)
	assert.Equal(t, "sess-1", claims.Subject)
}

func TestTokenIssuerRejects(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	issuer.now = func() time.Time { return testEpoch }
	tok, _, err := issuer.Issue("sess-1", "dev-1")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		issuer.now = func() time.Time { return testEpoch.Add(2 * time.Hour) }
		defer func() { issuer.now = func() time.Time { return testEpoch } }()
		_, err := issuer.Parse(tok)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("other secret", func(t *testing.T) {
		other := NewTokenIssuer("different", time.Hour)
		other.now = issuer.now
		_, err := other.Parse(tok)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Parse("not-a-token")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("unsigned", func(t *testing.T) {
		none := jwt.NewWithClaims(jwt.SigningMethodNone, SessionClaims{SessionID: "sess-1"})
		s, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = issuer.Parse(s)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("missing session", func(t *testing.T) {
		raw := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(testEpoch.Add(time.Hour))},
		})
		s, err := raw.SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = issuer.Parse(s)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}
