package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)

	tok, err := svc.GenerateStudentToken(42)
	require.NoError(t, err)
	claims, err := svc.ValidateToken(tok)
	require.NoError(t, err)
	assert.True(t, claims.IsStudent(42))
	assert.False(t, claims.IsStudent(43))
	assert.False(t, claims.IsAdmin())
	assert.Equal(t, "42", claims.Subject)

	tok, err = svc.GenerateAdminToken(1)
	require.NoError(t, err)
	claims, err = svc.ValidateToken(tok)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
	assert.False(t, claims.IsStudent(1))
}

func TestTokenService_Rejects(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	tok, err := svc.GenerateAdminToken(1)
	require.NoError(t, err)

	_, err = NewTokenService("other", time.Hour).ValidateToken(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = svc.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	later := NewTokenService("secret", time.Hour)
	later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = later.ValidateToken(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{TokenType: TokenTypeAdmin, UserID: 1})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	odd := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{TokenType: "guest", UserID: 1})
	signed, err := odd.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
