package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)
	assert.True(t, h.Verify("secret123", hash))
	assert.False(t, h.Verify("wrong", hash))

	_, err = h.Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestHMACIssuer_RoundTrip(t *testing.T) {
	iss := NewHMACIssuer([]byte("this-is-a-test-secret"), "assetlend")

	tok, err := iss.Issue("user-1", KindAccess, time.Minute)
	require.NoError(t, err)

	claims, err := iss.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, KindAccess, claims.Kind)
}

func TestHMACIssuer_Rejects(t *testing.T) {
	iss := NewHMACIssuer([]byte("this-is-a-test-secret"), "assetlend")
	other := NewHMACIssuer([]byte("another-secret-value"), "assetlend")

	tok, err := other.Issue("user-1", KindAccess, time.Minute)
	require.NoError(t, err)
	_, err = iss.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := iss.Issue("user-1", KindAccess, -time.Minute)
	require.NoError(t, err)
	_, err = iss.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = iss.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "x", "type": "access"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = iss.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
