package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifierRoundTrip(t *testing.T) {
	v := NewJWTVerifier("secret", time.Hour)

	token, err := v.Issue("user-1")
	require.NoError(t, err)

	uid, err := v.VerifyToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", uid)
}

func TestJWTVerifierRejectsForeignSecretAndExpiry(t *testing.T) {
	token, err := NewJWTVerifier("other", time.Hour).Issue("user-1")
	require.NoError(t, err)
	_, err = NewJWTVerifier("secret", time.Hour).VerifyToken(context.Background(), token)
	assert.Error(t, err)

	expired, err := NewJWTVerifier("secret", -time.Minute).Issue("user-1")
	require.NoError(t, err)
	_, err = NewJWTVerifier("secret", time.Hour).VerifyToken(context.Background(), expired)
	assert.Error(t, err)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws/chatrooms/", nil)
	_, err := TokenFromRequest(r)
	assert.ErrorIs(t, err, ErrMissingToken)

	r = httptest.NewRequest("GET", "/ws/chatrooms/?token=abc", nil)
	token, err := TokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer xyz")
	token, err = TokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "xyz", token)

	r.Header.Set("Authorization", "Token xyz")
	_, err = TokenFromRequest(r)
	assert.Error(t, err)
}
