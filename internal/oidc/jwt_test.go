package oidc

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestHMACVerifier_ValidToken(t *testing.T) {
	v, err := NewHMACVerifier("topsecret")
	require.NoError(t, err)

	raw := signHS256(t, "topsecret", jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	tok, err := v.Verify(context.Background(), raw)
	require.NoError(t, err)

	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "user-42", claims["sub"])
}

func TestHMACVerifier_WrongSecret(t *testing.T) {
	v, err := NewHMACVerifier("topsecret")
	require.NoError(t, err)

	raw := signHS256(t, "othersecret", jwt.MapClaims{"sub": "user-42"})
	_, err = v.Verify(context.Background(), raw)
	require.Error(t, err)
}

func TestHMACVerifier_ExpiredToken(t *testing.T) {
	v, err := NewHMACVerifier("topsecret")
	require.NoError(t, err)

	raw := signHS256(t, "topsecret", jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	_, err = v.Verify(context.Background(), raw)
	require.Error(t, err)
}

func TestNewHMACVerifier_EmptySecret(t *testing.T) {
	_, err := NewHMACVerifier("")
	require.Error(t, err)
}
