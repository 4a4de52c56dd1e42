package kling

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	signed, err := bearerToken("access-key", "secret-key", now)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	token, err := jwt.Parse(signed, func(token *jwt.Token) (any, error) {
		return []byte("secret-key"), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(func() time.Time { return now }))
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)

	assert.Equal(t, "access-key", claims["iss"])
	assert.InDelta(t, float64(now.Add(1800*time.Second).Unix()), claims["exp"], 0)
	assert.InDelta(t, float64(now.Add(-5*time.Second).Unix()), claims["nbf"], 0)
}

func TestBearerToken_WrongSecretRejected(t *testing.T) {
	now := time.Now()

	signed, err := bearerToken("access-key", "secret-key", now)
	require.NoError(t, err)

	_, err = jwt.Parse(signed, func(token *jwt.Token) (any, error) {
		return []byte("other-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	assert.Error(t, err)
}
