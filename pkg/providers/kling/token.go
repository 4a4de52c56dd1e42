package kling

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenValidity = 1800 * time.Second

// bearerToken builds the HMAC-SHA256 signed JWT Kling expects as its bearer
// credential. A fresh token is signed per call; at 30 minutes of validity it
// comfortably outlives any single request, so callers treat it as
// call-scoped.
func bearerToken(accessKey, secretKey string, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss": accessKey,
		"exp": now.Add(tokenValidity).Unix(),
		"nbf": now.Add(-5 * time.Second).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(secretKey))
}
