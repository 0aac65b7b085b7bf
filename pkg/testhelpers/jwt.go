// Package testhelpers provides utilities for testing flightops components.
package testhelpers

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestSessionSecret is the signing secret used by handler and auth tests.
const TestSessionSecret = "test-session-secret"

// GenerateTestJWT creates an HS256 session token for the given Telegram user ID,
// signed with TestSessionSecret and valid for one hour.
func GenerateTestJWT(externalID string) string {
	return GenerateTestJWTWithExpiry(externalID, time.Now().Add(time.Hour))
}

// GenerateTestJWTWithExpiry creates a session token expiring at the given time.
func GenerateTestJWTWithExpiry(externalID string, expiresAt time.Time) string {
	claims := jwt.RegisteredClaims{
		Subject:   externalID,
		Issuer:    "flightops",
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestSessionSecret))
	if err != nil {
		panic(err)
	}
	return signed
}

// GenerateTestJWTWithBearer returns token with "Bearer " prefix for Authorization header.
func GenerateTestJWTWithBearer(externalID string) string {
	return "Bearer " + GenerateTestJWT(externalID)
}
