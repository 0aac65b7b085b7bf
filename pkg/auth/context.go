package auth

import (
	"context"
	"fmt"
)

// GetExternalIDFromContext extracts the Telegram user ID from JWT claims in the context.
// Returns empty string if not authenticated or claims are missing.
func GetExternalIDFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Subject
}

// RequireExternalIDFromContext extracts the Telegram user ID or returns an error.
func RequireExternalIDFromContext(ctx context.Context) (string, error) {
	id := GetExternalIDFromContext(ctx)
	if id == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return id, nil
}
