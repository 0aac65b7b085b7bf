package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Common authentication errors.
var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
)

// AuthService defines the interface for authentication operations.
type AuthService interface {
	// ValidateRequest extracts and validates a session token from the request.
	// It checks for the token in:
	//   1. Authorization header with "Bearer" scheme (Mini App fetch calls)
	//   2. The signed session cookie (browser clients)
	// Returns the validated claims, the raw token string, or an error.
	ValidateRequest(r *http.Request) (*Claims, string, error)
}

// authService implements AuthService.
type authService struct {
	tokens   *TokenIssuer
	sessions *SessionStore
	logger   *zap.Logger
}

// NewAuthService creates a new AuthService. sessions may be nil to disable cookies.
func NewAuthService(tokens *TokenIssuer, sessions *SessionStore, logger *zap.Logger) AuthService {
	return &authService{
		tokens:   tokens,
		sessions: sessions,
		logger:   logger,
	}
}

// Ensure authService implements AuthService at compile time.
var _ AuthService = (*authService)(nil)

// ValidateRequest extracts and validates a session token from the request.
func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	var tokenString string
	var tokenSource string

	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.logger.Debug("Invalid Authorization header format",
				zap.String("path", r.URL.Path))
			return nil, "", ErrInvalidAuthFormat
		}
		tokenString = parts[1]
		tokenSource = "header"
	} else if s.sessions != nil {
		if token, ok := s.sessions.Token(r); ok {
			tokenString = token
			tokenSource = "cookie"
		}
	}

	if tokenString == "" {
		s.logger.Debug("No session token found in request",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method))
		return nil, "", ErrMissingAuthorization
	}

	claims, err := s.tokens.Parse(tokenString)
	if err != nil {
		s.logger.Debug("Session token validation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("token_source", tokenSource))
		return nil, "", err
	}

	return claims, tokenString, nil
}
