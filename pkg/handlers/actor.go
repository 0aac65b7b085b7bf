package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/aviaops/flightops/pkg/apperrors"
	"github.com/aviaops/flightops/pkg/auth"
	"github.com/aviaops/flightops/pkg/logging"
	"github.com/aviaops/flightops/pkg/models"
	"github.com/aviaops/flightops/pkg/services"
)

type actorKey struct{}

// ActorFromContext returns the user loaded by ActorLoader.
func ActorFromContext(ctx context.Context) (*models.User, bool) {
	actor, ok := ctx.Value(actorKey{}).(*models.User)
	return actor, ok && actor != nil
}

// WithActor stores the acting user in the context.
func WithActor(ctx context.Context, actor *models.User) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorLoader resolves the token subject to a stored user on every request,
// so role changes apply immediately and clients cannot assert a role.
type ActorLoader struct {
	users  services.UserService
	logger *zap.Logger
}

// NewActorLoader creates an ActorLoader.
func NewActorLoader(users services.UserService, logger *zap.Logger) *ActorLoader {
	return &ActorLoader{users: users, logger: logger}
}

// RequireActor must run after auth.Middleware.RequireAuth.
func (l *ActorLoader) RequireActor(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		externalID, err := auth.RequireExternalIDFromContext(r.Context())
		if err != nil {
			if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"); err != nil {
				l.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}

		actor, err := l.users.GetActor(r.Context(), externalID)
		if err != nil {
			if errors.Is(err, apperrors.ErrUnauthenticated) {
				if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Unknown user"); err != nil {
					l.logger.Error("Failed to write error response", zap.Error(err))
				}
				return
			}
			l.logger.Error("Failed to load actor", zap.String("error", logging.SanitizeError(err)))
			if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Internal server error"); err != nil {
				l.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}

		next(w, r.WithContext(WithActor(r.Context(), actor)))
	}
}

// authenticated chains token validation and actor loading.
func authenticated(authMiddleware *auth.Middleware, actors *ActorLoader, h http.HandlerFunc) http.HandlerFunc {
	return authMiddleware.RequireAuth(actors.RequireActor(h))
}

// requireActor fetches the actor set by RequireActor. It writes a 401 when absent.
func requireActor(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*models.User, bool) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}
	return actor, true
}
