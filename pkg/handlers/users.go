package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/aviaops/flightops/pkg/access"
	"github.com/aviaops/flightops/pkg/audit"
	"github.com/aviaops/flightops/pkg/auth"
	"github.com/aviaops/flightops/pkg/services"
)

// ChangeRoleRequest is the request body for changing a user's role.
type ChangeRoleRequest struct {
	Role string `json:"role"`
}

// UsersHandler handles user-related HTTP requests.
type UsersHandler struct {
	userService services.UserService
	errors      errorWriter
	logger      *zap.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(userService services.UserService, auditor *audit.SecurityAuditor, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{
		userService: userService,
		errors:      errorWriter{auditor: auditor, logger: logger},
		logger:      logger,
	}
}

// RegisterRoutes registers the users handler's routes on the given mux.
func (h *UsersHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, actors *ActorLoader) {
	mux.HandleFunc("GET /api/users", authenticated(authMiddleware, actors, h.List))
	mux.HandleFunc("PUT /api/users/{id}/role", authenticated(authMiddleware, actors, h.ChangeRole))
}

// List handles GET /api/users
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	users, err := h.userService.List(r.Context(), actor)
	if err != nil {
		h.errors.write(w, r, err, string(access.OpListUsers))
		return
	}

	if err := writeData(w, http.StatusOK, users); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ChangeRole handles PUT /api/users/{id}/role
// The actor is identified by the token subject only; the service reloads it.
func (h *UsersHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	targetID, ok := ParseUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req ChangeRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errors.write(w, r, err, string(access.OpChangeRole))
		return
	}
	user, err := h.userService.ChangeRole(r.Context(), auth.GetExternalIDFromContext(r.Context()), targetID, req.Role)
	if err != nil {
		h.errors.write(w, r, err, string(access.OpChangeRole))
		return
	}

	if err := writeData(w, http.StatusOK, user); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
