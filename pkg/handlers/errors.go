package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/aviaops/flightops/pkg/apperrors"
	"github.com/aviaops/flightops/pkg/audit"
	"github.com/aviaops/flightops/pkg/logging"
)

// errorWriter maps service errors onto HTTP responses.
// Store error text never leaves the process.
type errorWriter struct {
	auditor *audit.SecurityAuditor
	logger  *zap.Logger
}

func (e errorWriter) write(w http.ResponseWriter, r *http.Request, err error, operation string) {
	status, code, message := http.StatusInternalServerError, "internal_error", "Internal server error"

	switch {
	case errors.Is(err, apperrors.ErrUnauthenticated):
		status, code, message = http.StatusUnauthorized, "unauthorized", "Authentication required"
	case errors.Is(err, apperrors.ErrPermissionDenied):
		status, code, message = http.StatusForbidden, "forbidden", "Access denied"
		if detail := apperrors.Detail(err); detail != "" {
			message = detail
		}
		role := ""
		if actor, ok := ActorFromContext(r.Context()); ok {
			role = actor.Role
		}
		if e.auditor != nil {
			e.auditor.LogPermissionDenied(r.Context(), role, operation, clientIP(r))
		}
	case errors.Is(err, apperrors.ErrInvalidRole):
		status, code, message = http.StatusBadRequest, "validation_error", err.Error()
	case errors.Is(err, apperrors.ErrValidation):
		status, code, message = http.StatusBadRequest, "validation_error", "Invalid request"
		if detail := apperrors.Detail(err); detail != "" {
			message = detail
		}
	case errors.Is(err, apperrors.ErrNotFound):
		status, code, message = http.StatusNotFound, "not_found", "Not found"
	case errors.Is(err, apperrors.ErrConflict):
		status, code, message = http.StatusConflict, "conflict", "Conflict"
	default:
		e.logger.Error("Request failed",
			zap.String("operation", operation),
			zap.String("path", r.URL.Path),
			zap.String("error", logging.SanitizeError(err)))
	}

	if err := ErrorResponse(w, status, code, message); err != nil {
		e.logger.Error("Failed to write error response", zap.Error(err))
	}
}
