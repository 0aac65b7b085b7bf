package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/aviaops/flightops/pkg/access"
	"github.com/aviaops/flightops/pkg/audit"
	"github.com/aviaops/flightops/pkg/auth"
	"github.com/aviaops/flightops/pkg/services"
)

// AuditHandler serves the audit log to admins.
type AuditHandler struct {
	auditService services.AuditService
	errors       errorWriter
	logger       *zap.Logger
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(auditService services.AuditService, auditor *audit.SecurityAuditor, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		errors:       errorWriter{auditor: auditor, logger: logger},
		logger:       logger,
	}
}

// RegisterRoutes registers the audit handler's routes on the given mux.
func (h *AuditHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, actors *ActorLoader) {
	mux.HandleFunc("GET /api/audit", authenticated(authMiddleware, actors, h.List))
}

// List handles GET /api/audit?page=N&page_size=M
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	q := r.URL.Query()
	page, err := parseIntParam(q.Get("page"), "page", 1)
	if err != nil {
		h.errors.write(w, r, err, string(access.OpViewAudit))
		return
	}
	pageSize, err := parseIntParam(q.Get("page_size"), "page_size", services.DefaultAuditPageSize)
	if err != nil {
		h.errors.write(w, r, err, string(access.OpViewAudit))
		return
	}

	result, err := h.auditService.List(r.Context(), actor, page, pageSize)
	if err != nil {
		h.errors.write(w, r, err, string(access.OpViewAudit))
		return
	}

	if err := writeData(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
