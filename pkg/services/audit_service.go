package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aviaops/flightops/pkg/access"
	"github.com/aviaops/flightops/pkg/logging"
	"github.com/aviaops/flightops/pkg/metrics"
	"github.com/aviaops/flightops/pkg/models"
	"github.com/aviaops/flightops/pkg/repositories"
)

// Audit log paging.
const (
	DefaultAuditPageSize = 50
	MaxAuditPageSize     = 200
)

// AuditService records and lists the append-only audit trail.
type AuditService interface {
	// Record appends an entry. It never fails: write errors are logged and counted.
	Record(ctx context.Context, actorID *uuid.UUID, action, entityTable string, entityID uuid.UUID, oldValues, newValues map[string]any)

	// List returns one page of the audit log, newest first. Admin only.
	List(ctx context.Context, actor *models.User, page, pageSize int) (*models.AuditPage, error)
}

type auditService struct {
	repo    repositories.AuditRepository
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(repo repositories.AuditRepository, m *metrics.Metrics, logger *zap.Logger) AuditService {
	return &auditService{
		repo:    repo,
		metrics: m,
		logger:  logger.Named("audit-service"),
	}
}

var _ AuditService = (*auditService)(nil)

func (s *auditService) Record(ctx context.Context, actorID *uuid.UUID, action, entityTable string, entityID uuid.UUID, oldValues, newValues map[string]any) {
	entry := &models.AuditLogEntry{
		ActorUserID: actorID,
		Action:      action,
		EntityTable: entityTable,
		EntityID:    entityID,
		OldValues:   oldValues,
		NewValues:   newValues,
	}

	// The primary write already happened; a client disconnect must not drop its audit entry.
	if err := s.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.metrics.AuditWriteFailed()
		s.logger.Error("Failed to create audit log entry",
			zap.String("action", action),
			zap.String("entity_table", entityTable),
			zap.String("entity_id", entityID.String()),
			zap.String("error", logging.SanitizeError(err)))
	}
}

func (s *auditService) List(ctx context.Context, actor *models.User, page, pageSize int) (*models.AuditPage, error) {
	if err := access.Require(actor.Role, access.OpViewAudit); err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultAuditPageSize
	}
	if pageSize > MaxAuditPageSize {
		pageSize = MaxAuditPageSize
	}

	entries, total, err := s.repo.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}

	return &models.AuditPage{
		Entries:  entries,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}
