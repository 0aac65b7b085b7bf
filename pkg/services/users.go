package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aviaops/flightops/pkg/access"
	"github.com/aviaops/flightops/pkg/apperrors"
	"github.com/aviaops/flightops/pkg/models"
	"github.com/aviaops/flightops/pkg/repositories"
)

// UserService defines the interface for user operations.
type UserService interface {
	// ResolveOrCreate returns the user with the given Telegram identity,
	// creating it with the default role on first contact.
	ResolveOrCreate(ctx context.Context, externalID, displayName string) (*models.User, error)

	// GetActor loads the caller by identity. Unknown identities are ErrUnauthenticated.
	GetActor(ctx context.Context, externalID string) (*models.User, error)

	// ChangeRole sets a user's role. The actor is reloaded by identity and must be an admin.
	ChangeRole(ctx context.Context, actorExternalID string, targetID uuid.UUID, newRole string) (*models.User, error)

	// List returns every user. Admin only.
	List(ctx context.Context, actor *models.User) ([]*models.User, error)
}

// userService implements UserService.
type userService struct {
	userRepo repositories.UserRepository
	audit    AuditService
	logger   *zap.Logger
}

// NewUserService creates a new user service with dependencies.
func NewUserService(userRepo repositories.UserRepository, audit AuditService, logger *zap.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		audit:    audit,
		logger:   logger.Named("user-service"),
	}
}

var _ UserService = (*userService)(nil)

func (s *userService) ResolveOrCreate(ctx context.Context, externalID, displayName string) (*models.User, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, apperrors.Validation("external id is required")
	}

	user, err := s.userRepo.GetByExternalID(ctx, externalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user = &models.User{
		ExternalID:  externalID,
		DisplayName: strings.TrimSpace(displayName),
		Role:        models.DefaultRole,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if !errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		// A concurrent first contact won the insert.
		existing, getErr := s.userRepo.GetByExternalID(ctx, externalID)
		if getErr != nil {
			return nil, fmt.Errorf("failed to re-fetch user after conflict: %w", getErr)
		}
		return existing, nil
	}

	s.logger.Info("Registered new user",
		zap.String("user_id", user.ID.String()),
		zap.String("role", user.Role))

	s.audit.Record(ctx, &user.ID, models.AuditActionCreate, models.AuditTableUsers, user.ID, nil, user.Snapshot())

	return user, nil
}

func (s *userService) GetActor(ctx context.Context, externalID string) (*models.User, error) {
	if externalID == "" {
		return nil, apperrors.ErrUnauthenticated
	}
	user, err := s.userRepo.GetByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to load actor: %w", err)
	}
	return user, nil
}

func (s *userService) ChangeRole(ctx context.Context, actorExternalID string, targetID uuid.UUID, newRole string) (*models.User, error) {
	actor, err := s.GetActor(ctx, actorExternalID)
	if err != nil {
		return nil, err
	}
	if err := access.Require(actor.Role, access.OpChangeRole); err != nil {
		return nil, err
	}
	if !models.IsValidRole(newRole) {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidRole, newRole)
	}

	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	updated, err := s.userRepo.UpdateRole(ctx, targetID, newRole)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Changed user role",
		zap.String("actor_id", actor.ID.String()),
		zap.String("target_id", targetID.String()),
		zap.String("old_role", target.Role),
		zap.String("new_role", newRole))

	s.audit.Record(ctx, &actor.ID, models.AuditActionChangeRole, models.AuditTableUsers, targetID, target.Snapshot(), updated.Snapshot())

	return updated, nil
}

func (s *userService) List(ctx context.Context, actor *models.User) ([]*models.User, error) {
	if err := access.Require(actor.Role, access.OpListUsers); err != nil {
		return nil, err
	}
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
