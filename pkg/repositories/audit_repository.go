package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aviaops/flightops/pkg/database"
	"github.com/aviaops/flightops/pkg/models"
)

// AuditRepository provides data access for the append-only audit log.
type AuditRepository interface {
	// Create inserts a new audit log entry.
	Create(ctx context.Context, entry *models.AuditLogEntry) error

	// List returns one page of entries, newest first, with the actor joined,
	// plus the total number of entries.
	List(ctx context.Context, limit, offset int) ([]*models.AuditLogEntry, int, error)
}

type auditRepository struct {
	db database.Querier
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db database.Querier) AuditRepository {
	return &auditRepository{db: db}
}

var _ AuditRepository = (*auditRepository)(nil)

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()

	oldJSON, err := marshalSnapshot(entry.OldValues)
	if err != nil {
		return fmt.Errorf("failed to marshal old_values: %w", err)
	}
	newJSON, err := marshalSnapshot(entry.NewValues)
	if err != nil {
		return fmt.Errorf("failed to marshal new_values: %w", err)
	}

	query := `
		INSERT INTO audit_log (
			id, actor_user_id, action, entity_table, entity_id, old_values, new_values, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.Exec(ctx, query,
		entry.ID,
		entry.ActorUserID,
		entry.Action,
		entry.EntityTable,
		entry.EntityID,
		oldJSON,
		newJSON,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log entry: %w", err)
	}

	return nil
}

func (r *auditRepository) List(ctx context.Context, limit, offset int) ([]*models.AuditLogEntry, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit log entries: %w", err)
	}

	query := `
		SELECT a.id, a.actor_user_id, a.action, a.entity_table, a.entity_id,
		       a.old_values, a.new_values, a.created_at, u.display_name
		FROM audit_log a
		LEFT JOIN users u ON u.id = a.actor_user_id
		ORDER BY a.created_at DESC, a.id
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.AuditLogEntry, 0)
	for rows.Next() {
		entry, err := scanAuditLogEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating audit log entries: %w", err)
	}

	return entries, total, nil
}

func scanAuditLogEntry(row pgx.Row) (*models.AuditLogEntry, error) {
	var (
		entry            models.AuditLogEntry
		oldJSON, newJSON []byte
		actorDisplayName *string
	)

	err := row.Scan(
		&entry.ID,
		&entry.ActorUserID,
		&entry.Action,
		&entry.EntityTable,
		&entry.EntityID,
		&oldJSON,
		&newJSON,
		&entry.CreatedAt,
		&actorDisplayName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit log entry: %w", err)
	}

	if len(oldJSON) > 0 {
		if err := json.Unmarshal(oldJSON, &entry.OldValues); err != nil {
			return nil, fmt.Errorf("failed to unmarshal old_values: %w", err)
		}
	}
	if len(newJSON) > 0 {
		if err := json.Unmarshal(newJSON, &entry.NewValues); err != nil {
			return nil, fmt.Errorf("failed to unmarshal new_values: %w", err)
		}
	}

	if entry.ActorUserID != nil && actorDisplayName != nil {
		entry.Actor = &models.UserRef{ID: *entry.ActorUserID, DisplayName: *actorDisplayName}
	}

	return &entry, nil
}

// marshalSnapshot returns nil for an absent snapshot so the column stores SQL NULL.
func marshalSnapshot(values map[string]any) ([]byte, error) {
	if values == nil {
		return nil, nil
	}
	return json.Marshal(values)
}
