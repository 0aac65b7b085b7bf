package models

import (
	"time"

	"github.com/google/uuid"
)

// Audited tables.
const (
	AuditTableUsers   = "users"
	AuditTableFlights = "flights"
)

// Audit actions.
const (
	AuditActionCreate       = "create"
	AuditActionCreateFlight = "create_flight"
	AuditActionUpdateFlight = "update_flight"
	AuditActionDeleteFlight = "delete_flight"
	AuditActionChangeRole   = "change_role"
)

// AuditLogEntry represents a single entry in the audit log.
// Entries are append-only: the application never updates or deletes them.
type AuditLogEntry struct {
	ID          uuid.UUID  `json:"id"`
	ActorUserID *uuid.UUID `json:"actor_user_id,omitempty"` // Null only if the actor row was removed
	Action      string     `json:"action"`                  // 'create', 'create_flight', 'update_flight', ...
	EntityTable string     `json:"entity_table"`            // 'users', 'flights'
	EntityID    uuid.UUID  `json:"entity_id"`

	// Pre/post snapshots of the affected record
	OldValues map[string]any `json:"old_values,omitempty"`
	NewValues map[string]any `json:"new_values,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// Joined from users for display, never persisted.
	Actor *UserRef `json:"actor,omitempty"`
}

// AuditPage is one page of the audit log plus the total number of entries.
type AuditPage struct {
	Entries  []*AuditLogEntry `json:"entries"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}
