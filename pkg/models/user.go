package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a person known to the system through their Telegram identity.
type User struct {
	ID          uuid.UUID `json:"id"`
	ExternalID  string    `json:"external_id"` // Telegram user ID
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"` // 'pilot', 'manager', 'accountant', 'admin'
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Role constants for user roles.
const (
	RolePilot      = "pilot"
	RoleManager    = "manager"
	RoleAccountant = "accountant"
	RoleAdmin      = "admin"
)

// DefaultRole is assigned to users created on first contact.
const DefaultRole = RolePilot

// ValidRoles contains all valid role values.
var ValidRoles = []string{RolePilot, RoleManager, RoleAccountant, RoleAdmin}

// IsValidRole checks if the given role is valid.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Snapshot returns the audit representation of the user.
func (u *User) Snapshot() map[string]any {
	return map[string]any{
		"id":           u.ID.String(),
		"external_id":  u.ExternalID,
		"display_name": u.DisplayName,
		"role":         u.Role,
	}
}

// UserRef is the minimal identity of a user shown next to audit entries.
type UserRef struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
}
