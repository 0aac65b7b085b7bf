package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestIsValidRole(t *testing.T) {
	tests := []struct {
		role string
		want bool
	}{
		{RolePilot, true},
		{RoleManager, true},
		{RoleAccountant, true},
		{RoleAdmin, true},
		{"", false},
		{"Admin", false},
		{"superuser", false},
	}

	for _, tt := range tests {
		if got := IsValidRole(tt.role); got != tt.want {
			t.Errorf("IsValidRole(%q) = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestDefaultRoleIsValid(t *testing.T) {
	assert.True(t, IsValidRole(DefaultRole))
	assert.Equal(t, RolePilot, DefaultRole)
}

func TestUser_Snapshot(t *testing.T) {
	u := &User{ID: uuid.New(), ExternalID: "42", DisplayName: "Ivan", Role: RoleManager}

	assert.Equal(t, map[string]any{
		"id":           u.ID.String(),
		"external_id":  "42",
		"display_name": "Ivan",
		"role":         RoleManager,
	}, u.Snapshot())
}
