//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aviaops/flightops/pkg/models"
	"github.com/aviaops/flightops/pkg/testhelpers"
)

func TestAuditRepository_CreateAndList(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testDB.Truncate(t, "audit_log", "flights", "users")
	ctx := context.Background()

	admin := &models.User{ExternalID: "42", DisplayName: "Admin", Role: models.RoleAdmin}
	require.NoError(t, NewUserRepository(testDB.DB).Create(ctx, admin))

	repo := NewAuditRepository(testDB.DB)
	entityID := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.AuditLogEntry{
			ActorUserID: &admin.ID,
			Action:      models.AuditActionUpdateFlight,
			EntityTable: models.AuditTableFlights,
			EntityID:    entityID,
			OldValues:   map[string]any{"status": "planned"},
			NewValues:   map[string]any{"status": "done"},
		}))
	}
	require.NoError(t, repo.Create(ctx, &models.AuditLogEntry{
		Action:      models.AuditActionCreate,
		EntityTable: models.AuditTableUsers,
		EntityID:    admin.ID,
		NewValues:   admin.Snapshot(),
	}))

	entries, total, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, entries, 2)

	// Newest first: the actor-less create entry was written last.
	assert.Equal(t, models.AuditActionCreate, entries[0].Action)
	assert.Nil(t, entries[0].Actor)
	assert.Nil(t, entries[0].OldValues)

	require.NotNil(t, entries[1].Actor)
	assert.Equal(t, "Admin", entries[1].Actor.DisplayName)
	assert.Equal(t, "done", entries[1].NewValues["status"])

	rest, _, err := repo.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}
