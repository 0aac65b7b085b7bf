package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aviaops/flightops/pkg/apperrors"
	"github.com/aviaops/flightops/pkg/metrics"
	"github.com/aviaops/flightops/pkg/models"
)

func TestAuditService_Record_PersistsEntry(t *testing.T) {
	repo := &mockAuditRepository{}
	svc := NewAuditService(repo, nil, zap.NewNop())

	actorID := uuid.New()
	entityID := uuid.New()
	svc.Record(context.Background(), &actorID, models.AuditActionUpdateFlight, models.AuditTableFlights, entityID,
		map[string]any{"status": "planned"}, map[string]any{"status": "done"})

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.Equal(t, &actorID, entry.ActorUserID)
	assert.Equal(t, entityID, entry.EntityID)
	assert.Equal(t, "planned", entry.OldValues["status"])
	assert.Equal(t, "done", entry.NewValues["status"])
}

func TestAuditService_Record_FailureIsSwallowed(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	m := metrics.New(prometheus.NewRegistry())
	repo := &mockAuditRepository{createErr: errors.New("insert failed: password=hunter2")}
	svc := NewAuditService(repo, m, zap.New(core))

	svc.Record(context.Background(), nil, models.AuditActionDeleteFlight, models.AuditTableFlights, uuid.New(), nil, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditWriteFailures))
	require.Equal(t, 1, logs.Len())
	assert.NotContains(t, logs.All()[0].ContextMap()["error"], "hunter2")
}

func TestAuditService_Record_SurvivesCancelledContext(t *testing.T) {
	repo := &mockAuditRepository{}
	svc := NewAuditService(repo, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Record(ctx, nil, models.AuditActionCreate, models.AuditTableUsers, uuid.New(), nil, nil)

	assert.Len(t, repo.entries, 1)
}

func TestAuditService_List_AdminOnly(t *testing.T) {
	svc := NewAuditService(&mockAuditRepository{}, nil, zap.NewNop())

	for _, role := range []string{models.RolePilot, models.RoleManager, models.RoleAccountant, ""} {
		_, err := svc.List(context.Background(), newUser("1", role), 1, 10)
		assert.True(t, errors.Is(err, apperrors.ErrPermissionDenied), "role %q", role)
	}

	page, err := svc.List(context.Background(), newUser("1", models.RoleAdmin), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}

func TestAuditService_List_Paging(t *testing.T) {
	tests := []struct {
		name         string
		page         int
		pageSize     int
		wantLimit    int
		wantOffset   int
		wantPage     int
		wantPageSize int
	}{
		{"defaults", 0, 0, DefaultAuditPageSize, 0, 1, DefaultAuditPageSize},
		{"third page", 3, 20, 20, 40, 3, 20},
		{"capped", 2, 1000, MaxAuditPageSize, MaxAuditPageSize, 2, MaxAuditPageSize},
		{"negative page", -4, 10, 10, 0, 1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockAuditRepository{}
			svc := NewAuditService(repo, nil, zap.NewNop())

			page, err := svc.List(context.Background(), newUser("1", models.RoleAdmin), tt.page, tt.pageSize)
			require.NoError(t, err)

			assert.Equal(t, tt.wantLimit, repo.listLimit)
			assert.Equal(t, tt.wantOffset, repo.listOffset)
			assert.Equal(t, tt.wantPage, page.Page)
			assert.Equal(t, tt.wantPageSize, page.PageSize)
		})
	}
}
