package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aviaops/flightops/pkg/access"
	"github.com/aviaops/flightops/pkg/apperrors"
	"github.com/aviaops/flightops/pkg/audit"
	"github.com/aviaops/flightops/pkg/auth"
	"github.com/aviaops/flightops/pkg/metrics"
	"github.com/aviaops/flightops/pkg/models"
	"github.com/aviaops/flightops/pkg/testhelpers"
)

// mockUserService keeps users by external ID.
type mockUserService struct {
	mu    sync.Mutex
	users map[string]*models.User

	resolveErr    error
	resolved      [][2]string
	changeRoleErr error
	changeActor   string
}

func newMockUserService(users ...*models.User) *mockUserService {
	m := &mockUserService{users: make(map[string]*models.User)}
	for _, u := range users {
		m.users[u.ExternalID] = u
	}
	return m
}

func (m *mockUserService) ResolveOrCreate(ctx context.Context, externalID, displayName string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved = append(m.resolved, [2]string{externalID, displayName})
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	if u, ok := m.users[externalID]; ok {
		return u, nil
	}
	u := &models.User{ID: uuid.New(), ExternalID: externalID, DisplayName: displayName, Role: models.DefaultRole}
	m.users[externalID] = u
	return u, nil
}

func (m *mockUserService) GetActor(ctx context.Context, externalID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[externalID]; ok {
		return u, nil
	}
	return nil, apperrors.ErrUnauthenticated
}

func (m *mockUserService) ChangeRole(ctx context.Context, actorExternalID string, targetID uuid.UUID, newRole string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changeActor = actorExternalID
	if m.changeRoleErr != nil {
		return nil, m.changeRoleErr
	}
	for _, u := range m.users {
		if u.ExternalID != actorExternalID {
			continue
		}
		if err := access.Require(u.Role, access.OpChangeRole); err != nil {
			return nil, err
		}
	}
	if !models.IsValidRole(newRole) {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidRole, newRole)
	}
	for _, u := range m.users {
		if u.ID == targetID {
			u.Role = newRole
			return u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockUserService) List(ctx context.Context, actor *models.User) ([]*models.User, error) {
	if err := access.Require(actor.Role, access.OpListUsers); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

// mockFlightService records its inputs and returns canned results.
type mockFlightService struct {
	flights    []*models.Flight
	flight     *models.Flight
	err        error
	exportData []byte
	stats      *models.FlightStats

	lastActor  *models.User
	lastFilter models.FlightFilter
	lastPatch  models.FlightPatch
	lastID     uuid.UUID
	lastPeriod string
}

func (m *mockFlightService) List(ctx context.Context, actor *models.User, filter models.FlightFilter) ([]*models.Flight, error) {
	m.lastActor, m.lastFilter = actor, filter
	return m.flights, m.err
}

func (m *mockFlightService) Create(ctx context.Context, actor *models.User, input models.FlightPatch) (*models.Flight, error) {
	m.lastActor, m.lastPatch = actor, input
	return m.flight, m.err
}

func (m *mockFlightService) Update(ctx context.Context, actor *models.User, id uuid.UUID, patch models.FlightPatch) (*models.Flight, error) {
	m.lastActor, m.lastID, m.lastPatch = actor, id, patch
	return m.flight, m.err
}

func (m *mockFlightService) Delete(ctx context.Context, actor *models.User, id uuid.UUID) error {
	m.lastActor, m.lastID = actor, id
	return m.err
}

func (m *mockFlightService) Export(ctx context.Context, actor *models.User, filter models.FlightFilter) ([]byte, error) {
	m.lastActor, m.lastFilter = actor, filter
	return m.exportData, m.err
}

func (m *mockFlightService) Stats(ctx context.Context, actor *models.User, period string) (*models.FlightStats, error) {
	m.lastActor, m.lastPeriod = actor, period
	return m.stats, m.err
}

// mockAuditService records List paging.
type mockAuditService struct {
	page     *models.AuditPage
	err      error
	lastPage int
	lastSize int
}

func (m *mockAuditService) Record(ctx context.Context, actorID *uuid.UUID, action, entityTable string, entityID uuid.UUID, oldValues, newValues map[string]any) {
}

func (m *mockAuditService) List(ctx context.Context, actor *models.User, page, pageSize int) (*models.AuditPage, error) {
	m.lastPage, m.lastSize = page, pageSize
	if err := access.Require(actor.Role, access.OpViewAudit); err != nil {
		return nil, err
	}
	return m.page, m.err
}

// testServer wires the API handlers onto a mux behind the real auth middleware.
type testServer struct {
	mux      *http.ServeMux
	users    *mockUserService
	flights  *mockFlightService
	audit    *mockAuditService
	logs     *observer.ObservedLogs
	metrics  *metrics.Metrics
	tokens   *auth.TokenIssuer
	sessions *auth.SessionStore
	auth     *auth.Middleware
	actors   *ActorLoader
	auditor  *audit.SecurityAuditor
	logger   *zap.Logger
}

func newTestServer(t *testing.T, users ...*models.User) *testServer {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	m := metrics.New(prometheus.NewRegistry())
	auditor := audit.NewSecurityAuditor(logger, m)

	tokens := auth.NewTokenIssuer(testhelpers.TestSessionSecret, time.Hour)
	sessions := auth.NewSessionStore(testhelpers.TestSessionSecret, 3600, false)
	authMiddleware := auth.NewMiddleware(auth.NewAuthService(tokens, sessions, logger), logger)

	s := &testServer{
		mux:      http.NewServeMux(),
		users:    newMockUserService(users...),
		flights:  &mockFlightService{},
		audit:    &mockAuditService{},
		logs:     logs,
		metrics:  m,
		tokens:   tokens,
		sessions: sessions,
		auth:     authMiddleware,
		auditor:  auditor,
		logger:   logger,
	}
	s.actors = NewActorLoader(s.users, logger)

	NewFlightsHandler(s.flights, auditor, logger).RegisterRoutes(s.mux, authMiddleware, s.actors)
	NewUsersHandler(s.users, auditor, logger).RegisterRoutes(s.mux, authMiddleware, s.actors)
	NewAuditHandler(s.audit, auditor, logger).RegisterRoutes(s.mux, authMiddleware, s.actors)

	return s
}

// do sends a request as the given Telegram user. An empty externalID sends no token.
func (s *testServer) do(t *testing.T, method, path, externalID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.7:5555"
	if externalID != "" {
		req.Header.Set("Authorization", testhelpers.GenerateTestJWTWithBearer(externalID))
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	envelope := struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}{}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !envelope.Success {
		t.Fatalf("expected success=true")
	}
	if err := json.Unmarshal(envelope.Data, dst); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}

func testUser(externalID, role string) *models.User {
	return &models.User{ID: uuid.New(), ExternalID: externalID, DisplayName: "user " + externalID, Role: role}
}
