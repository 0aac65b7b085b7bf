package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"

	"github.com/aviaops/flightops/pkg/apperrors"
	"github.com/aviaops/flightops/pkg/models"
)

// mockUserRepository is an in-memory UserRepository.
type mockUserRepository struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User

	createErr      error
	listByRolesErr error
	// conflictOnCreate simulates a concurrent insert: the user is stored, then ErrConflict is returned.
	conflictOnCreate bool
	createCalls      int
}

func newMockUserRepository(users ...*models.User) *mockUserRepository {
	m := &mockUserRepository{users: make(map[uuid.UUID]*models.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (m *mockUserRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ExternalID == externalID {
			c := *u
			return &c, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	if m.conflictOnCreate {
		winner := &models.User{ID: uuid.New(), ExternalID: user.ExternalID, DisplayName: "winner", Role: models.RolePilot}
		m.users[winner.ID] = winner
		return apperrors.ErrConflict
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	c := *user
	m.users[user.ID] = &c
	return nil
}

func (m *mockUserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	u.Role = role
	c := *u
	return &c, nil
}

func (m *mockUserRepository) List(ctx context.Context) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		c := *u
		out = append(out, &c)
	}
	return out, nil
}

func (m *mockUserRepository) ListByRoles(ctx context.Context, roles ...string) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listByRolesErr != nil {
		return nil, m.listByRolesErr
	}
	var out []*models.User
	for _, u := range m.users {
		for _, r := range roles {
			if u.Role == r {
				c := *u
				out = append(out, &c)
			}
		}
	}
	return out, nil
}

// mockFlightRepository is an in-memory FlightRepository.
type mockFlightRepository struct {
	flights map[uuid.UUID]*models.Flight

	updateCalls int
	deleteCalls int
	updateErr   error
	lastFilter  models.FlightFilter
	lastPatch   models.FlightPatch

	// beforeUpdate simulates a concurrent writer touching the row.
	beforeUpdate func(stored *models.Flight)

	daily     []*models.DailyFlightStats
	dailyFrom *civil.Date
}

func newMockFlightRepository(flights ...*models.Flight) *mockFlightRepository {
	m := &mockFlightRepository{flights: make(map[uuid.UUID]*models.Flight)}
	for _, f := range flights {
		m.flights[f.ID] = f.Clone()
	}
	return m
}

func (m *mockFlightRepository) List(ctx context.Context, filter models.FlightFilter) ([]*models.Flight, error) {
	m.lastFilter = filter
	var out []*models.Flight
	for _, f := range m.flights {
		if filter.Status != "" && f.Status != filter.Status {
			continue
		}
		out = append(out, f.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[j].FlightDate.Before(out[i].FlightDate) })
	return out, nil
}

func (m *mockFlightRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Flight, error) {
	f, ok := m.flights[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return f.Clone(), nil
}

func (m *mockFlightRepository) Create(ctx context.Context, flight *models.Flight) error {
	if flight.ID == uuid.Nil {
		flight.ID = uuid.New()
	}
	flight.CreatedAt = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	flight.UpdatedAt = flight.CreatedAt
	m.flights[flight.ID] = flight.Clone()
	return nil
}

func (m *mockFlightRepository) Update(ctx context.Context, id uuid.UUID, patch models.FlightPatch) (*models.Flight, error) {
	m.updateCalls++
	m.lastPatch = patch
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	stored, ok := m.flights[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if m.beforeUpdate != nil {
		m.beforeUpdate(stored)
	}
	patch.ApplyTo(stored)
	stored.UpdatedAt = stored.UpdatedAt.Add(time.Minute)
	return stored.Clone(), nil
}

func (m *mockFlightRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.deleteCalls++
	if _, ok := m.flights[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.flights, id)
	return nil
}

func (m *mockFlightRepository) DailyCompleted(ctx context.Context, from *civil.Date) ([]*models.DailyFlightStats, error) {
	m.dailyFrom = from
	return m.daily, nil
}

// mockAuditRepository is an in-memory AuditRepository.
type mockAuditRepository struct {
	mu        sync.Mutex
	entries   []*models.AuditLogEntry
	createErr error

	listLimit  int
	listOffset int
}

func (m *mockAuditRepository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepository) List(ctx context.Context, limit, offset int) ([]*models.AuditLogEntry, int, error) {
	m.listLimit = limit
	m.listOffset = offset
	return m.entries, len(m.entries), nil
}

func (m *mockAuditRepository) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

// mockNotifier records status-change notifications synchronously.
type mockNotifier struct {
	calls []notifyCall
}

type notifyCall struct {
	flightID  uuid.UUID
	oldStatus string
	newStatus string
}

func (m *mockNotifier) NotifyStatusChange(flight *models.Flight, oldStatus, newStatus string) {
	m.calls = append(m.calls, notifyCall{flightID: flight.ID, oldStatus: oldStatus, newStatus: newStatus})
}

func (m *mockNotifier) Wait() {}

// mockChannel records sends and fails for the configured recipients.
type mockChannel struct {
	mu      sync.Mutex
	sent    map[string]string
	failFor map[string]bool
}

func newMockChannel() *mockChannel {
	return &mockChannel{sent: make(map[string]string), failFor: make(map[string]bool)}
}

func (m *mockChannel) Send(ctx context.Context, recipient string, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[recipient] {
		return errors.New("chat not found")
	}
	m.sent[recipient] = text
	return nil
}

func (m *mockChannel) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for r := range m.sent {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func newUser(externalID, role string) *models.User {
	return &models.User{ID: uuid.New(), ExternalID: externalID, DisplayName: "user " + externalID, Role: role}
}
