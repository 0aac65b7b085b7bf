package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aviaops/flightops/pkg/access"
	"github.com/aviaops/flightops/pkg/apperrors"
	"github.com/aviaops/flightops/pkg/metrics"
	"github.com/aviaops/flightops/pkg/models"
	"github.com/aviaops/flightops/pkg/repositories"
)

// MaxRouteLength bounds the route text, in characters, accepted on create and update.
const MaxRouteLength = 200

// Money columns are numeric(14, 2).
const moneyScale = 2

var maxMoney = decimal.New(1, 12)

// exportHeader is the fixed CSV column order.
var exportHeader = []string{
	"Дата",
	"Маршрут",
	"Статус",
	"Затраты",
	"Прибыль",
	"Комментарий менеджера",
	"Комментарий пилота",
	"Дата создания",
}

// utf8BOM lets spreadsheet tools detect the export encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FlightService defines the flight operations. Every method takes the
// already-loaded actor and applies the access policy to it.
type FlightService interface {
	List(ctx context.Context, actor *models.User, filter models.FlightFilter) ([]*models.Flight, error)
	Create(ctx context.Context, actor *models.User, input models.FlightPatch) (*models.Flight, error)
	Update(ctx context.Context, actor *models.User, id uuid.UUID, patch models.FlightPatch) (*models.Flight, error)
	Delete(ctx context.Context, actor *models.User, id uuid.UUID) error
	// Export renders the listing as CSV with the same redaction as List.
	Export(ctx context.Context, actor *models.User, filter models.FlightFilter) ([]byte, error)
	Stats(ctx context.Context, actor *models.User, period string) (*models.FlightStats, error)
}

type flightService struct {
	flightRepo repositories.FlightRepository
	audit      AuditService
	notifier   StatusNotifier
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewFlightService creates a new flight service with dependencies.
func NewFlightService(
	flightRepo repositories.FlightRepository,
	audit AuditService,
	notifier StatusNotifier,
	m *metrics.Metrics,
	logger *zap.Logger,
) FlightService {
	return &flightService{
		flightRepo: flightRepo,
		audit:      audit,
		notifier:   notifier,
		metrics:    m,
		logger:     logger.Named("flight-service"),
		now:        time.Now,
	}
}

var _ FlightService = (*flightService)(nil)

func (s *flightService) List(ctx context.Context, actor *models.User, filter models.FlightFilter) ([]*models.Flight, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	flights, err := s.flightRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list flights: %w", err)
	}
	return access.RedactFlights(actor.Role, flights), nil
}

func (s *flightService) Create(ctx context.Context, actor *models.User, input models.FlightPatch) (*models.Flight, error) {
	if err := access.Require(actor.Role, access.OpCreateFlight); err != nil {
		return nil, err
	}

	input, dropped := access.FilterFlightPatch(actor.Role, input)
	if len(dropped) > 0 {
		s.logger.Debug("Stripped fields on create",
			zap.String("role", actor.Role),
			zap.Any("fields", dropped))
	}

	if input.FlightDate == nil {
		return nil, apperrors.Validation("flight_date is required")
	}
	if input.Route == nil {
		return nil, apperrors.Validation("route is required")
	}
	if err := validatePatch(input); err != nil {
		return nil, err
	}

	costs, revenue := decimal.Zero, decimal.Zero
	flight := &models.Flight{
		Status:    models.FlightStatusPlanned,
		Costs:     &costs,
		Revenue:   &revenue,
		CreatedBy: actor.ID,
	}
	input.ApplyTo(flight)

	if err := s.flightRepo.Create(ctx, flight); err != nil {
		return nil, fmt.Errorf("failed to create flight: %w", err)
	}

	s.metrics.FlightMutation(models.AuditActionCreateFlight)
	s.audit.Record(ctx, &actor.ID, models.AuditActionCreateFlight, models.AuditTableFlights, flight.ID, nil, flight.Snapshot())

	return access.RedactFlight(actor.Role, flight), nil
}

func (s *flightService) Update(ctx context.Context, actor *models.User, id uuid.UUID, patch models.FlightPatch) (*models.Flight, error) {
	if err := access.Require(actor.Role, access.OpUpdateFlight); err != nil {
		return nil, err
	}

	filtered, dropped := access.FilterFlightPatch(actor.Role, patch)
	if len(dropped) > 0 {
		s.logger.Debug("Stripped fields on update",
			zap.String("flight_id", id.String()),
			zap.String("role", actor.Role),
			zap.Any("fields", dropped))
	}
	if err := validatePatch(filtered); err != nil {
		return nil, err
	}

	existing, err := s.flightRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := existing
	if !filtered.IsEmpty() {
		updated, err = s.flightRepo.Update(ctx, id, filtered)
		if err != nil {
			return nil, err
		}
		s.metrics.FlightMutation(models.AuditActionUpdateFlight)
	}

	s.audit.Record(ctx, &actor.ID, models.AuditActionUpdateFlight, models.AuditTableFlights, id, existing.Snapshot(), updated.Snapshot())

	if updated.Status != existing.Status {
		s.notifier.NotifyStatusChange(updated, existing.Status, updated.Status)
	}

	return access.RedactFlight(actor.Role, updated), nil
}

func (s *flightService) Delete(ctx context.Context, actor *models.User, id uuid.UUID) error {
	if err := access.Require(actor.Role, access.OpDeleteFlight); err != nil {
		return err
	}

	existing, err := s.flightRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.flightRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.metrics.FlightMutation(models.AuditActionDeleteFlight)
	s.audit.Record(ctx, &actor.ID, models.AuditActionDeleteFlight, models.AuditTableFlights, id, existing.Snapshot(), nil)

	return nil
}

func (s *flightService) Export(ctx context.Context, actor *models.User, filter models.FlightFilter) ([]byte, error) {
	if err := access.Require(actor.Role, access.OpExportFlights); err != nil {
		return nil, err
	}

	flights, err := s.List(ctx, actor, filter)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, f := range flights {
		record := []string{
			FormatDate(f.FlightDate),
			f.Route,
			models.FlightStatusLabel(f.Status),
			decimalCell(f.Costs),
			decimalCell(f.Revenue),
			f.ManagerComment,
			f.PilotComment,
			FormatDate(civil.DateOf(f.CreatedAt)),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}

	return buf.Bytes(), nil
}

func (s *flightService) Stats(ctx context.Context, actor *models.User, period string) (*models.FlightStats, error) {
	if err := access.Require(actor.Role, access.OpViewStats); err != nil {
		return nil, err
	}

	if period == "" {
		period = models.StatsPeriodMonth
	}

	var from *civil.Date
	if period != models.StatsPeriodAll {
		days, ok := models.StatsPeriodDays[period]
		if !ok {
			return nil, apperrors.Validation("unknown period %q", period)
		}
		start := civil.DateOf(s.now()).AddDays(-(days - 1))
		from = &start
	}

	daily, err := s.flightRepo.DailyCompleted(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate flights: %w", err)
	}

	totals := models.FlightTotals{
		Costs:               decimal.Zero,
		Revenue:             decimal.Zero,
		AvgRevenuePerFlight: decimal.Zero,
	}
	for _, d := range daily {
		totals.Flights += d.Flights
		totals.Costs = totals.Costs.Add(d.Costs)
		totals.Revenue = totals.Revenue.Add(d.Revenue)
	}
	if totals.Flights > 0 {
		totals.AvgRevenuePerFlight = totals.Revenue.Div(decimal.NewFromInt(int64(totals.Flights))).Round(2)
	}

	if daily == nil {
		daily = []*models.DailyFlightStats{}
	}

	return &models.FlightStats{
		Period: period,
		Daily:  daily,
		Totals: totals,
	}, nil
}

func validateFilter(filter models.FlightFilter) error {
	if filter.Status != "" && !models.IsValidFlightStatus(filter.Status) {
		return apperrors.Validation("unknown status %q", filter.Status)
	}
	if filter.Order != "" && filter.Order != models.SortAsc && filter.Order != models.SortDesc {
		return apperrors.Validation("order must be %q or %q", models.SortAsc, models.SortDesc)
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return apperrors.Validation("date range is empty: %s is after %s", filter.From, filter.To)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return apperrors.Validation("limit and offset must not be negative")
	}
	return nil
}

func validatePatch(p models.FlightPatch) error {
	if p.Route != nil {
		route := strings.TrimSpace(*p.Route)
		if route == "" {
			return apperrors.Validation("route must not be blank")
		}
		if utf8.RuneCountInString(route) > MaxRouteLength {
			return apperrors.Validation("route must be at most %d characters", MaxRouteLength)
		}
	}
	if p.FlightDate != nil && !p.FlightDate.IsValid() {
		return apperrors.Validation("flight_date is not a valid date")
	}
	if p.Status != nil && !models.IsValidFlightStatus(*p.Status) {
		return apperrors.Validation("unknown status %q", *p.Status)
	}
	if err := validateMoney(models.FieldCosts, p.Costs); err != nil {
		return err
	}
	return validateMoney(models.FieldRevenue, p.Revenue)
}

// validateMoney checks an amount against the numeric(14, 2) columns.
func validateMoney(field models.FlightField, d *decimal.Decimal) error {
	if d == nil {
		return nil
	}
	if d.IsNegative() {
		return apperrors.Validation("%s must not be negative", field)
	}
	if !d.Equal(d.Truncate(moneyScale)) {
		return apperrors.Validation("%s must have at most %d decimal places", field, moneyScale)
	}
	if d.GreaterThanOrEqual(maxMoney) {
		return apperrors.Validation("%s must be less than %s", field, maxMoney)
	}
	return nil
}

func decimalCell(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(2)
}
