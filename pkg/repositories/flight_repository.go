package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/aviaops/flightops/pkg/apperrors"
	"github.com/aviaops/flightops/pkg/database"
	"github.com/aviaops/flightops/pkg/models"
)

// FlightRepository defines the interface for flight data access.
// Flights returned by the repository are never redacted.
type FlightRepository interface {
	List(ctx context.Context, filter models.FlightFilter) ([]*models.Flight, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Flight, error)
	// Create inserts the flight and refreshes it from the stored row.
	Create(ctx context.Context, flight *models.Flight) error
	// Update writes only the fields set on the patch plus updated_at and
	// returns the stored row.
	Update(ctx context.Context, id uuid.UUID, patch models.FlightPatch) (*models.Flight, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// DailyCompleted aggregates done flights per day from the given date (inclusive), ascending.
	// A nil from covers all history.
	DailyCompleted(ctx context.Context, from *civil.Date) ([]*models.DailyFlightStats, error)
}

type flightRepository struct {
	db database.Querier
}

// NewFlightRepository creates a new flight repository.
func NewFlightRepository(db database.Querier) FlightRepository {
	return &flightRepository{db: db}
}

var _ FlightRepository = (*flightRepository)(nil)

// Numerics are read as text so decimals round-trip without float conversion.
const flightColumns = `id, flight_date, route, costs::text, revenue::text, status,
		manager_comment, pilot_comment, created_by, created_at, updated_at`

func (r *flightRepository) List(ctx context.Context, filter models.FlightFilter) ([]*models.Flight, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.Route != "" {
		conditions = append(conditions, fmt.Sprintf(`route ILIKE $%d ESCAPE '\'`, argIdx))
		args = append(args, "%"+escapeLike(filter.Route)+"%")
		argIdx++
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("flight_date >= $%d", argIdx))
		args = append(args, filter.From.In(time.UTC))
		argIdx++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("flight_date <= $%d", argIdx))
		args = append(args, filter.To.In(time.UTC))
		argIdx++
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + flightColumns + ` FROM flights`)
	if len(conditions) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}

	direction := "DESC"
	if filter.Order == models.SortAsc {
		direction = "ASC"
	}
	fmt.Fprintf(&sb, " ORDER BY flight_date %s, created_at %s, id", direction, direction)

	if filter.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}
	if filter.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET $%d", argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list flights: %w", err)
	}
	defer rows.Close()

	flights := make([]*models.Flight, 0)
	for rows.Next() {
		flight, err := scanFlight(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flight: %w", err)
		}
		flights = append(flights, flight)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flights: %w", err)
	}

	return flights, nil
}

func (r *flightRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Flight, error) {
	query := `SELECT ` + flightColumns + ` FROM flights WHERE id = $1`

	flight, err := scanFlight(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get flight: %w", err)
	}
	return flight, nil
}

func (r *flightRepository) Create(ctx context.Context, flight *models.Flight) error {
	if flight.ID == uuid.Nil {
		flight.ID = uuid.New()
	}
	now := time.Now()
	flight.CreatedAt = now
	flight.UpdatedAt = now

	query := `
		INSERT INTO flights (id, flight_date, route, costs, revenue, status,
		                     manager_comment, pilot_comment, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8, $9, $10, $11)
		RETURNING ` + flightColumns

	stored, err := scanFlight(r.db.QueryRow(ctx, query,
		flight.ID,
		flight.FlightDate.In(time.UTC),
		flight.Route,
		numericArg(flight.Costs),
		numericArg(flight.Revenue),
		flight.Status,
		flight.ManagerComment,
		flight.PilotComment,
		flight.CreatedBy,
		flight.CreatedAt,
		flight.UpdatedAt,
	))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("flight %s already exists: %w", flight.ID, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create flight: %w", err)
	}

	*flight = *stored
	return nil
}

func (r *flightRepository) Update(ctx context.Context, id uuid.UUID, patch models.FlightPatch) (*models.Flight, error) {
	var sets []string
	var args []any
	set := func(column, cast string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d%s", column, len(args), cast))
	}

	if patch.FlightDate != nil {
		set("flight_date", "", patch.FlightDate.In(time.UTC))
	}
	if patch.Route != nil {
		set("route", "", strings.TrimSpace(*patch.Route))
	}
	if patch.Costs != nil {
		set("costs", "::numeric", numericArg(patch.Costs))
	}
	if patch.Revenue != nil {
		set("revenue", "::numeric", numericArg(patch.Revenue))
	}
	if patch.Status != nil {
		set("status", "", *patch.Status)
	}
	if patch.ManagerComment != nil {
		set("manager_comment", "", *patch.ManagerComment)
	}
	if patch.PilotComment != nil {
		set("pilot_comment", "", *patch.PilotComment)
	}
	set("updated_at", "", time.Now())
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE flights SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), flightColumns)

	flight, err := scanFlight(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update flight: %w", err)
	}
	return flight, nil
}

func (r *flightRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM flights WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete flight: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *flightRepository) DailyCompleted(ctx context.Context, from *civil.Date) ([]*models.DailyFlightStats, error) {
	conditions := []string{"status = $1"}
	args := []any{models.FlightStatusDone}

	if from != nil {
		conditions = append(conditions, "flight_date >= $2")
		args = append(args, from.In(time.UTC))
	}

	query := fmt.Sprintf(`
		SELECT flight_date, SUM(costs)::text, SUM(revenue)::text, COUNT(*)
		FROM flights
		WHERE %s
		GROUP BY flight_date
		ORDER BY flight_date ASC`, strings.Join(conditions, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate completed flights: %w", err)
	}
	defer rows.Close()

	days := make([]*models.DailyFlightStats, 0)
	for rows.Next() {
		var (
			date           time.Time
			costs, revenue string
			count          int
		)
		if err := rows.Scan(&date, &costs, &revenue, &count); err != nil {
			return nil, fmt.Errorf("failed to scan daily stats: %w", err)
		}

		day := &models.DailyFlightStats{Date: civil.DateOf(date), Flights: count}
		if day.Costs, err = decimal.NewFromString(costs); err != nil {
			return nil, fmt.Errorf("failed to parse costs %q: %w", costs, err)
		}
		if day.Revenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, fmt.Errorf("failed to parse revenue %q: %w", revenue, err)
		}
		days = append(days, day)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily stats: %w", err)
	}

	return days, nil
}

func scanFlight(row pgx.Row) (*models.Flight, error) {
	var (
		f              models.Flight
		date           time.Time
		costs, revenue string
	)
	err := row.Scan(
		&f.ID,
		&date,
		&f.Route,
		&costs,
		&revenue,
		&f.Status,
		&f.ManagerComment,
		&f.PilotComment,
		&f.CreatedBy,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.FlightDate = civil.DateOf(date)

	c, err := decimal.NewFromString(costs)
	if err != nil {
		return nil, fmt.Errorf("failed to parse costs %q: %w", costs, err)
	}
	rv, err := decimal.NewFromString(revenue)
	if err != nil {
		return nil, fmt.Errorf("failed to parse revenue %q: %w", revenue, err)
	}
	f.Costs = &c
	f.Revenue = &rv

	return &f, nil
}

// numericArg renders a decimal for a ::numeric placeholder. Nil stores zero.
func numericArg(d *decimal.Decimal) string {
	if d == nil {
		return "0"
	}
	return d.String()
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
