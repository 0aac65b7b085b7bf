package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-sql/civil"
	"golang.org/x/sync/errgroup"
	"go.uber.org/zap"

	"github.com/aviaops/flightops/pkg/logging"
	"github.com/aviaops/flightops/pkg/metrics"
	"github.com/aviaops/flightops/pkg/models"
	"github.com/aviaops/flightops/pkg/repositories"
	"github.com/aviaops/flightops/pkg/retry"
	"github.com/aviaops/flightops/pkg/telegram"
)

// StatusNotifier tells interested users that a flight changed status.
type StatusNotifier interface {
	// NotifyStatusChange returns immediately; delivery happens in the background.
	NotifyStatusChange(flight *models.Flight, oldStatus, newStatus string)

	// Wait blocks until every dispatch started so far has finished.
	Wait()
}

type statusNotifier struct {
	users         repositories.UserRepository
	channel       telegram.Channel
	maxConcurrent int
	timeout       time.Duration
	retry         *retry.Config
	metrics       *metrics.Metrics
	logger        *zap.Logger

	wg sync.WaitGroup
}

// NewStatusNotifier creates a notifier that fans out over the channel with at
// most maxConcurrent sends per dispatch, each dispatch bounded by timeout.
// Rate-limited sends are retried within that bound.
func NewStatusNotifier(
	users repositories.UserRepository,
	channel telegram.Channel,
	maxConcurrent int,
	timeout time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) StatusNotifier {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &statusNotifier{
		users:         users,
		channel:       channel,
		maxConcurrent: maxConcurrent,
		timeout:       timeout,
		retry:         retry.SendConfig(),
		metrics:       m,
		logger:        logger.Named("status-notifier"),
	}
}

var _ StatusNotifier = (*statusNotifier)(nil)

func (n *statusNotifier) NotifyStatusChange(flight *models.Flight, oldStatus, newStatus string) {
	snapshot := flight.Clone()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx := context.Background()
		if n.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, n.timeout)
			defer cancel()
		}
		n.dispatch(ctx, snapshot, oldStatus, newStatus)
	}()
}

func (n *statusNotifier) Wait() {
	n.wg.Wait()
}

func (n *statusNotifier) dispatch(ctx context.Context, flight *models.Flight, oldStatus, newStatus string) {
	recipients, err := n.recipients(ctx, flight)
	if err != nil {
		n.logger.Error("Failed to resolve notification recipients",
			zap.String("flight_id", flight.ID.String()),
			zap.String("error", logging.SanitizeError(err)))
		return
	}

	text := StatusChangeMessage(flight, oldStatus, newStatus)

	var g errgroup.Group
	g.SetLimit(n.maxConcurrent)
	for _, user := range recipients {
		g.Go(func() error {
			err := retry.DoIfRetryable(ctx, n.retry, func() error {
				return n.channel.Send(ctx, user.ExternalID, text)
			})
			if err != nil {
				n.metrics.NotificationFailed()
				n.logger.Warn("Failed to deliver status notification",
					zap.String("flight_id", flight.ID.String()),
					zap.String("user_id", user.ID.String()),
					zap.String("error", logging.SanitizeError(err)))
				return nil
			}
			n.metrics.NotificationSent()
			return nil
		})
	}
	_ = g.Wait()

	n.logger.Debug("Status notification dispatched",
		zap.String("flight_id", flight.ID.String()),
		zap.Int("recipients", len(recipients)))
}

// recipients returns every admin and manager plus the flight's creator, each once.
func (n *statusNotifier) recipients(ctx context.Context, flight *models.Flight) ([]*models.User, error) {
	staff, err := n.users.ListByRoles(ctx, models.RoleAdmin, models.RoleManager)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}

	seen := make(map[string]bool, len(staff)+1)
	out := make([]*models.User, 0, len(staff)+1)
	for _, u := range staff {
		if u.ExternalID == "" || seen[u.ID.String()] {
			continue
		}
		seen[u.ID.String()] = true
		out = append(out, u)
	}

	if !seen[flight.CreatedBy.String()] {
		creator, err := n.users.GetByID(ctx, flight.CreatedBy)
		if err != nil {
			// The creator may have been removed; staff still get the message.
			n.logger.Warn("Failed to load flight creator",
				zap.String("flight_id", flight.ID.String()),
				zap.String("error", logging.SanitizeError(err)))
		} else if creator.ExternalID != "" {
			out = append(out, creator)
		}
	}

	return out, nil
}

// StatusChangeMessage renders the chat message sent on a status change.
func StatusChangeMessage(flight *models.Flight, oldStatus, newStatus string) string {
	return fmt.Sprintf("Изменение статуса рейса\nМаршрут: %s\nДата: %s\nСтатус: %s → %s",
		flight.Route,
		FormatDate(flight.FlightDate),
		models.FlightStatusLabel(oldStatus),
		models.FlightStatusLabel(newStatus))
}

// FormatDate renders a date as dd.mm.yyyy.
func FormatDate(d civil.Date) string {
	return fmt.Sprintf("%02d.%02d.%04d", d.Day, int(d.Month), d.Year)
}
