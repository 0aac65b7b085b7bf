package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aviaops/flightops/pkg/apperrors"
	"github.com/aviaops/flightops/pkg/models"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// ParseFlightID extracts and validates the flight ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseFlightID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_flight_id", "Invalid flight ID format", logger)
}

// ParseUserID extracts and validates the user ID from the request path.
// Expects path parameter: id
func ParseUserID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_user_id", "Invalid user ID format", logger)
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}

// decodeJSON reads a bounded JSON body into dst. Unknown fields are ignored,
// so client-sent identity fields never reach the services.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.Validation("request body too large")
		}
		return apperrors.Validation("invalid request body: %s", err.Error())
	}
	return nil
}

// parseFlightFilter reads the listing query parameters:
// status, q (route substring), from, to (YYYY-MM-DD), order, limit, offset.
func parseFlightFilter(r *http.Request) (models.FlightFilter, error) {
	q := r.URL.Query()

	filter := models.FlightFilter{
		Route: strings.TrimSpace(q.Get("q")),
		Order: models.SortOrder(strings.ToLower(q.Get("order"))),
	}
	if status := q.Get("status"); status != "" && status != "all" {
		filter.Status = status
	}

	var err error
	if filter.From, err = parseDateParam(q.Get("from"), "from"); err != nil {
		return filter, err
	}
	if filter.To, err = parseDateParam(q.Get("to"), "to"); err != nil {
		return filter, err
	}
	if filter.Limit, err = parseIntParam(q.Get("limit"), "limit", 0); err != nil {
		return filter, err
	}
	if filter.Offset, err = parseIntParam(q.Get("offset"), "offset", 0); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseDateParam(value, name string) (*civil.Date, error) {
	if value == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(value)
	if err != nil {
		return nil, apperrors.Validation("%s must be a date in YYYY-MM-DD format", name)
	}
	return &d, nil
}

func parseIntParam(value, name string, def int) (int, error) {
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, apperrors.Validation("%s must be an integer", name)
	}
	return n, nil
}

// clientIP returns the first X-Forwarded-For hop, or the peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// contentDisposition builds an attachment header value for a download.
func contentDisposition(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}
