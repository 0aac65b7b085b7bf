package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/aviaops/flightops/pkg/access"
	"github.com/aviaops/flightops/pkg/audit"
	"github.com/aviaops/flightops/pkg/auth"
	"github.com/aviaops/flightops/pkg/models"
	"github.com/aviaops/flightops/pkg/services"
)

// FlightsHandler handles flight HTTP requests.
type FlightsHandler struct {
	flightService services.FlightService
	auditor       *audit.SecurityAuditor
	errors        errorWriter
	logger        *zap.Logger
}

// NewFlightsHandler creates a new flights handler. auditor may be nil.
func NewFlightsHandler(flightService services.FlightService, auditor *audit.SecurityAuditor, logger *zap.Logger) *FlightsHandler {
	return &FlightsHandler{
		flightService: flightService,
		auditor:       auditor,
		errors:        errorWriter{auditor: auditor, logger: logger},
		logger:        logger,
	}
}

// RegisterRoutes registers the flights handler's routes on the given mux.
func (h *FlightsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, actors *ActorLoader) {
	mux.HandleFunc("GET /api/flights", authenticated(authMiddleware, actors, h.List))
	mux.HandleFunc("POST /api/flights", authenticated(authMiddleware, actors, h.Create))
	mux.HandleFunc("GET /api/flights/export", authenticated(authMiddleware, actors, h.Export))
	mux.HandleFunc("GET /api/flights/stats", authenticated(authMiddleware, actors, h.Stats))
	mux.HandleFunc("PATCH /api/flights/{id}", authenticated(authMiddleware, actors, h.Update))
	mux.HandleFunc("DELETE /api/flights/{id}", authenticated(authMiddleware, actors, h.Delete))
}

// List handles GET /api/flights
func (h *FlightsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	filter, err := parseFlightFilter(r)
	if err != nil {
		h.errors.write(w, r, err, string(access.OpListFlights))
		return
	}

	flights, err := h.flightService.List(r.Context(), actor, filter)
	if err != nil {
		h.errors.write(w, r, err, string(access.OpListFlights))
		return
	}

	if err := writeData(w, http.StatusOK, flights); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/flights
func (h *FlightsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var input models.FlightPatch
	if err := decodeJSON(w, r, &input); err != nil {
		h.errors.write(w, r, err, string(access.OpCreateFlight))
		return
	}
	h.scan(r, input)

	flight, err := h.flightService.Create(r.Context(), actor, input)
	if err != nil {
		h.errors.write(w, r, err, string(access.OpCreateFlight))
		return
	}

	if err := writeData(w, http.StatusCreated, flight); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PATCH /api/flights/{id}
// Fields the caller's role may not set are ignored.
func (h *FlightsHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseFlightID(w, r, h.logger)
	if !ok {
		return
	}

	var patch models.FlightPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.errors.write(w, r, err, string(access.OpUpdateFlight))
		return
	}
	h.scan(r, patch)

	flight, err := h.flightService.Update(r.Context(), actor, id, patch)
	if err != nil {
		h.errors.write(w, r, err, string(access.OpUpdateFlight))
		return
	}

	if err := writeData(w, http.StatusOK, flight); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/flights/{id}
func (h *FlightsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseFlightID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.flightService.Delete(r.Context(), actor, id); err != nil {
		h.errors.write(w, r, err, string(access.OpDeleteFlight))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /api/flights/export
// Accepts the same query parameters as List.
func (h *FlightsHandler) Export(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	filter, err := parseFlightFilter(r)
	if err != nil {
		h.errors.write(w, r, err, string(access.OpExportFlights))
		return
	}

	data, err := h.flightService.Export(r.Context(), actor, filter)
	if err != nil {
		h.errors.write(w, r, err, string(access.OpExportFlights))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", contentDisposition("flights-export.csv"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("Failed to write export", zap.Error(err))
	}
}

// Stats handles GET /api/flights/stats?period=week|month|quarter|year|all
func (h *FlightsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	stats, err := h.flightService.Stats(r.Context(), actor, r.URL.Query().Get("period"))
	if err != nil {
		h.errors.write(w, r, err, string(access.OpViewStats))
		return
	}

	if err := writeData(w, http.StatusOK, stats); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// scan flags injection-looking free text. The request proceeds either way.
func (h *FlightsHandler) scan(r *http.Request, p models.FlightPatch) {
	if h.auditor == nil {
		return
	}
	fields := make(map[string]string, 3)
	if p.Route != nil {
		fields[string(models.FieldRoute)] = *p.Route
	}
	if p.ManagerComment != nil {
		fields[string(models.FieldManagerComment)] = *p.ManagerComment
	}
	if p.PilotComment != nil {
		fields[string(models.FieldPilotComment)] = *p.PilotComment
	}
	if len(fields) > 0 {
		h.auditor.ScanFreeText(r.Context(), fields, clientIP(r))
	}
}
