package models

import (
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Flight status values.
const (
	FlightStatusPlanned    = "planned"
	FlightStatusInProgress = "in_progress"
	FlightStatusDone       = "done"
	FlightStatusCancelled  = "cancelled"
)

// ValidFlightStatuses contains all valid flight status values.
var ValidFlightStatuses = []string{
	FlightStatusPlanned,
	FlightStatusInProgress,
	FlightStatusDone,
	FlightStatusCancelled,
}

// IsValidFlightStatus checks if the given status is valid.
func IsValidFlightStatus(status string) bool {
	for _, s := range ValidFlightStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// flightStatusLabels are the labels shown to end users in exports and chat messages.
var flightStatusLabels = map[string]string{
	FlightStatusPlanned:    "Запланирован",
	FlightStatusInProgress: "Выполняется",
	FlightStatusDone:       "Выполнен",
	FlightStatusCancelled:  "Отменен",
}

// FlightStatusLabel returns the localized label for a status.
// Unknown statuses are returned unchanged.
func FlightStatusLabel(status string) string {
	if label, ok := flightStatusLabels[status]; ok {
		return label
	}
	return status
}

// Flight is a scheduled or executed flight with its financials.
// Costs and Revenue are nil when redacted for the reader's role.
type Flight struct {
	ID             uuid.UUID        `json:"id"`
	FlightDate     civil.Date       `json:"flight_date"`
	Route          string           `json:"route"`
	Costs          *decimal.Decimal `json:"costs,omitempty"`
	Revenue        *decimal.Decimal `json:"revenue,omitempty"`
	Status         string           `json:"status"`
	ManagerComment string           `json:"manager_comment"`
	PilotComment   string           `json:"pilot_comment"`
	CreatedBy      uuid.UUID        `json:"created_by"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Clone returns a deep copy of the flight.
func (f *Flight) Clone() *Flight {
	c := *f
	if f.Costs != nil {
		v := *f.Costs
		c.Costs = &v
	}
	if f.Revenue != nil {
		v := *f.Revenue
		c.Revenue = &v
	}
	return &c
}

// Snapshot returns the audit representation of the flight with every field present.
func (f *Flight) Snapshot() map[string]any {
	return map[string]any{
		"id":              f.ID.String(),
		"flight_date":     f.FlightDate.String(),
		"route":           f.Route,
		"costs":           decimalString(f.Costs),
		"revenue":         decimalString(f.Revenue),
		"status":          f.Status,
		"manager_comment": f.ManagerComment,
		"pilot_comment":   f.PilotComment,
		"created_by":      f.CreatedBy.String(),
	}
}

func decimalString(d *decimal.Decimal) string {
	if d == nil {
		return decimal.Zero.String()
	}
	return d.String()
}

// FlightField names a writable or readable flight attribute.
type FlightField string

const (
	FieldFlightDate     FlightField = "flight_date"
	FieldRoute          FlightField = "route"
	FieldCosts          FlightField = "costs"
	FieldRevenue        FlightField = "revenue"
	FieldStatus         FlightField = "status"
	FieldManagerComment FlightField = "manager_comment"
	FieldPilotComment   FlightField = "pilot_comment"
)

// AllFlightFields lists every client-settable flight field.
var AllFlightFields = []FlightField{
	FieldFlightDate,
	FieldRoute,
	FieldCosts,
	FieldRevenue,
	FieldStatus,
	FieldManagerComment,
	FieldPilotComment,
}

// FlightPatch carries the fields a client asked to set. Nil means "not requested".
// created_by is absent: the server always sets it from the caller.
type FlightPatch struct {
	FlightDate     *civil.Date      `json:"flight_date,omitempty"`
	Route          *string          `json:"route,omitempty"`
	Costs          *decimal.Decimal `json:"costs,omitempty"`
	Revenue        *decimal.Decimal `json:"revenue,omitempty"`
	Status         *string          `json:"status,omitempty"`
	ManagerComment *string          `json:"manager_comment,omitempty"`
	PilotComment   *string          `json:"pilot_comment,omitempty"`
}

// Fields returns the set fields in canonical order.
func (p *FlightPatch) Fields() []FlightField {
	var fields []FlightField
	for _, f := range AllFlightFields {
		if p.Has(f) {
			fields = append(fields, f)
		}
	}
	return fields
}

// Has reports whether the field is set on the patch.
func (p *FlightPatch) Has(field FlightField) bool {
	switch field {
	case FieldFlightDate:
		return p.FlightDate != nil
	case FieldRoute:
		return p.Route != nil
	case FieldCosts:
		return p.Costs != nil
	case FieldRevenue:
		return p.Revenue != nil
	case FieldStatus:
		return p.Status != nil
	case FieldManagerComment:
		return p.ManagerComment != nil
	case FieldPilotComment:
		return p.PilotComment != nil
	}
	return false
}

// Clear unsets the field on the patch.
func (p *FlightPatch) Clear(field FlightField) {
	switch field {
	case FieldFlightDate:
		p.FlightDate = nil
	case FieldRoute:
		p.Route = nil
	case FieldCosts:
		p.Costs = nil
	case FieldRevenue:
		p.Revenue = nil
	case FieldStatus:
		p.Status = nil
	case FieldManagerComment:
		p.ManagerComment = nil
	case FieldPilotComment:
		p.PilotComment = nil
	}
}

// IsEmpty reports whether no field is set.
func (p *FlightPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// ApplyTo copies every set field onto the flight.
func (p *FlightPatch) ApplyTo(f *Flight) {
	if p.FlightDate != nil {
		f.FlightDate = *p.FlightDate
	}
	if p.Route != nil {
		f.Route = strings.TrimSpace(*p.Route)
	}
	if p.Costs != nil {
		v := *p.Costs
		f.Costs = &v
	}
	if p.Revenue != nil {
		v := *p.Revenue
		f.Revenue = &v
	}
	if p.Status != nil {
		f.Status = *p.Status
	}
	if p.ManagerComment != nil {
		f.ManagerComment = *p.ManagerComment
	}
	if p.PilotComment != nil {
		f.PilotComment = *p.PilotComment
	}
}

// SortOrder is the flight_date ordering of a listing.
type SortOrder string

const (
	SortDesc SortOrder = "desc"
	SortAsc  SortOrder = "asc"
)

// FlightFilter narrows a flight listing. Zero values mean "no constraint".
type FlightFilter struct {
	Status string
	Route  string // case-insensitive substring
	From   *civil.Date
	To     *civil.Date
	Order  SortOrder
	Limit  int
	Offset int
}
