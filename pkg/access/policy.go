// Package access is the single source of truth for role-based permissions.
//
// Services consult this package instead of re-implementing role checks.
// All functions are pure: they take a role and return a decision.
//
// Unknown or empty roles fail closed. They may read flights (with the same
// redaction as a pilot) and nothing else.
package access

import (
	"github.com/aviaops/flightops/pkg/apperrors"
	"github.com/aviaops/flightops/pkg/models"
)

// Operation is a permission-checked action.
type Operation string

const (
	OpListFlights   Operation = "list_flights"
	OpCreateFlight  Operation = "create_flight"
	OpUpdateFlight  Operation = "update_flight"
	OpDeleteFlight  Operation = "delete_flight"
	OpExportFlights Operation = "export_flights"
	OpViewStats     Operation = "view_stats"
	OpListUsers     Operation = "list_users"
	OpChangeRole    Operation = "change_role"
	OpViewAudit     Operation = "view_audit"
)

// operationRoles lists the roles allowed to perform each operation.
// OpListFlights is absent because every caller may read flights.
var operationRoles = map[Operation][]string{
	OpCreateFlight:  {models.RoleManager, models.RoleAdmin},
	OpUpdateFlight:  {models.RolePilot, models.RoleManager, models.RoleAccountant, models.RoleAdmin},
	OpDeleteFlight:  {models.RoleAdmin},
	OpExportFlights: {models.RoleAdmin, models.RoleAccountant, models.RoleManager},
	OpViewStats:     {models.RoleAdmin, models.RoleAccountant},
	OpListUsers:     {models.RoleAdmin},
	OpChangeRole:    {models.RoleAdmin},
	OpViewAudit:     {models.RoleAdmin},
}

// writableFields is the update matrix. Roles not listed may write nothing.
var writableFields = map[string][]models.FlightField{
	models.RoleAdmin: models.AllFlightFields,
	models.RoleManager: {
		models.FieldFlightDate,
		models.FieldRoute,
		models.FieldStatus,
		models.FieldManagerComment,
		models.FieldPilotComment,
	},
	models.RoleAccountant: {models.FieldCosts, models.FieldRevenue},
	models.RolePilot:      {models.FieldPilotComment, models.FieldStatus},
}

// pilotStatuses are the only statuses a pilot may move a flight into.
var pilotStatuses = map[string]bool{
	models.FlightStatusInProgress: true,
	models.FlightStatusDone:       true,
}

// Allowed reports whether the role may perform the operation at all.
func Allowed(role string, op Operation) bool {
	if op == OpListFlights {
		return true
	}
	for _, r := range operationRoles[op] {
		if r == role {
			return true
		}
	}
	return false
}

// Require returns a permission error unless the role may perform the operation.
func Require(role string, op Operation) error {
	if Allowed(role, op) {
		return nil
	}
	return apperrors.Forbidden("role %q may not %s", role, humanize(op))
}

func humanize(op Operation) string {
	switch op {
	case OpCreateFlight:
		return "create flights"
	case OpUpdateFlight:
		return "edit flights"
	case OpDeleteFlight:
		return "delete flights"
	case OpExportFlights:
		return "export flights"
	case OpViewStats:
		return "view statistics"
	case OpListUsers:
		return "list users"
	case OpChangeRole:
		return "change roles"
	case OpViewAudit:
		return "view the audit log"
	}
	return string(op)
}

// CanSeeFinancials reports whether costs and revenue are visible to the role.
func CanSeeFinancials(role string) bool {
	return role == models.RoleAccountant || role == models.RoleAdmin
}

// ReadableFlightFields returns the flight fields the role may see.
func ReadableFlightFields(role string) []models.FlightField {
	if CanSeeFinancials(role) {
		return models.AllFlightFields
	}
	fields := make([]models.FlightField, 0, len(models.AllFlightFields))
	for _, f := range models.AllFlightFields {
		if f != models.FieldCosts && f != models.FieldRevenue {
			fields = append(fields, f)
		}
	}
	return fields
}

// RedactFlight returns a copy of the flight containing only what the role may see.
// The input is never modified.
func RedactFlight(role string, f *models.Flight) *models.Flight {
	out := f.Clone()
	if !CanSeeFinancials(role) {
		out.Costs = nil
		out.Revenue = nil
	}
	return out
}

// RedactFlights applies RedactFlight to every flight.
func RedactFlights(role string, flights []*models.Flight) []*models.Flight {
	out := make([]*models.Flight, 0, len(flights))
	for _, f := range flights {
		out = append(out, RedactFlight(role, f))
	}
	return out
}

// WritableFlightFields returns the flight fields the role may set.
func WritableFlightFields(role string) []models.FlightField {
	return writableFields[role]
}

// CanWriteField reports whether the role may set the field.
func CanWriteField(role string, field models.FlightField) bool {
	for _, f := range writableFields[role] {
		if f == field {
			return true
		}
	}
	return false
}

// FilterFlightPatch strips every field the role may not set and returns the
// filtered patch together with the dropped fields. Stripping is never an error.
// A pilot's status change into anything but in_progress or done is dropped too.
func FilterFlightPatch(role string, patch models.FlightPatch) (models.FlightPatch, []models.FlightField) {
	filtered := patch
	var dropped []models.FlightField

	for _, field := range patch.Fields() {
		if !CanWriteField(role, field) {
			filtered.Clear(field)
			dropped = append(dropped, field)
		}
	}

	if role == models.RolePilot && filtered.Status != nil && !pilotStatuses[*filtered.Status] {
		filtered.Status = nil
		dropped = append(dropped, models.FieldStatus)
	}

	return filtered, dropped
}
