package models

import (
	"github.com/golang-sql/civil"
	"github.com/shopspring/decimal"
)

// Stats periods.
const (
	StatsPeriodWeek    = "week"
	StatsPeriodMonth   = "month"
	StatsPeriodQuarter = "quarter"
	StatsPeriodYear    = "year"
	StatsPeriodAll     = "all"
)

// StatsPeriodDays maps a period to its look-back window in days. StatsPeriodAll has no window.
var StatsPeriodDays = map[string]int{
	StatsPeriodWeek:    7,
	StatsPeriodMonth:   30,
	StatsPeriodQuarter: 90,
	StatsPeriodYear:    365,
}

// DailyFlightStats aggregates completed flights for one calendar day.
type DailyFlightStats struct {
	Date    civil.Date      `json:"date"`
	Costs   decimal.Decimal `json:"costs"`
	Revenue decimal.Decimal `json:"revenue"`
	Flights int             `json:"flights"`
}

// FlightTotals aggregates completed flights over a whole period.
type FlightTotals struct {
	Flights             int             `json:"total_flights"`
	Costs               decimal.Decimal `json:"total_costs"`
	Revenue             decimal.Decimal `json:"total_revenue"`
	AvgRevenuePerFlight decimal.Decimal `json:"avg_revenue_per_flight"`
}

// FlightStats is the financial summary returned to accountants and admins.
type FlightStats struct {
	Period string              `json:"period"`
	Daily  []*DailyFlightStats `json:"daily"`
	Totals FlightTotals        `json:"totals"`
}
