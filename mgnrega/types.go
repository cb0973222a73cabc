/*
types.go - Core data types for district/month metrics

PURPOSE:
  Defines the fixed metrics schema, the resolver's output document, the
  persisted row shape and the trend point. Everything past the mapping
  boundary uses these types; upstream records never leak through untyped
  except as the opaque Payload.

KEY TYPES:
  MetricsRecord:         ~26 numeric indicators, always finite
  Field:                 one indicator's JSON name, column and upstream aliases
  DistrictMonthMetrics:  resolver output (fresh per call, never mutated)
  Row:                   one persisted (state, district, fin_year, month) row
  TrendPoint:            one month of the 12-month chart

INVARIANTS:
  - No NaN/Inf ever leaves the mapper or the store (see SafeNum).
  - Stale is true only when a document was served from the ephemeral cache.

SEE ALSO:
  - mapper.go: raw record -> MetricsRecord
  - period.go: (month, year) -> PeriodKey
  - resolver.go: builds DistrictMonthMetrics
*/
package mgnrega

import (
	"encoding/json"
	"time"
)

// =============================================================================
// METRICS RECORD
// =============================================================================

// MetricsRecord is the fixed set of indicators published per district/month.
type MetricsRecord struct {
	Persondays                    float64 `json:"persondays"`
	HouseholdsWorked              float64 `json:"householdsWorked"`
	AvgDaysPerHH                  float64 `json:"avgDaysPerHH"`
	WageExpenditure               float64 `json:"wageExpenditure"`
	TotalWorkers                  float64 `json:"totalWorkers"`
	WomenPersondays               float64 `json:"womenPersondays"`
	AvgWageRate                   float64 `json:"avgWageRate"`
	NumCompletedWorks             float64 `json:"numCompletedWorks"`
	NumOngoingWorks               float64 `json:"numOngoingWorks"`
	SCPersondays                  float64 `json:"scPersondays"`
	STPersondays                  float64 `json:"stPersondays"`
	TotalExpenditure              float64 `json:"totalExpenditure"`
	TotalAdminExpenditure         float64 `json:"totalAdminExpenditure"`
	TotalJobCardsIssued           float64 `json:"totalJobCardsIssued"`
	TotalActiveJobCards           float64 `json:"totalActiveJobCards"`
	TotalActiveWorkers            float64 `json:"totalActiveWorkers"`
	TotalWorksTakenup             float64 `json:"totalWorksTakenup"`
	TotalHHsCompleted100Days      float64 `json:"totalHhsCompleted100Days"`
	MaterialAndSkilledWages       float64 `json:"materialAndSkilledWages"`
	DifferentlyAbledPersonsWorked float64 `json:"differentlyAbledPersonsWorked"`
	PercentPaymentsWithin15Days   float64 `json:"percentPaymentsWithin15Days"`
	PercentNRMExpenditure         float64 `json:"percentNrmExpenditure"`
	ApprovedLabourBudget          float64 `json:"approvedLabourBudget"`
	TotalIndividualsWorked        float64 `json:"totalIndividualsWorked"`
	PercentCategoryBWorks         float64 `json:"percentCategoryBWorks"`
	PercentExpenditureAgriAllied  float64 `json:"percentExpenditureAgriAllied"`
}

// Sanitized returns a copy with every field passed through SafeNum.
func (m MetricsRecord) Sanitized() MetricsRecord {
	out := m
	for _, f := range Fields {
		p := f.ref(&out)
		*p = SafeNum(*p)
	}
	return out
}

// Value returns the value of the named field (JSON name) and whether the
// field exists.
func (m *MetricsRecord) Value(name string) (float64, bool) {
	f, ok := FieldByName(name)
	if !ok {
		return 0, false
	}
	return *f.ref(m), true
}

// =============================================================================
// FIELD TABLE - drives the mapper aliases and the store columns
// =============================================================================

// Field describes one indicator of MetricsRecord.
type Field struct {
	Name    string   // JSON name, e.g. "persondays"
	Column  string   // persisted column, e.g. "persondays_of_central_liability_so_far"
	Aliases []string // default upstream key candidates, in priority order

	ref func(*MetricsRecord) *float64
}

// Ptr returns a pointer to this field inside m.
func (f Field) Ptr(m *MetricsRecord) *float64 { return f.ref(m) }

// Fields lists every indicator in column order.
var Fields = []Field{
	{"persondays", "persondays_of_central_liability_so_far",
		[]string{"persondays_of_central_liability_so_far", "persondays_generated", "persondays", "no_of_persondays_generated"},
		func(m *MetricsRecord) *float64 { return &m.Persondays }},
	{"householdsWorked", "total_households_worked",
		[]string{"total_households_worked", "no_of_households_worked", "households_worked"},
		func(m *MetricsRecord) *float64 { return &m.HouseholdsWorked }},
	{"avgDaysPerHH", "avg_days_of_employment_per_household",
		[]string{"avg_days_of_employment_per_household", "avg_days_per_household", "average_days_of_employment_provided_per_household"},
		func(m *MetricsRecord) *float64 { return &m.AvgDaysPerHH }},
	{"wageExpenditure", "wages",
		[]string{"wages", "wage_expenditure", "total_wage_expenditure"},
		func(m *MetricsRecord) *float64 { return &m.WageExpenditure }},
	{"totalWorkers", "total_workers",
		[]string{"total_workers", "total_no_of_workers"},
		func(m *MetricsRecord) *float64 { return &m.TotalWorkers }},
	{"womenPersondays", "women_persondays",
		[]string{"women_persondays", "women_persondays_generated"},
		func(m *MetricsRecord) *float64 { return &m.WomenPersondays }},
	{"avgWageRate", "avg_wage_rate_per_day_per_person",
		[]string{"avg_wage_rate_per_day_per_person", "average_wage_rate_per_day_per_person"},
		func(m *MetricsRecord) *float64 { return &m.AvgWageRate }},
	{"numCompletedWorks", "num_completed_works",
		[]string{"num_completed_works", "number_of_completed_works"},
		func(m *MetricsRecord) *float64 { return &m.NumCompletedWorks }},
	{"numOngoingWorks", "num_ongoing_works",
		[]string{"num_ongoing_works", "number_of_ongoing_works"},
		func(m *MetricsRecord) *float64 { return &m.NumOngoingWorks }},
	{"scPersondays", "sc_persondays",
		[]string{"sc_persondays", "sc_persondays_generated"},
		func(m *MetricsRecord) *float64 { return &m.SCPersondays }},
	{"stPersondays", "st_persondays",
		[]string{"st_persondays", "st_persondays_generated"},
		func(m *MetricsRecord) *float64 { return &m.STPersondays }},
	{"totalExpenditure", "total_expenditure",
		[]string{"total_expenditure", "total_exp"},
		func(m *MetricsRecord) *float64 { return &m.TotalExpenditure }},
	{"totalAdminExpenditure", "total_admin_expenditure",
		[]string{"total_admin_expenditure", "total_adm_expenditure"},
		func(m *MetricsRecord) *float64 { return &m.TotalAdminExpenditure }},
	{"totalJobCardsIssued", "total_job_cards_issued",
		[]string{"total_job_cards_issued", "total_no_of_jobcards_issued"},
		func(m *MetricsRecord) *float64 { return &m.TotalJobCardsIssued }},
	{"totalActiveJobCards", "total_active_job_cards",
		[]string{"total_active_job_cards", "total_no_of_active_job_cards"},
		func(m *MetricsRecord) *float64 { return &m.TotalActiveJobCards }},
	{"totalActiveWorkers", "total_active_workers",
		[]string{"total_active_workers", "total_no_of_active_workers"},
		func(m *MetricsRecord) *float64 { return &m.TotalActiveWorkers }},
	{"totalWorksTakenup", "total_works_takenup",
		[]string{"total_works_takenup", "total_no_of_works_takenup"},
		func(m *MetricsRecord) *float64 { return &m.TotalWorksTakenup }},
	{"totalHhsCompleted100Days", "total_hhs_completed_100_days",
		[]string{"total_hhs_completed_100_days", "total_no_of_hhs_completed_100_days_of_wage_employment"},
		func(m *MetricsRecord) *float64 { return &m.TotalHHsCompleted100Days }},
	{"materialAndSkilledWages", "material_and_skilled_wages",
		[]string{"material_and_skilled_wages", "material_and_skilled_wages_lakhs"},
		func(m *MetricsRecord) *float64 { return &m.MaterialAndSkilledWages }},
	{"differentlyAbledPersonsWorked", "differently_abled_persons_worked",
		[]string{"differently_abled_persons_worked"},
		func(m *MetricsRecord) *float64 { return &m.DifferentlyAbledPersonsWorked }},
	{"percentPaymentsWithin15Days", "percent_payments_within_15_days",
		[]string{"percent_payments_within_15_days", "percentage_payments_generated_within_15_days"},
		func(m *MetricsRecord) *float64 { return &m.PercentPaymentsWithin15Days }},
	{"percentNrmExpenditure", "percent_nrm_expenditure",
		[]string{"percent_nrm_expenditure", "percent_of_nrm_expenditure"},
		func(m *MetricsRecord) *float64 { return &m.PercentNRMExpenditure }},
	{"approvedLabourBudget", "approved_labour_budget",
		[]string{"approved_labour_budget"},
		func(m *MetricsRecord) *float64 { return &m.ApprovedLabourBudget }},
	{"totalIndividualsWorked", "total_individuals_worked",
		[]string{"total_individuals_worked", "total_no_of_individuals_worked"},
		func(m *MetricsRecord) *float64 { return &m.TotalIndividualsWorked }},
	{"percentCategoryBWorks", "percent_category_b_works",
		[]string{"percent_category_b_works", "percent_of_category_b_works"},
		func(m *MetricsRecord) *float64 { return &m.PercentCategoryBWorks }},
	{"percentExpenditureAgriAllied", "percent_expenditure_agri_allied",
		[]string{"percent_expenditure_agri_allied", "percent_of_expenditure_on_agriculture_allied_works"},
		func(m *MetricsRecord) *float64 { return &m.PercentExpenditureAgriAllied }},
}

// FieldByName finds a field by its JSON name.
func FieldByName(name string) (Field, bool) {
	for _, f := range Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Columns returns the persisted column names in field order.
func Columns() []string {
	cols := make([]string, len(Fields))
	for i, f := range Fields {
		cols[i] = f.Column
	}
	return cols
}

// =============================================================================
// RESOLVER OUTPUT
// =============================================================================

// DistrictMonthMetrics is what the resolver returns for one district/month.
type DistrictMonthMetrics struct {
	State          string          `json:"state"`
	District       string          `json:"district"`
	Month          int             `json:"month"`
	Year           int             `json:"year"`
	Cards          MetricsRecord   `json:"cards"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Stale          bool            `json:"stale"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	UpdatedAtHuman string          `json:"updatedAtHuman"`
}

// =============================================================================
// PERSISTED ROW
// =============================================================================

// Row is one persisted (state, district, fin_year, month) record.
// Writes with the same key replace the row entirely.
type Row struct {
	StateName    string
	DistrictName string
	FinYear      string // "2024-2025"
	Month        string // "Dec"
	Payload      json.RawMessage
	Metrics      MetricsRecord
	UpdatedAt    time.Time
}

// Key returns the row's period key.
func (r Row) Key() PeriodKey {
	return PeriodKey{FinYear: r.FinYear, Month: r.Month}
}

// =============================================================================
// TREND
// =============================================================================

// TrendPoint is one month of history for the trend chart.
type TrendPoint struct {
	Year             int     `json:"year"`  // calendar year the month falls in
	Month            int     `json:"month"` // 1-12
	FinYear          string  `json:"finYear"`
	Persondays       float64 `json:"persondays"`
	HouseholdsWorked float64 `json:"householdsWorked"`
	WageExpenditure  float64 `json:"wageExpenditure"`
}

// Query is the filter sent to the upstream open-data source.
type Query struct {
	State    string
	District string
	Month    int
	Year     int
}
