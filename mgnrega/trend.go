package mgnrega

import (
	"context"
	"log/slog"
	"sort"

	"github.com/ourvoice/mgnrega-engine/logging"
)

// DefaultTrendMonths is the history length shown on the district page.
const DefaultTrendMonths = 12

// Trend returns up to monthsBack persisted months at or before the current
// month of uptoYear, oldest first.
//
// Only the persisted store is consulted. A month fetched from upstream shows
// up here once its write-back upsert has landed.
func (r *Resolver) Trend(ctx context.Context, state, district string, uptoYear, monthsBack int) ([]TrendPoint, error) {
	points := []TrendPoint{}
	if monthsBack <= 0 {
		return points, nil
	}

	upto, err := ToPeriodKey(int(r.now().Month()), uptoYear)
	if err != nil {
		return nil, err
	}

	rows, err := r.store.GetRecentRows(ctx, state, district, monthsBack, upto)
	if err != nil {
		logging.LogError(r.logger, "trend fetch failed", err,
			slog.String("state", state),
			slog.String("district", district),
			slog.String("upto", upto.String()))
		return points, nil
	}

	return TrendFromRows(rows), nil
}

// TrendFromRows reshapes persisted rows into chart points. Rows with an
// unrecognized month name or a malformed financial year are dropped. The
// result is sorted by calendar (year, month) regardless of input order.
func TrendFromRows(rows []Row) []TrendPoint {
	points := make([]TrendPoint, 0, len(rows))
	for _, row := range rows {
		month, _ := MonthNumber(row.Month)
		if month == 0 {
			continue
		}
		year, _ := CalendarYear(row.FinYear, month)
		if year == 0 {
			continue
		}

		m := row.Metrics.Sanitized()
		points = append(points, TrendPoint{
			Year:             year,
			Month:            month,
			FinYear:          row.FinYear,
			Persondays:       m.Persondays,
			HouseholdsWorked: m.HouseholdsWorked,
			WageExpenditure:  m.WageExpenditure,
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return PeriodOrdinal(points[i].Year, points[i].Month) < PeriodOrdinal(points[j].Year, points[j].Month)
	})
	return points
}
