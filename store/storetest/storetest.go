// Package storetest holds the behaviour every mgnrega.Store must share.
// Driver packages call Run from their own tests.
package storetest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ourvoice/mgnrega-engine/mgnrega"
)

const (
	state    = "Uttar Pradesh"
	district = "Agra"
)

// Row builds a row for state/district with the given persondays.
func Row(finYear, month string, persondays float64) mgnrega.Row {
	return mgnrega.Row{
		StateName:    state,
		DistrictName: district,
		FinYear:      finYear,
		Month:        month,
		Payload:      json.RawMessage(`{"source":"test"}`),
		Metrics: mgnrega.MetricsRecord{
			Persondays:       persondays,
			HouseholdsWorked: persondays / 10,
			WageExpenditure:  persondays * 2,
		},
		UpdatedAt: time.Date(2025, 12, 5, 8, 30, 0, 0, time.UTC),
	}
}

// Run exercises the Store contract against a fresh store from newStore.
func Run(t *testing.T, newStore func(t *testing.T) mgnrega.Store) {
	t.Run("UpsertThenGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.UpsertRow(ctx, Row("2024-2025", "Dec", 1000)))

		got, err := s.GetRow(ctx, state, district, mgnrega.PeriodKey{FinYear: "2024-2025", Month: "Dec"})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 1000.0, got.Metrics.Persondays)
		assert.Equal(t, 100.0, got.Metrics.HouseholdsWorked)
		assert.Equal(t, 2000.0, got.Metrics.WageExpenditure)
		assert.JSONEq(t, `{"source":"test"}`, string(got.Payload))
		assert.True(t, got.UpdatedAt.Equal(time.Date(2025, 12, 5, 8, 30, 0, 0, time.UTC)))
	})

	t.Run("UpsertReplacesWholeRow", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first := Row("2024-2025", "Dec", 1000)
		first.Metrics.TotalWorkers = 55
		require.NoError(t, s.UpsertRow(ctx, first))
		require.NoError(t, s.UpsertRow(ctx, Row("2024-2025", "Dec", 2500)))

		got, err := s.GetRow(ctx, state, district, mgnrega.PeriodKey{FinYear: "2024-2025", Month: "Dec"})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 2500.0, got.Metrics.Persondays)
		assert.Zero(t, got.Metrics.TotalWorkers, "last write wins for every column")
	})

	t.Run("GetRowIsExactMatch", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.UpsertRow(ctx, Row("2024-2025", "Dec", 1000)))

		for _, tc := range []struct {
			state, district string
			key             mgnrega.PeriodKey
		}{
			{"uttar pradesh", district, mgnrega.PeriodKey{FinYear: "2024-2025", Month: "Dec"}},
			{state, "agra", mgnrega.PeriodKey{FinYear: "2024-2025", Month: "Dec"}},
			{state, district, mgnrega.PeriodKey{FinYear: "2023-2024", Month: "Dec"}},
			{state, district, mgnrega.PeriodKey{FinYear: "2024-2025", Month: "Nov"}},
		} {
			got, err := s.GetRow(ctx, tc.state, tc.district, tc.key)
			require.NoError(t, err)
			assert.Nil(t, got, "%s/%s/%s must not match", tc.state, tc.district, tc.key)
		}
	})

	t.Run("RecentRowsNewestFirstAcrossFinancialYears", func(t *testing.T) {
		// GIVEN: Oct 2024 .. Mar 2025 (spanning Dec -> Jan)
		s := newStore(t)
		ctx := context.Background()
		for i, m := range []string{"Oct", "Nov", "Dec", "Jan", "Feb", "Mar"} {
			require.NoError(t, s.UpsertRow(ctx, Row("2024-2025", m, float64(i+1))))
		}
		require.NoError(t, s.UpsertRow(ctx, Row("2025-2026", "Apr", 99)))

		// WHEN: asking for 4 rows up to Feb 2025
		rows, err := s.GetRecentRows(ctx, state, district, 4, mgnrega.PeriodKey{FinYear: "2024-2025", Month: "Feb"})
		require.NoError(t, err)

		// THEN: the 4 newest months at or before Feb, newest first
		var months []string
		for _, r := range rows {
			months = append(months, r.Month)
		}
		assert.Equal(t, []string{"Feb", "Jan", "Dec", "Nov"}, months)
	})

	t.Run("RecentRowsScopedToDistrict", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		other := Row("2024-2025", "Dec", 7)
		other.DistrictName = "Aligarh"
		require.NoError(t, s.UpsertRow(ctx, other))
		require.NoError(t, s.UpsertRow(ctx, Row("2024-2025", "Dec", 1)))

		rows, err := s.GetRecentRows(ctx, state, district, 12, mgnrega.PeriodKey{FinYear: "2025-2026", Month: "Oct"})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, district, rows[0].DistrictName)
	})

	t.Run("RecentRowsZeroLimit", func(t *testing.T) {
		s := newStore(t)
		rows, err := s.GetRecentRows(context.Background(), state, district, 0, mgnrega.PeriodKey{FinYear: "2024-2025", Month: "Dec"})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("UpsertRejectsUnknownMonth", func(t *testing.T) {
		s := newStore(t)
		err := s.UpsertRow(context.Background(), Row("2024-2025", "December", 1))
		assert.ErrorIs(t, err, mgnrega.ErrUnknownMonthName)
	})
}
