package sqlite

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ourvoice/mgnrega-engine/mgnrega"
	"github.com/ourvoice/mgnrega-engine/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err, "Failed to create store")
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) mgnrega.Store { return newTestStore(t) })
}

func TestSQLiteStore_NonFiniteAndNullColumnsReadAsZero(t *testing.T) {
	// GIVEN: a row written with a NaN metric and a column later set to NULL by hand
	store := newTestStore(t)
	ctx := context.Background()

	row := storetest.Row("2024-2025", "Jan", 10)
	row.Metrics.AvgWageRate = math.NaN()
	require.NoError(t, store.UpsertRow(ctx, row))

	_, err := store.db.Exec(`UPDATE mgnrega_metrics SET payload = NULL`)
	require.NoError(t, err)

	// WHEN
	got, err := store.GetRow(ctx, row.StateName, row.DistrictName, row.Key())
	require.NoError(t, err)
	require.NotNil(t, got)

	// THEN
	assert.Zero(t, got.Metrics.AvgWageRate)
	assert.Nil(t, got.Payload)
	assert.Equal(t, 10.0, got.Metrics.Persondays)
}

func TestSQLiteStore_CountRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertRow(ctx, storetest.Row("2024-2025", "Jan", 1)))
	require.NoError(t, store.UpsertRow(ctx, storetest.Row("2024-2025", "Feb", 1)))
	require.NoError(t, store.UpsertRow(ctx, storetest.Row("2024-2025", "Feb", 2)))

	n, err := store.CountRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
