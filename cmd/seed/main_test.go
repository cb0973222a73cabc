package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ourvoice/mgnrega-engine/mgnrega"
	"github.com/ourvoice/mgnrega-engine/store/memory"
)

var (
	seedNow     = time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	discardLogs = slog.New(slog.NewTextHandler(io.Discard, nil))
)

const sampleCSV = `fin_year,month,state_code,state_name,district_code,district_name,persondays_of_central_liability_so_far,total_households_worked,wages,remarks,payload
2024-2025,Dec,9,Uttar Pradesh,1,Agra,125000,4100,1500.50,NA,{}
2024-2025,Jan,9,Uttar Pradesh,2,Aligarh,98000,3000,,NA,{}
2024-2025,Foo,9,Uttar Pradesh,3,Allahabad,1,1,1,NA,{}
20-2025,Feb,9,Uttar Pradesh,4,Amethi,1,1,1,NA,{}
2024-2025,Mar,9,,5,Amroha,1,1,1,NA,{}
`

func TestImportCSV(t *testing.T) {
	// GIVEN a CSV with two good rows and three malformed ones
	st := memory.New()

	// WHEN it is imported
	stats, err := importCSV(context.Background(), strings.NewReader(sampleCSV), st, mgnrega.NewMapper(nil), seedNow, discardLogs)

	// THEN good rows are stored and bad ones are counted
	require.NoError(t, err)
	assert.Equal(t, importStats{Imported: 2, Skipped: 3}, stats)

	row, err := st.GetRow(context.Background(), "Uttar Pradesh", "Agra", mgnrega.PeriodKey{FinYear: "2024-2025", Month: "Dec"})
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, 125000.0, row.Metrics.Persondays)
	assert.Equal(t, 4100.0, row.Metrics.HouseholdsWorked)
	assert.Equal(t, 1500.50, row.Metrics.WageExpenditure)
	assert.True(t, row.UpdatedAt.Equal(seedNow))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(row.Payload, &payload))
	assert.Equal(t, "Agra", payload["district_name"])
	assert.NotContains(t, payload, "payload")

	aligarh, err := st.GetRow(context.Background(), "Uttar Pradesh", "Aligarh", mgnrega.PeriodKey{FinYear: "2024-2025", Month: "Jan"})
	require.NoError(t, err)
	require.NotNil(t, aligarh)
	assert.Zero(t, aligarh.Metrics.WageExpenditure)
}

func TestImportCSV_MissingColumn(t *testing.T) {
	_, err := importCSV(context.Background(), strings.NewReader("fin_year,month,district_name\n"), memory.New(), mgnrega.NewMapper(nil), seedNow, discardLogs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state_name")
}

func TestImportCSV_ReimportReplaces(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	_, err := importCSV(ctx, strings.NewReader(sampleCSV), st, mgnrega.NewMapper(nil), seedNow, discardLogs)
	require.NoError(t, err)
	_, err = importCSV(ctx, strings.NewReader(sampleCSV), st, mgnrega.NewMapper(nil), seedNow, discardLogs)
	require.NoError(t, err)

	n, err := st.CountRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
