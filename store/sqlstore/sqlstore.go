/*
Package sqlstore holds the SQL shared by the SQLite and PostgreSQL stores.

TABLE: mgnrega_metrics
  Keyed by (state_name, district_name, fin_year, month). Besides the key it
  carries the raw upstream payload, one numeric column per mgnrega.Field,
  updated_at, and period_ord: the calendar month ordinal of the key
  (year*12 + month-1). Trend queries filter and order on period_ord so that
  the LIMIT keeps the newest months even across a financial-year boundary.

DIALECTS:
  Only placeholders and column types differ between drivers; the queries
  are built once per dialect from mgnrega.Columns().

SEE ALSO:
  - store/sqlite/sqlite.go
  - store/postgres/postgres.go
*/
package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ourvoice/mgnrega-engine/mgnrega"
)

// Table is the persisted table name.
const Table = "mgnrega_metrics"

// Dialect captures the driver-specific parts of the SQL.
type Dialect struct {
	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder func(n int) string
	// NumericType is the column type of metric columns.
	NumericType string
	// PayloadType is the column type of the raw payload.
	PayloadType string
	// TimeType is the column type of updated_at.
	TimeType string
}

// Question is the "?" placeholder style (SQLite, MySQL).
func Question(int) string { return "?" }

// Dollar is the "$n" placeholder style (PostgreSQL).
func Dollar(n int) string { return fmt.Sprintf("$%d", n) }

var keyColumns = []string{"state_name", "district_name", "fin_year", "month"}

// Schema returns the CREATE statements.
func (d Dialect) Schema() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", Table)
	b.WriteString("\tstate_name TEXT NOT NULL,\n")
	b.WriteString("\tdistrict_name TEXT NOT NULL,\n")
	b.WriteString("\tfin_year TEXT NOT NULL,\n")
	b.WriteString("\tmonth TEXT NOT NULL,\n")
	b.WriteString("\tperiod_ord INTEGER NOT NULL,\n")
	fmt.Fprintf(&b, "\tpayload %s,\n", d.PayloadType)
	for _, c := range mgnrega.Columns() {
		fmt.Fprintf(&b, "\t%s %s NOT NULL DEFAULT 0,\n", c, d.NumericType)
	}
	fmt.Fprintf(&b, "\tupdated_at %s NOT NULL,\n", d.TimeType)
	fmt.Fprintf(&b, "\tPRIMARY KEY (%s)\n);\n", strings.Join(keyColumns, ", "))
	fmt.Fprintf(&b, "CREATE INDEX IF NOT EXISTS idx_%s_district_period ON %s (state_name, district_name, period_ord DESC);\n", Table, Table)
	return b.String()
}

func selectColumns() []string {
	cols := append([]string{}, keyColumns...)
	cols = append(cols, "payload")
	cols = append(cols, mgnrega.Columns()...)
	return append(cols, "updated_at")
}

// UpsertQuery inserts a row or replaces every non-key column of the
// existing row with the same key.
func (d Dialect) UpsertQuery() string {
	cols := append([]string{}, keyColumns...)
	cols = append(cols, "period_ord", "payload")
	cols = append(cols, mgnrega.Columns()...)
	cols = append(cols, "updated_at")

	marks := make([]string, len(cols))
	for i := range cols {
		marks[i] = d.Placeholder(i + 1)
	}

	updates := make([]string, 0, len(cols)-len(keyColumns))
	for _, c := range cols[len(keyColumns):] {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		Table,
		strings.Join(cols, ", "),
		strings.Join(marks, ", "),
		strings.Join(keyColumns, ", "),
		strings.Join(updates, ", "))
}

// GetRowQuery selects one row by exact key.
func (d Dialect) GetRowQuery() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE state_name = %s AND district_name = %s AND fin_year = %s AND month = %s",
		strings.Join(selectColumns(), ", "), Table,
		d.Placeholder(1), d.Placeholder(2), d.Placeholder(3), d.Placeholder(4))
}

// RecentRowsQuery selects up to N rows at or before a period ordinal,
// newest first. Args: state, district, period_ord, limit.
func (d Dialect) RecentRowsQuery() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE state_name = %s AND district_name = %s AND period_ord <= %s ORDER BY period_ord DESC LIMIT %s",
		strings.Join(selectColumns(), ", "), Table,
		d.Placeholder(1), d.Placeholder(2), d.Placeholder(3), d.Placeholder(4))
}

// CountQuery counts all rows.
func (d Dialect) CountQuery() string {
	return "SELECT COUNT(*) FROM " + Table
}

// UpsertArgs returns the bind arguments for UpsertQuery.
func UpsertArgs(row mgnrega.Row) ([]any, error) {
	ord, err := mgnrega.KeyOrdinal(row.Key())
	if err != nil {
		return nil, fmt.Errorf("invalid row key %s: %w", row.Key(), err)
	}

	updatedAt := row.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	var payload any
	if len(row.Payload) > 0 {
		if !json.Valid(row.Payload) {
			return nil, fmt.Errorf("invalid row payload for %s: not JSON", row.Key())
		}
		payload = string(row.Payload)
	}

	args := []any{row.StateName, row.DistrictName, row.FinYear, row.Month, ord, payload}
	m := row.Metrics.Sanitized()
	for _, f := range mgnrega.Fields {
		args = append(args, *f.Ptr(&m))
	}
	return append(args, updatedAt.UTC().Format(time.RFC3339Nano)), nil
}

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanRow reads one row in selectColumns order. NULL and non-finite numeric
// columns become 0.
func ScanRow(s Scanner) (mgnrega.Row, error) {
	var (
		row       mgnrega.Row
		payload   sql.NullString
		updatedAt any
	)
	nums := make([]sql.NullFloat64, len(mgnrega.Fields))

	dest := []any{&row.StateName, &row.DistrictName, &row.FinYear, &row.Month, &payload}
	for i := range nums {
		dest = append(dest, &nums[i])
	}
	dest = append(dest, &updatedAt)

	if err := s.Scan(dest...); err != nil {
		return mgnrega.Row{}, err
	}

	if payload.Valid && payload.String != "" {
		row.Payload = json.RawMessage(payload.String)
	}
	for i, f := range mgnrega.Fields {
		var v any
		if nums[i].Valid {
			v = nums[i].Float64
		}
		*f.Ptr(&row.Metrics) = mgnrega.SafeNum(v)
	}
	row.UpdatedAt = ParseTime(updatedAt)
	return row, nil
}

// ParseTime accepts the shapes drivers return for a timestamp column.
func ParseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		return parseTimeString(t)
	case []byte:
		return parseTimeString(string(t))
	default:
		return time.Time{}
	}
}

func parseTimeString(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
