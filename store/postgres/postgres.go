// Package postgres implements mgnrega.Store on PostgreSQL via lib/pq.
//
// The table layout matches store/sqlite (see store/sqlstore) so a Supabase
// project, or any Postgres, can back the service by setting DATABASE_URL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/ourvoice/mgnrega-engine/mgnrega"
	"github.com/ourvoice/mgnrega-engine/store/sqlstore"
)

var dialect = sqlstore.Dialect{
	Placeholder: sqlstore.Dollar,
	NumericType: "DOUBLE PRECISION",
	PayloadType: "JSONB",
	TimeType:    "TIMESTAMPTZ",
}

// Store implements mgnrega.Store using PostgreSQL.
type Store struct {
	db *sql.DB

	upsertSQL string
	getSQL    string
	recentSQL string
}

// New opens dsn and creates the table if missing.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return newStore(ctx, db)
}

func newStore(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{
		db:        db,
		upsertSQL: dialect.UpsertQuery(),
		getSQL:    dialect.GetRowQuery(),
		recentSQL: dialect.RecentRowsQuery(),
	}
	if _, err := db.ExecContext(ctx, dialect.Schema()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertRow inserts or replaces the row with the same key.
func (s *Store) UpsertRow(ctx context.Context, row mgnrega.Row) error {
	args, err := sqlstore.UpsertArgs(row)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.upsertSQL, args...); err != nil {
		return fmt.Errorf("failed to upsert row %s: %w", row.Key(), err)
	}
	return nil
}

// GetRow returns the exact-match row, or nil if none exists.
func (s *Store) GetRow(ctx context.Context, state, district string, key mgnrega.PeriodKey) (*mgnrega.Row, error) {
	row, err := sqlstore.ScanRow(s.db.QueryRowContext(ctx, s.getSQL, state, district, key.FinYear, key.Month))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get row: %w", err)
	}
	return &row, nil
}

// GetRecentRows returns up to limit rows at or before upto, newest first.
func (s *Store) GetRecentRows(ctx context.Context, state, district string, limit int, upto mgnrega.PeriodKey) ([]mgnrega.Row, error) {
	if limit <= 0 {
		return nil, nil
	}
	ord, err := mgnrega.KeyOrdinal(upto)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.recentSQL, state, district, ord, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent rows: %w", err)
	}
	defer rows.Close()

	var out []mgnrega.Row
	for rows.Next() {
		row, err := sqlstore.ScanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// CountRows returns the number of stored rows.
func (s *Store) CountRows(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, dialect.CountQuery()).Scan(&n)
	return n, err
}
