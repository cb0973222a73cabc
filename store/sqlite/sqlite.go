/*
Package sqlite provides a SQLite-backed implementation of mgnrega.Store.

PURPOSE:
  Durable source of truth for district/month metrics. The resolver reads it
  first and trusts it; rows arrive either from upstream write-back or from
  the seed importer (cmd/seed).

TABLE:
  mgnrega_metrics, one row per (state_name, district_name, fin_year, month).
  See store/sqlstore for the column list and the period_ord ordering column.

UPSERT:
  Re-writing a key replaces the whole row (last write wins, no versions).

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite allows a single writer; the
  mutex keeps concurrent write-backs from surfacing SQLITE_BUSY.

WAL MODE:
  Opened with WAL so readers don't block behind a write-back.

USAGE:
  store, err := sqlite.New("./data/mgnrega.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  resolver := mgnrega.NewResolver(store, cache, source)

MIGRATION:
  Schema is auto-created on New().

SEE ALSO:
  - mgnrega/store.go: Store interface
  - store/postgres: the same contract on PostgreSQL
  - store/memory: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ourvoice/mgnrega-engine/mgnrega"
	"github.com/ourvoice/mgnrega-engine/store/sqlstore"
)

var dialect = sqlstore.Dialect{
	Placeholder: sqlstore.Question,
	NumericType: "REAL",
	PayloadType: "TEXT",
	TimeType:    "TEXT",
}

// Store implements mgnrega.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	upsertSQL string
	getSQL    string
	recentSQL string
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	store := &Store{
		db:        db,
		upsertSQL: dialect.UpsertQuery(),
		getSQL:    dialect.GetRowQuery(),
		recentSQL: dialect.RecentRowsQuery(),
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(dialect.Schema())
	return err
}

// =============================================================================
// mgnrega.Store
// =============================================================================

// UpsertRow inserts or replaces the row with the same key.
func (s *Store) UpsertRow(ctx context.Context, row mgnrega.Row) error {
	args, err := sqlstore.UpsertArgs(row)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, s.upsertSQL, args...); err != nil {
		return fmt.Errorf("failed to upsert row %s: %w", row.Key(), err)
	}
	return nil
}

// GetRow returns the exact-match row, or nil if none exists.
func (s *Store) GetRow(ctx context.Context, state, district string, key mgnrega.PeriodKey) (*mgnrega.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

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

	s.mu.RLock()
	defer s.mu.RUnlock()

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
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, dialect.CountQuery()).Scan(&n)
	return n, err
}
