// Package store selects the persisted-store backend. Implementations live in
// the sqlite, postgres and memory subpackages.
package store

import (
	"context"
	"io"
	"log/slog"

	"github.com/ourvoice/mgnrega-engine/mgnrega"
	"github.com/ourvoice/mgnrega-engine/store/postgres"
	"github.com/ourvoice/mgnrega-engine/store/sqlite"
)

// Backend names reported in logs.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Backend is a persisted store the process owns and must close.
type Backend interface {
	mgnrega.Store
	io.Closer
	CountRows(ctx context.Context) (int, error)
}

// Open connects to Postgres when databaseURL is set and to the SQLite file
// at sqlitePath otherwise.
func Open(ctx context.Context, databaseURL, sqlitePath string, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if databaseURL != "" {
		s, err := postgres.New(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("store backend selected", slog.String("backend", BackendPostgres))
		return s, nil
	}

	s, err := sqlite.New(sqlitePath)
	if err != nil {
		return nil, err
	}
	logger.Info("store backend selected", slog.String("backend", BackendSQLite), slog.String("path", sqlitePath))
	return s, nil
}
