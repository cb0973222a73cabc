/*
main.go - CSV seed importer

PURPOSE:
  Loads a published MGNREGA CSV export into the persisted store so the
  server can answer from tier 1 without touching the upstream API.

INPUT:
  A header row naming the columns, then one row per district/month:
    fin_year, month, state_name, district_name, <metric columns>, ...
  Metric columns are matched through the same alias table the resolver
  uses for upstream records, so any header the API would send works here.
  The whole CSV row (minus an empty "payload" column) is kept as the
  stored payload.

COMMAND-LINE FLAGS:
  -csv       CSV file to import (required)
  -db        SQLite database path (overrides DB_PATH)
  -aliases   Optional alias override file (overrides FIELD_ALIASES_FILE)

  DATABASE_URL, when set, selects Postgres instead of SQLite.

EXAMPLES:
  ./seed -csv data/mgnrega_up_2020_2026.csv -db mgnrega.db
*/
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ourvoice/mgnrega-engine/config"
	"github.com/ourvoice/mgnrega-engine/logging"
	"github.com/ourvoice/mgnrega-engine/mgnrega"
	"github.com/ourvoice/mgnrega-engine/store"
)

var requiredColumns = []string{"fin_year", "month", "state_name", "district_name"}

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return err
	}

	csvPath := flag.String("csv", "", "CSV file to import")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	aliasPath := flag.String("aliases", cfg.FieldAliasesFile, "field alias override file")
	flag.Parse()

	logger := logging.NewStructuredLogger(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	if *csvPath == "" {
		return logging.Fatal(logger, "missing -csv", errors.New("no input file"))
	}

	mapper := mgnrega.NewMapper(nil)
	if *aliasPath != "" {
		aliases, err := mgnrega.LoadAliases(*aliasPath)
		if err != nil {
			return logging.Fatal(logger, "failed to load field aliases", err)
		}
		mapper = mgnrega.NewMapper(aliases)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.DatabaseURL, *dbPath, logger)
	if err != nil {
		return logging.Fatal(logger, "failed to initialize store", err)
	}
	defer logging.SafeClose(st, logger, "store")

	f, err := os.Open(*csvPath)
	if err != nil {
		return logging.Fatal(logger, "failed to open csv", err)
	}
	defer logging.SafeClose(f, logger, "csv")

	start := time.Now()
	stats, err := importCSV(ctx, f, st, mapper, time.Now().UTC(), logger)
	if err != nil {
		return logging.Fatal(logger, "import failed", err)
	}

	total, err := st.CountRows(ctx)
	if err != nil {
		logging.LogError(logger, "failed to count rows", err)
	}
	logging.LogOperation(logger, "seed_completed",
		slog.Int("imported", stats.Imported),
		slog.Int("skipped", stats.Skipped),
		slog.Int("rows_in_store", total),
		slog.Duration("duration", time.Since(start)))
	return nil
}

type importStats struct {
	Imported int
	Skipped  int
}

// importCSV upserts every valid row. Rows with an unknown month name, a
// malformed financial year, or a blank state/district are skipped and
// logged; a store failure aborts the import.
func importCSV(ctx context.Context, r io.Reader, st mgnrega.Store, mapper *mgnrega.Mapper, now time.Time, logger *slog.Logger) (importStats, error) {
	var stats importStats

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return stats, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return stats, fmt.Errorf("missing column %q", col)
		}
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return stats, fmt.Errorf("line %d: %w", line, err)
		}

		row, err := toRow(header, index, record, mapper, now)
		if err != nil {
			stats.Skipped++
			logger.Warn("skipping row", slog.Int("line", line), slog.String("reason", err.Error()))
			continue
		}
		if err := st.UpsertRow(ctx, row); err != nil {
			return stats, fmt.Errorf("line %d: %w", line, err)
		}
		stats.Imported++
	}
	return stats, nil
}

func toRow(header []string, index map[string]int, record []string, mapper *mgnrega.Mapper, now time.Time) (mgnrega.Row, error) {
	get := func(col string) string {
		if i, ok := index[col]; ok && i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	state, district := get("state_name"), get("district_name")
	if state == "" || district == "" {
		return mgnrega.Row{}, errors.New("blank state or district")
	}
	month := get("month")
	if _, err := mgnrega.MonthNumber(month); err != nil {
		return mgnrega.Row{}, err
	}
	finYear := get("fin_year")
	if _, err := mgnrega.ParseFinYear(finYear); err != nil {
		return mgnrega.Row{}, err
	}

	raw := make(map[string]any, len(header))
	for i, name := range header {
		if i >= len(record) || name == "" {
			continue
		}
		if name == "payload" && isEmptyPayload(record[i]) {
			continue
		}
		raw[name] = record[i]
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return mgnrega.Row{}, err
	}

	return mgnrega.Row{
		StateName:    state,
		DistrictName: district,
		FinYear:      finYear,
		Month:        month,
		Payload:      payload,
		Metrics:      mapper.Map(raw),
		UpdatedAt:    now,
	}, nil
}

func isEmptyPayload(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == "{}" || s == "null"
}
