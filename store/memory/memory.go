// Package memory provides an in-memory mgnrega.Store for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ourvoice/mgnrega-engine/mgnrega"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type key struct {
	State    string
	District string
	FinYear  string
	Month    string
}

type stored struct {
	row mgnrega.Row
	ord int
}

// Store keeps rows in a map keyed by (state, district, fin_year, month).
type Store struct {
	mu   sync.RWMutex
	rows map[key]stored
}

// New creates an empty store.
func New() *Store {
	return &Store{rows: make(map[key]stored)}
}

// UpsertRow inserts or replaces the row with the same key.
func (s *Store) UpsertRow(_ context.Context, row mgnrega.Row) error {
	ord, err := mgnrega.KeyOrdinal(row.Key())
	if err != nil {
		return err
	}
	row.Metrics = row.Metrics.Sanitized()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[key{row.StateName, row.DistrictName, row.FinYear, row.Month}] = stored{row: row, ord: ord}
	return nil
}

// GetRow returns the exact-match row, or nil.
func (s *Store) GetRow(_ context.Context, state, district string, k mgnrega.PeriodKey) (*mgnrega.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.rows[key{state, district, k.FinYear, k.Month}]
	if !ok {
		return nil, nil
	}
	row := st.row
	return &row, nil
}

// GetRecentRows returns up to limit rows at or before upto, newest first.
func (s *Store) GetRecentRows(_ context.Context, state, district string, limit int, upto mgnrega.PeriodKey) ([]mgnrega.Row, error) {
	if limit <= 0 {
		return nil, nil
	}
	uptoOrd, err := mgnrega.KeyOrdinal(upto)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := make([]stored, 0)
	for k, st := range s.rows {
		if k.State == state && k.District == district && st.ord <= uptoOrd {
			matched = append(matched, st)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ord > matched[j].ord })
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]mgnrega.Row, len(matched))
	for i, st := range matched {
		out[i] = st.row
	}
	return out, nil
}

// CountRows returns the number of stored rows.
func (s *Store) CountRows(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows), nil
}
