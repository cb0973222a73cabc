/*
store.go - Interfaces for the three resolution tiers

PURPOSE:
  Defines the contracts between the resolver and its collaborators:

    Store:  durable table, one row per (state, district, fin_year, month)
    Cache:  ephemeral key/value with TTL
    Source: upstream open-data API

  The resolver depends only on these interfaces. Concrete implementations
  live in store/sqlite, store/postgres, store/memory, cache/ and datagov/.

ABSENCE:
  GetRow returns (nil, nil) when no row exists. Source.Fetch returns
  (nil, nil) when the upstream has no matching record. Cache.Get folds
  "not found" and "transport failed" into a single false.

SEE ALSO:
  - resolver.go: the fallback chain over these tiers
*/
package mgnrega

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// STORE - persisted rows
// =============================================================================

// Store persists one row per (state, district, fin_year, month).
type Store interface {
	// UpsertRow inserts or fully replaces the row with the same key.
	UpsertRow(ctx context.Context, row Row) error

	// GetRow returns the exact-match row or nil.
	GetRow(ctx context.Context, state, district string, key PeriodKey) (*Row, error)

	// GetRecentRows returns up to limit rows at or before upto, newest first.
	GetRecentRows(ctx context.Context, state, district string, limit int, upto PeriodKey) ([]Row, error)
}

// =============================================================================
// CACHE - ephemeral documents
// =============================================================================

// DefaultCacheTTL is the logical lifetime of a cached document.
const DefaultCacheTTL = 24 * time.Hour

// DefaultNamespace prefixes every cache key.
const DefaultNamespace = "mgnrega"

// Cache is a minimal key/value store with TTL.
type Cache interface {
	// Get returns the value and true on a live hit. Misses, expired entries
	// and transport failures all return false.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value for ttl, overwriting any existing entry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CacheKey builds "{namespace}:{state}:{district}:{finYear}-{month}".
func CacheKey(namespace, state, district string, key PeriodKey) string {
	return fmt.Sprintf("%s:%s:%s:%s-%s", namespace, state, district, key.FinYear, key.Month)
}

// =============================================================================
// SOURCE - upstream open data
// =============================================================================

// Source fetches at most one raw record for a district/month.
type Source interface {
	Fetch(ctx context.Context, q Query) (map[string]any, error)
}
