/*
resolver.go - Three-tier read-through resolution of district/month metrics

PURPOSE:
  Answers "what are the numbers for district D in month M of year Y?" by
  walking an ordered fallback chain and stopping at the first hit:

    1. Persisted store  -> stale=false, never touches the cache
    2. Ephemeral cache  -> stale=true, human timestamp recomputed
    3. Upstream source  -> stale=false, then written back to store AND cache

  No tier producing data is a normal outcome: Resolve returns (nil, nil).

FAILURE MODEL:
  - A tier that errors is logged and treated as a miss.
  - Write-back after an upstream hit runs the store upsert and the cache set
    concurrently and waits for both to settle. Failures are logged and
    counted, never returned.
  - Nothing is retried.

WRITE-BACK MODES:
  Joined (default): Resolve returns after both writes settle.
  Detached (WithDetachedWriteBack): writes run in the background on a
  context detached from the request; Wait() drains them at shutdown.

SEE ALSO:
  - store.go: Store, Cache, Source contracts
  - trend.go: history for the chart (store-only)
  - cmd/server/main.go: composition root choosing the concrete tiers
*/
package mgnrega

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ourvoice/mgnrega-engine/logging"
	"github.com/ourvoice/mgnrega-engine/metrics"
)

// Tier labels used in logs and metrics.
const (
	TierStore    = "store"
	TierCache    = "cache"
	TierUpstream = "upstream"
	TierMiss     = "miss"
)

// Resolver implements the fallback chain. It holds no per-request state and
// is safe for concurrent use.
type Resolver struct {
	store     Store
	cache     Cache
	source    Source
	mapper    *Mapper
	logger    *slog.Logger
	now       func() time.Time
	ttl       time.Duration
	namespace string
	detach    bool

	pending sync.WaitGroup
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithMapper sets the field mapper used for upstream records.
func WithMapper(m *Mapper) Option {
	return func(r *Resolver) { r.mapper = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.ttl = ttl }
}

// WithNamespace overrides DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(r *Resolver) { r.namespace = ns }
}

// WithDetachedWriteBack makes write-backs run in the background.
func WithDetachedWriteBack(detach bool) Option {
	return func(r *Resolver) { r.detach = detach }
}

// NewResolver wires the tiers. source may be nil when the upstream API is
// not configured; tier 3 is then skipped entirely.
func NewResolver(store Store, cache Cache, source Source, opts ...Option) *Resolver {
	r := &Resolver{
		store:     store,
		cache:     cache,
		source:    source,
		mapper:    NewMapper(nil),
		logger:    slog.Default(),
		now:       time.Now,
		ttl:       DefaultCacheTTL,
		namespace: DefaultNamespace,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// UpstreamEnabled reports whether tier 3 will be attempted.
func (r *Resolver) UpstreamEnabled() bool {
	return r.source != nil
}

// Wait blocks until all detached write-backs have settled.
func (r *Resolver) Wait() {
	r.pending.Wait()
}

// =============================================================================
// RESOLVE
// =============================================================================

// Resolve returns the metrics for one district/month, or nil when no tier
// has data. The only errors are invalid month/year input.
func (r *Resolver) Resolve(ctx context.Context, state, district string, month, year int) (*DistrictMonthMetrics, error) {
	key, err := ToPeriodKey(month, year)
	if err != nil {
		return nil, err
	}

	log := r.logger.With(
		slog.String("state", state),
		slog.String("district", district),
		slog.String("fin_year", key.FinYear),
		slog.String("month", key.Month),
	)

	// 1) Persisted store
	row, err := r.store.GetRow(ctx, state, district, key)
	if err != nil {
		logging.LogError(log, "store lookup failed", err, slog.String("tier", TierStore))
	} else if row != nil {
		metrics.ObserveResolution(TierStore)
		return r.fromRow(state, district, month, year, row), nil
	}

	// 2) Cache
	cacheKey := CacheKey(r.namespace, state, district, key)
	if doc, ok := r.fromCache(ctx, log, cacheKey); ok {
		metrics.ObserveResolution(TierCache)
		return doc, nil
	}

	// 3) Upstream
	if r.source == nil {
		metrics.ObserveResolution(TierMiss)
		return nil, nil
	}

	started := r.now()
	raw, err := r.source.Fetch(ctx, Query{State: state, District: district, Month: month, Year: year})
	metrics.ObserveUpstream(err, time.Since(started))
	if err != nil {
		logging.LogError(log, "upstream fetch failed", err, slog.String("tier", TierUpstream))
		metrics.ObserveResolution(TierMiss)
		return nil, nil
	}
	if len(raw) == 0 {
		metrics.ObserveResolution(TierMiss)
		return nil, nil
	}

	doc := r.fromUpstream(state, district, month, year, raw)
	r.writeBack(ctx, log, Row{
		StateName:    state,
		DistrictName: district,
		FinYear:      key.FinYear,
		Month:        key.Month,
		Payload:      doc.Payload,
		Metrics:      doc.Cards,
		UpdatedAt:    doc.UpdatedAt,
	}, cacheKey, doc)

	metrics.ObserveResolution(TierUpstream)
	return doc, nil
}

func (r *Resolver) fromRow(state, district string, month, year int, row *Row) *DistrictMonthMetrics {
	return &DistrictMonthMetrics{
		State:          state,
		District:       district,
		Month:          month,
		Year:           year,
		Cards:          row.Metrics.Sanitized(),
		Payload:        row.Payload,
		Stale:          false,
		UpdatedAt:      row.UpdatedAt,
		UpdatedAtHuman: Human(row.UpdatedAt),
	}
}

func (r *Resolver) fromCache(ctx context.Context, log *slog.Logger, key string) (*DistrictMonthMetrics, bool) {
	data, ok := r.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}

	var doc DistrictMonthMetrics
	if err := json.Unmarshal(data, &doc); err != nil {
		logging.LogError(log, "cached document is unreadable", err, slog.String("tier", TierCache))
		return nil, false
	}
	doc.Stale = true
	doc.UpdatedAtHuman = Human(doc.UpdatedAt)
	return &doc, true
}

func (r *Resolver) fromUpstream(state, district string, month, year int, raw map[string]any) *DistrictMonthMetrics {
	now := r.now().UTC()
	payload, err := json.Marshal(raw)
	if err != nil {
		payload = nil
	}
	return &DistrictMonthMetrics{
		State:          state,
		District:       district,
		Month:          month,
		Year:           year,
		Cards:          r.mapper.Map(raw),
		Payload:        payload,
		Stale:          false,
		UpdatedAt:      now,
		UpdatedAtHuman: Human(now),
	}
}

// =============================================================================
// WRITE-BACK
// =============================================================================

// writeBack upserts the row and caches the document concurrently. Both
// outcomes are logged; neither affects the caller.
func (r *Resolver) writeBack(ctx context.Context, log *slog.Logger, row Row, cacheKey string, doc *DistrictMonthMetrics) {
	encoded, encodeErr := json.Marshal(doc)

	settle := func(ctx context.Context) {
		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer wg.Done()
			if err := r.store.UpsertRow(ctx, row); err != nil {
				metrics.ObserveWriteBackFailure(TierStore)
				logging.LogError(log, "write-back upsert failed", err, slog.String("tier", TierStore))
			}
		}()

		go func() {
			defer wg.Done()
			if encodeErr != nil {
				metrics.ObserveWriteBackFailure(TierCache)
				logging.LogError(log, "write-back encode failed", encodeErr, slog.String("tier", TierCache))
				return
			}
			if err := r.cache.Set(ctx, cacheKey, encoded, r.ttl); err != nil {
				metrics.ObserveWriteBackFailure(TierCache)
				logging.LogError(log, "write-back cache set failed", err, slog.String("tier", TierCache))
			}
		}()

		wg.Wait()
		log.Debug("write-back settled")
	}

	if !r.detach {
		settle(ctx)
		return
	}

	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		settle(context.WithoutCancel(ctx))
	}()
}
