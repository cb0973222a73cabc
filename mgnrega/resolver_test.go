package mgnrega

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeStore struct {
	mu        sync.Mutex
	row       *Row
	getErr    error
	upsertErr error
	getCalls  int
	upserts   []Row

	recent     []Row
	recentErr  error
	recentUpto PeriodKey
	recentN    int
}

func (s *fakeStore) UpsertRow(_ context.Context, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, row)
	return s.upsertErr
}

func (s *fakeStore) GetRow(context.Context, string, string, PeriodKey) (*Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	return s.row, s.getErr
}

func (s *fakeStore) GetRecentRows(_ context.Context, _, _ string, limit int, upto PeriodKey) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recentN = limit
	s.recentUpto = upto
	return s.recent, s.recentErr
}

func (s *fakeStore) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.upserts)
}

type fakeCache struct {
	mu       sync.Mutex
	entries  map[string][]byte
	setErr   error
	getCalls int
	sets     []string
	ttls     []time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getCalls++
	v, ok := c.entries[key]
	return v, ok
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets = append(c.sets, key)
	c.ttls = append(c.ttls, ttl)
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[key] = value
	return nil
}

func (c *fakeCache) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sets)
}

type fakeSource struct {
	mu      sync.Mutex
	record  map[string]any
	err     error
	calls   int
	queries []Query
}

func (s *fakeSource) Fetch(_ context.Context, q Query) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.queries = append(s.queries, q)
	return s.record, s.err
}

var fixedNow = time.Date(2025, 12, 10, 9, 0, 0, 0, time.UTC)

func newTestResolver(store Store, cache Cache, source Source, opts ...Option) *Resolver {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewResolver(store, cache, source, opts...)
}

// =============================================================================
// TIER ORDERING
// =============================================================================

func TestResolve_PersistedRowShortCircuits(t *testing.T) {
	// GIVEN: a persisted row, and cache/upstream that would answer differently
	updated := time.Date(2025, 12, 5, 8, 30, 0, 0, time.UTC)
	store := &fakeStore{row: &Row{
		StateName: "Uttar Pradesh", DistrictName: "Agra", FinYear: "2025-2026", Month: "Dec",
		Payload:   json.RawMessage(`{"id":1}`),
		Metrics:   MetricsRecord{Persondays: 120000, HouseholdsWorked: 4000},
		UpdatedAt: updated,
	}}
	cache := newFakeCache()
	source := &fakeSource{record: map[string]any{"persondays": 1}}

	// WHEN
	got, err := newTestResolver(store, cache, source).Resolve(context.Background(), "Uttar Pradesh", "Agra", 12, 2025)

	// THEN: served from the store, cache and upstream untouched
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Stale)
	assert.Equal(t, 120000.0, got.Cards.Persondays)
	assert.Equal(t, 4000.0, got.Cards.HouseholdsWorked)
	assert.Equal(t, 12, got.Month)
	assert.Equal(t, 2025, got.Year)
	assert.JSONEq(t, `{"id":1}`, string(got.Payload))
	assert.True(t, got.UpdatedAt.Equal(updated))
	assert.Equal(t, "5 Dec 2025, 2:00 pm", got.UpdatedAtHuman)

	assert.Zero(t, cache.getCalls, "cache must not be consulted")
	assert.Zero(t, cache.setCount(), "persisted reads are never cached")
	assert.Zero(t, source.calls, "upstream must not be consulted")
}

func TestResolve_CacheHitIsForcedStale(t *testing.T) {
	// GIVEN: no persisted row, a cached document claiming stale=false
	store := &fakeStore{}
	cache := newFakeCache()
	cachedAt := time.Date(2025, 12, 9, 18, 30, 0, 0, time.UTC)
	doc := DistrictMonthMetrics{
		State: "Uttar Pradesh", District: "Agra", Month: 12, Year: 2025,
		Cards:          MetricsRecord{Persondays: 777},
		Stale:          false,
		UpdatedAt:      cachedAt,
		UpdatedAtHuman: "whatever was stored",
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	cache.entries["mgnrega:Uttar Pradesh:Agra:2025-2026-Dec"] = data
	source := &fakeSource{record: map[string]any{"persondays": 1}}

	// WHEN
	got, err := newTestResolver(store, cache, source).Resolve(context.Background(), "Uttar Pradesh", "Agra", 12, 2025)

	// THEN
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Stale)
	assert.Equal(t, 777.0, got.Cards.Persondays)
	assert.Equal(t, "10 Dec 2025, 12:00 am", got.UpdatedAtHuman, "recomputed from updatedAt")
	assert.Zero(t, source.calls)
	assert.Zero(t, store.upsertCount())
}

func TestResolve_UpstreamHitWritesBackOnce(t *testing.T) {
	// GIVEN: nothing persisted or cached, upstream has a record
	store := &fakeStore{}
	cache := newFakeCache()
	source := &fakeSource{record: map[string]any{
		"persondays_generated":    "250000",
		"no_of_households_worked": 8200,
		"wage_expenditure":        "1234.5",
	}}

	// WHEN
	got, err := newTestResolver(store, cache, source).Resolve(context.Background(), "Uttar Pradesh", "Agra", 2, 2025)

	// THEN: fresh document
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Stale)
	assert.Equal(t, 250000.0, got.Cards.Persondays)
	assert.Equal(t, 8200.0, got.Cards.HouseholdsWorked)
	assert.Equal(t, 1234.5, got.Cards.WageExpenditure)
	assert.True(t, got.UpdatedAt.Equal(fixedNow))
	assert.NotEmpty(t, got.UpdatedAtHuman)

	require.Len(t, source.queries, 1)
	assert.Equal(t, Query{State: "Uttar Pradesh", District: "Agra", Month: 2, Year: 2025}, source.queries[0])

	// AND: exactly one upsert and one cache set
	require.Equal(t, 1, store.upsertCount())
	require.Equal(t, 1, cache.setCount())

	up := store.upserts[0]
	assert.Equal(t, "2024-2025", up.FinYear)
	assert.Equal(t, "Feb", up.Month)
	assert.Equal(t, got.Cards, up.Metrics)
	assert.JSONEq(t, string(got.Payload), string(up.Payload))

	assert.Equal(t, "mgnrega:Uttar Pradesh:Agra:2024-2025-Feb", cache.sets[0])
	assert.Equal(t, 24*time.Hour, cache.ttls[0])

	var cached DistrictMonthMetrics
	require.NoError(t, json.Unmarshal(cache.entries[cache.sets[0]], &cached))
	assert.False(t, cached.Stale)
	assert.Equal(t, got.Cards, cached.Cards)
}

func TestResolve_UpstreamUnconfigured(t *testing.T) {
	store := &fakeStore{}
	cache := newFakeCache()

	r := newTestResolver(store, cache, nil)
	got, err := r.Resolve(context.Background(), "Uttar Pradesh", "Agra", 2, 2025)

	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, r.UpstreamEnabled())
	assert.Zero(t, store.upsertCount())
	assert.Zero(t, cache.setCount())
}

func TestResolve_UpstreamEmptyOrFailingIsNoData(t *testing.T) {
	for name, source := range map[string]*fakeSource{
		"empty":  {},
		"failed": {err: &UpstreamError{Status: 503, Body: "unavailable"}},
	} {
		t.Run(name, func(t *testing.T) {
			store := &fakeStore{}
			cache := newFakeCache()

			got, err := newTestResolver(store, cache, source).Resolve(context.Background(), "Uttar Pradesh", "Agra", 2, 2025)

			require.NoError(t, err)
			assert.Nil(t, got)
			assert.Equal(t, 1, source.calls, "one attempt, no retries")
			assert.Zero(t, store.upsertCount())
			assert.Zero(t, cache.setCount())
		})
	}
}

func TestResolve_StoreFailureFallsThrough(t *testing.T) {
	store := &fakeStore{getErr: errors.New("database is locked")}
	cache := newFakeCache()
	data, _ := json.Marshal(DistrictMonthMetrics{State: "Uttar Pradesh", District: "Agra", Cards: MetricsRecord{Persondays: 5}})
	cache.entries["mgnrega:Uttar Pradesh:Agra:2025-2026-Dec"] = data

	got, err := newTestResolver(store, cache, nil).Resolve(context.Background(), "Uttar Pradesh", "Agra", 12, 2025)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Stale)
	assert.Equal(t, 5.0, got.Cards.Persondays)
}

func TestResolve_UnreadableCacheEntryIsMiss(t *testing.T) {
	store := &fakeStore{}
	cache := newFakeCache()
	cache.entries["mgnrega:Uttar Pradesh:Agra:2025-2026-Dec"] = []byte("not json")
	source := &fakeSource{record: map[string]any{"persondays": 3}}

	got, err := newTestResolver(store, cache, source).Resolve(context.Background(), "Uttar Pradesh", "Agra", 12, 2025)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Stale)
	assert.Equal(t, 1, source.calls)
}

func TestResolve_WriteBackFailuresDoNotSurface(t *testing.T) {
	store := &fakeStore{upsertErr: errors.New("disk full")}
	cache := newFakeCache()
	cache.setErr = errors.New("kv unavailable")
	source := &fakeSource{record: map[string]any{"persondays": 10}}

	got, err := newTestResolver(store, cache, source).Resolve(context.Background(), "Uttar Pradesh", "Agra", 6, 2025)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 10.0, got.Cards.Persondays)
	assert.Equal(t, 1, store.upsertCount())
	assert.Equal(t, 1, cache.setCount())
}

func TestResolve_DetachedWriteBack(t *testing.T) {
	store := &fakeStore{}
	cache := newFakeCache()
	source := &fakeSource{record: map[string]any{"persondays": 10}}
	r := newTestResolver(store, cache, source, WithDetachedWriteBack(true))

	ctx, cancel := context.WithCancel(context.Background())
	got, err := r.Resolve(ctx, "Uttar Pradesh", "Agra", 6, 2025)
	cancel()

	require.NoError(t, err)
	require.NotNil(t, got)

	r.Wait()
	assert.Equal(t, 1, store.upsertCount())
	assert.Equal(t, 1, cache.setCount())
}

func TestResolve_CustomNamespaceAndTTL(t *testing.T) {
	cache := newFakeCache()
	source := &fakeSource{record: map[string]any{"persondays": 10}}
	r := newTestResolver(&fakeStore{}, cache, source, WithNamespace("v2"), WithCacheTTL(time.Hour))

	_, err := r.Resolve(context.Background(), "Uttar Pradesh", "Agra", 6, 2025)
	require.NoError(t, err)

	require.Equal(t, 1, cache.setCount())
	assert.Equal(t, "v2:Uttar Pradesh:Agra:2025-2026-Jun", cache.sets[0])
	assert.Equal(t, time.Hour, cache.ttls[0])
}

func TestResolve_InvalidMonth(t *testing.T) {
	store := &fakeStore{}
	_, err := newTestResolver(store, newFakeCache(), nil).Resolve(context.Background(), "Uttar Pradesh", "Agra", 13, 2025)
	assert.ErrorIs(t, err, ErrInvalidMonth)
	assert.Zero(t, store.getCalls)
}
