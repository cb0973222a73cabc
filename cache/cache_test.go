package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ourvoice/mgnrega-engine/mgnrega"
)

// =============================================================================
// MEMORY
// =============================================================================

func TestMemory_SetGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "k", []byte(`{"a":1}`), time.Hour))

	v, ok := m.Get(ctx, "k")
	assert.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(v))

	_, ok = m.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestMemory_LazyEvictionOnRead(t *testing.T) {
	// GIVEN: an entry with a 24h TTL
	ctx := context.Background()
	now := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }
	require.NoError(t, m.Set(ctx, "k", []byte("v"), 24*time.Hour))

	// WHEN: time passes but stays within the TTL
	now = now.Add(24 * time.Hour)
	_, ok := m.Get(ctx, "k")
	assert.True(t, ok, "entry is live up to and including its expiry instant")

	// THEN: past expiry the entry is still held until read, then removed
	now = now.Add(time.Second)
	assert.Equal(t, 1, m.Len(), "no background sweep")
	_, ok = m.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_OverwriteAndCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	buf := []byte("first")
	require.NoError(t, m.Set(ctx, "k", buf, time.Hour))
	buf[0] = 'X'

	v, _ := m.Get(ctx, "k")
	assert.Equal(t, "first", string(v), "stored value must not alias the caller's slice")

	require.NoError(t, m.Set(ctx, "k", []byte("second"), time.Hour))
	v, _ = m.Get(ctx, "k")
	assert.Equal(t, "second", string(v))
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = m.Set(ctx, "same", []byte("v"), time.Minute)
		}()
		go func() {
			defer wg.Done()
			m.Get(ctx, "same")
		}()
	}
	wg.Wait()

	v, ok := m.Get(ctx, "same")
	assert.True(t, ok)
	assert.Equal(t, "v", string(v))
}

// =============================================================================
// REMOTE
// =============================================================================

type kvServer struct {
	mu     sync.Mutex
	data   map[string]string
	expiry map[string]string
	status int
}

func newKVServer(t *testing.T) (*kvServer, *httptest.Server) {
	kv := &kvServer{data: map[string]string{}, expiry: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		kv.mu.Lock()
		defer kv.mu.Unlock()
		if kv.status != 0 {
			w.WriteHeader(kv.status)
			return
		}

		switch {
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/get/"):
			key := strings.TrimPrefix(r.URL.Path, "/get/")
			v, ok := kv.data[key]
			if !ok {
				_, _ = io.WriteString(w, `{"result":null}`)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"result": v})
		case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/set/"):
			key := strings.TrimPrefix(r.URL.Path, "/set/")
			body, _ := io.ReadAll(r.Body)
			kv.data[key] = string(body)
			kv.expiry[key] = r.URL.Query().Get("EX")
			_, _ = io.WriteString(w, `{"result":"OK"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return kv, srv
}

func TestRemote_RoundTrip(t *testing.T) {
	kv, srv := newKVServer(t)
	ctx := context.Background()
	r := NewRemote(srv.URL+"/", "secret", srv.Client(), nil)

	key := "mgnrega:Uttar Pradesh:Agra:2024-2025-Dec"
	require.NoError(t, r.Set(ctx, key, []byte(`{"stale":false}`), 24*time.Hour))

	kv.mu.Lock()
	assert.Equal(t, "86400", kv.expiry[key])
	kv.mu.Unlock()

	v, ok := r.Get(ctx, key)
	require.True(t, ok)
	assert.JSONEq(t, `{"stale":false}`, string(v))
}

func TestRemote_MissAndFailureAreIndistinguishable(t *testing.T) {
	kv, srv := newKVServer(t)
	ctx := context.Background()

	_, ok := NewRemote(srv.URL, "secret", srv.Client(), nil).Get(ctx, "absent")
	assert.False(t, ok, "null result is a miss")

	_, ok = NewRemote(srv.URL, "wrong", srv.Client(), nil).Get(ctx, "absent")
	assert.False(t, ok, "401 is a miss")

	kv.mu.Lock()
	kv.status = http.StatusInternalServerError
	kv.mu.Unlock()
	_, ok = NewRemote(srv.URL, "secret", srv.Client(), nil).Get(ctx, "absent")
	assert.False(t, ok, "500 is a miss")

	srv.Close()
	_, ok = NewRemote(srv.URL, "secret", nil, nil).Get(ctx, "absent")
	assert.False(t, ok, "transport error is a miss")
}

func TestRemote_SetFailureIsReported(t *testing.T) {
	kv, srv := newKVServer(t)
	kv.status = http.StatusServiceUnavailable

	err := NewRemote(srv.URL, "secret", srv.Client(), nil).Set(context.Background(), "k", []byte("v"), time.Hour)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mgnrega.ErrCacheStatus))
}

func TestDecodeResult(t *testing.T) {
	v, ok := decodeResult(json.RawMessage(`"{\"a\":1}"`))
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(v))

	v, ok = decodeResult(json.RawMessage(`{"a":1}`))
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(v))

	_, ok = decodeResult(json.RawMessage(`null`))
	assert.False(t, ok)
	_, ok = decodeResult(nil)
	assert.False(t, ok)
}

// =============================================================================
// SELECTION
// =============================================================================

func TestNew_SelectsBackendFromConfig(t *testing.T) {
	_, isMemory := New(Config{}, nil).(*Memory)
	assert.True(t, isMemory)

	_, isMemory = New(Config{URL: "https://kv.example"}, nil).(*Memory)
	assert.True(t, isMemory, "URL without token falls back to memory")

	_, isRemote := New(Config{URL: "https://kv.example", Token: "t"}, nil).(*Remote)
	assert.True(t, isRemote)
}
