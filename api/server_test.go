package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Returns429(t *testing.T) {
	// GIVEN a limiter allowing a burst of 2
	rl := NewRateLimiter(2)
	defer rl.Stop()
	f := newFixture(t, nil)
	router := NewRouter(f.h, RouterConfig{RateLimiter: rl})

	// WHEN the same client sends three requests at once
	var codes []int
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/districts?q=agra", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		last = httptest.NewRecorder()
		router.ServeHTTP(last, req)
		codes = append(codes, last.Code)
	}

	// THEN the third is rejected with Retry-After
	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, "1", last.Header().Get("Retry-After"))

	// AND another client is unaffected
	req := httptest.NewRequest(http.MethodGet, "/api/districts?q=agra", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_DisabledAndHealthExempt(t *testing.T) {
	rl := NewRateLimiter(0)
	defer rl.Stop()
	f := newFixture(t, nil)
	router := NewRouter(f.h, RouterConfig{RateLimiter: rl})

	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/districts", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRouter_GzipAndMetrics(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/districts", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
}

func TestRouter_CORS(t *testing.T) {
	f := newFixture(t, nil)
	router := NewRouter(f.h, RouterConfig{CORSOrigins: []string{"https://ourvoice.example"}})

	req := httptest.NewRequest(http.MethodGet, "/api/districts", nil)
	req.Header.Set("Origin", "https://ourvoice.example")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://ourvoice.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
