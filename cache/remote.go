package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ourvoice/mgnrega-engine/logging"
	"github.com/ourvoice/mgnrega-engine/metrics"
	"github.com/ourvoice/mgnrega-engine/mgnrega"
)

// =============================================================================
// REMOTE CACHE - Upstash-style REST key/value
// =============================================================================

// Remote talks to a REST key/value service:
//
//	GET  {url}/get/{key}        -> {"result": "<value>" | null}
//	POST {url}/set/{key}?EX=n   body = value
//
// Every request carries "Authorization: Bearer {token}".
type Remote struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// NewRemote creates a remote cache client. A nil client uses a 5s timeout
// client.
func NewRemote(baseURL, token string, client *http.Client, logger *slog.Logger) *Remote {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
		logger:  logger,
	}
}

type getResponse struct {
	Result json.RawMessage `json:"result"`
}

// Get returns the stored value. Any non-2xx status, transport error or
// null result is a miss.
func (r *Remote) Get(ctx context.Context, key string) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/get/"+url.PathEscape(key), nil)
	if err != nil {
		logging.LogError(r.logger, "cache get: build request", err, slog.String("key", key))
		return nil, false
	}
	req.Header.Set("Authorization", "Bearer "+r.token)

	resp, err := r.client.Do(req)
	if err != nil {
		logging.LogError(r.logger, "cache get failed", err, slog.String("key", key))
		metrics.ObserveCache(BackendRemote, false)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ObserveCache(BackendRemote, false)
		return nil, false
	}

	var body getResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		logging.LogError(r.logger, "cache get: decode response", err, slog.String("key", key))
		metrics.ObserveCache(BackendRemote, false)
		return nil, false
	}

	value, ok := decodeResult(body.Result)
	metrics.ObserveCache(BackendRemote, ok)
	return value, ok
}

// decodeResult unwraps a JSON string result. Non-string results (a JSON
// object stored by another writer) are returned as raw JSON.
func decodeResult(raw json.RawMessage) ([]byte, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, false
		}
		return []byte(s), true
	}
	return trimmed, true
}

// Set stores value with an expiry of ttl (rounded down to whole seconds,
// minimum 1).
func (r *Remote) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	secs := int64(ttl / time.Second)
	if secs < 1 {
		secs = 1
	}
	endpoint := r.baseURL + "/set/" + url.PathEscape(key) + "?EX=" + strconv.FormatInt(secs, 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(value))
	if err != nil {
		return fmt.Errorf("cache set: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%w: %d %s", mgnrega.ErrCacheStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
