/*
Package cache provides the two ephemeral-cache backends behind
mgnrega.Cache.

BACKENDS:
  Remote:  Upstash-style REST key/value store. One HTTP round-trip per call.
           Get folds not-found and transport failures into a miss.
  Memory:  process-local map with absolute expiry, evicted lazily on read.
           Never shared across processes, never persisted.

SELECTION:
  New picks Remote when both the URL and the token are configured, Memory
  otherwise. The composition root calls New once and hands the result to the
  resolver, so the first decision holds for the life of the process.

SEE ALSO:
  - mgnrega/store.go: Cache interface and key format
  - cmd/server/main.go: where New is called
*/
package cache

import (
	"log/slog"
	"net/http"

	"github.com/ourvoice/mgnrega-engine/mgnrega"
)

// Backend names reported in logs and metrics.
const (
	BackendMemory = "memory"
	BackendRemote = "remote"
)

// Config selects and configures the backend.
type Config struct {
	URL        string // KV_REST_API_URL
	Token      string // KV_REST_API_TOKEN
	HTTPClient *http.Client
}

// RemoteConfigured reports whether the remote backend can be used.
func (c Config) RemoteConfigured() bool {
	return c.URL != "" && c.Token != ""
}

// New returns the Remote backend when configured, Memory otherwise.
func New(cfg Config, logger *slog.Logger) mgnrega.Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RemoteConfigured() {
		logger.Info("cache backend selected", slog.String("backend", BackendRemote))
		return NewRemote(cfg.URL, cfg.Token, cfg.HTTPClient, logger)
	}
	logger.Info("cache backend selected", slog.String("backend", BackendMemory))
	return NewMemory()
}
