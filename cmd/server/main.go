/*
main.go - Application entry point

PURPOSE:
  Composition root for the district metrics server. Reads configuration,
  chooses the persisted store, cache and upstream source once, and serves
  the HTTP API until interrupted.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment), then apply flags
  2. Open the persisted store (Postgres if DATABASE_URL, else SQLite)
  3. Select the cache backend (remote KV if configured, else memory)
  4. Create the upstream client only when its credentials are present
  5. Build the resolver, handler, router and refresh scheduler
  6. Start the server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH; ":memory:" allowed)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the refresh scheduler
  2. Stop accepting new connections, drain active requests (30s timeout)
  3. Wait for background write-backs to settle
  4. Close the store

SEE ALSO:
  - config/config.go: recognised environment variables
  - api/server.go: Router configuration
  - mgnrega/resolver.go: the fallback chain
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ourvoice/mgnrega-engine/api"
	"github.com/ourvoice/mgnrega-engine/cache"
	"github.com/ourvoice/mgnrega-engine/config"
	"github.com/ourvoice/mgnrega-engine/datagov"
	"github.com/ourvoice/mgnrega-engine/districts"
	"github.com/ourvoice/mgnrega-engine/geo"
	"github.com/ourvoice/mgnrega-engine/logging"
	"github.com/ourvoice/mgnrega-engine/mgnrega"
	"github.com/ourvoice/mgnrega-engine/store"
)

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

	// Flags
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	logger := logging.NewStructuredLogger(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	ctx := context.Background()

	// Persisted store
	st, err := store.Open(ctx, cfg.DatabaseURL, *dbPath, logger)
	if err != nil {
		return logging.Fatal(logger, "failed to initialize store", err)
	}
	defer logging.SafeClose(st, logger, "store")

	// Cache
	kv := cache.New(cache.Config{
		URL:        cfg.KVURL,
		Token:      cfg.KVToken,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}, logger)

	// Upstream, only when configured
	var source mgnrega.Source
	if cfg.UpstreamConfigured() {
		source = datagov.New(datagov.Config{
			BaseURL:    cfg.DataGovBaseURL,
			APIKey:     cfg.DataGovAPIKey,
			ResourceID: cfg.DataGovResourceID,
			Timeout:    cfg.UpstreamTimeout,
		})
	} else {
		logger.Warn("upstream API not configured, serving persisted and cached data only")
	}

	mapper := mgnrega.NewMapper(nil)
	if cfg.FieldAliasesFile != "" {
		aliases, err := mgnrega.LoadAliases(cfg.FieldAliasesFile)
		if err != nil {
			return logging.Fatal(logger, "failed to load field aliases", err)
		}
		mapper = mgnrega.NewMapper(aliases)
	}

	resolver := mgnrega.NewResolver(st, kv, source,
		mgnrega.WithLogger(logger),
		mgnrega.WithMapper(mapper),
		mgnrega.WithCacheTTL(cfg.CacheTTL),
		mgnrega.WithNamespace(cfg.CacheNamespace),
		mgnrega.WithDetachedWriteBack(cfg.DetachWriteBack),
	)

	dir, err := districts.Load()
	if err != nil {
		return logging.Fatal(logger, "failed to load district directory", err)
	}

	geocoder := geo.New(geo.Config{
		BaseURL:   cfg.GeocoderURL,
		UserAgent: cfg.GeocoderUserAgent,
		CacheSize: cfg.GeocoderCacheSize,
		CacheTTL:  cfg.GeocoderCacheTTL,
	})

	handler := api.NewHandler(resolver, dir, geocoder)
	handler.TrendMonths = cfg.TrendMonths

	limiter := api.NewRateLimiter(cfg.RateLimitPerSecond)
	defer limiter.Stop()

	router := api.NewRouter(handler, api.RouterConfig{
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
		RateLimiter: limiter,
	})

	scheduler := api.NewRefreshScheduler(resolver, dir, logger)
	scheduler.CheckInterval = cfg.RefreshInterval
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.Int("port", *port),
			slog.Bool("upstream", resolver.UpstreamEnabled()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		scheduler.Stop()
		return logging.Fatal(logger, "server failed", err)
	}

	logger.Info("shutting down server")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.LogError(logger, "server forced to shutdown", err)
	}

	resolver.Wait()
	logger.Info("server stopped")
	return nil
}
