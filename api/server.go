/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK (outermost first):
  1. RequestID:   Unique ID per request, attached to the request logger
  2. RealIP:      Client IP from X-Forwarded-For / X-Real-IP
  3. Logging:     One structured line per request (slog)
  4. Recoverer:   Panic recovery (500 instead of crash)
  5. CORS:        Cross-origin requests from the presentation layer
  6. Compression: gzip via klauspost/compress
  7. RateLimit:   Per-IP token bucket, 429 + Retry-After

ROUTES:
  /api/mgnrega/*   Metrics and trend
  /api/districts*  Directory and district page
  /api/geo/*       Reverse geocoding
  /healthz         Liveness
  /metrics         Prometheus exposition (not rate limited)

SEE ALSO:
  - handlers.go: Handler implementations
  - ratelimit.go: RateLimiter
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ourvoice/mgnrega-engine/logging"
)

// RouterConfig holds the knobs of the middleware stack.
type RouterConfig struct {
	Logger      *slog.Logger
	CORSOrigins []string
	RateLimiter *RateLimiter
}

var defaultOrigins = []string{"http://localhost:3000", "http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	gzip, err := gzhttp.NewWrapper(gzhttp.MinSize(512))
	if err != nil {
		// Only returned for invalid options.
		panic(err)
	}
	r.Use(func(next http.Handler) http.Handler { return gzip(next) })

	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Handler)
		}

		r.Route("/mgnrega", func(r chi.Router) {
			r.Get("/metrics", h.GetMetrics)
			r.Get("/trend", h.GetTrend)
		})

		r.Route("/districts", func(r chi.Router) {
			r.Get("/", h.ListDistricts)
			r.Get("/{state}/{district}", h.GetDistrictPage)
		})

		r.Get("/geo/reverse", h.ReverseGeocode)
	})

	return r
}

// requestLogger logs each request and puts a request-scoped logger in the
// context for handlers.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := logger.With(slog.String("request_id", middleware.GetReqID(r.Context())))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(logging.WithLogger(r.Context(), reqLogger)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logging.LogHTTPRequest(reqLogger, r.Method, r.URL.Path, status,
				float64(time.Since(start).Microseconds())/1000,
				slog.String("remote", r.RemoteAddr))
		})
	}
}
