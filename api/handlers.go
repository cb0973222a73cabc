/*
handlers.go - HTTP API handlers for district metrics

PURPOSE:
  Exposes the metrics resolver, the trend aggregator, the district directory
  and reverse geocoding over HTTP. Handlers parse the query, delegate to the
  domain packages, and serialize the result.

ENDPOINTS:
  Metrics:
    GET /api/mgnrega/metrics?state=&district=&month=&year=   One district
    GET /api/mgnrega/metrics?state=&districts=a,b&month=&year= Comparison
    GET /api/mgnrega/trend?state=&district=&year=&months=    Chart history

  Directory:
    GET /api/districts?q=                                    Search
    GET /api/districts/{state}/{district}?month=&year=       District page

  Geo:
    GET /api/geo/reverse?lat=&lon=                           Coordinates -> district

  Ops:
    GET /healthz

DEFAULTS:
  month and year fall back to the current month when missing or not a
  positive integer. An explicit but impossible month (13) is a 400.

ERROR HANDLING:
  - 400: Missing or invalid input
  - 502: Geocoder failure
  - 500: Anything else
  A month with no data is NOT an error: single lookups answer {"row": null},
  comparisons drop the district.

SEE ALSO:
  - dto.go: Response data structures
  - server.go: Router setup and middleware
  - mgnrega/resolver.go: Resolve and Trend
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ourvoice/mgnrega-engine/districts"
	"github.com/ourvoice/mgnrega-engine/geo"
	"github.com/ourvoice/mgnrega-engine/logging"
	"github.com/ourvoice/mgnrega-engine/mgnrega"
)

// maxTrendMonths bounds the ?months= parameter.
const maxTrendMonths = 120

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Geocoder resolves coordinates to a place.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (geo.Place, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Resolver    *mgnrega.Resolver
	Directory   *districts.Directory
	Geocoder    Geocoder
	TrendMonths int

	now func() time.Time
}

// NewHandler creates a handler. geocoder may be nil, in which case the geo
// route answers 502.
func NewHandler(resolver *mgnrega.Resolver, dir *districts.Directory, geocoder Geocoder) *Handler {
	return &Handler{
		Resolver:    resolver,
		Directory:   dir,
		Geocoder:    geocoder,
		TrendMonths: mgnrega.DefaultTrendMonths,
		now:         time.Now,
	}
}

// =============================================================================
// METRICS HANDLERS
// =============================================================================

// GetMetrics resolves one district, or several when ?districts= is given.
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state := strings.TrimSpace(q.Get("state"))
	district := strings.TrimSpace(q.Get("district"))
	many := splitDistricts(q.Get("districts"))

	if state == "" || (district == "" && len(many) == 0) {
		writeError(w, http.StatusBadRequest, "missing state and district(s)", nil)
		return
	}

	month, year := h.monthYear(r)
	if _, err := mgnrega.ToPeriodKey(month, year); err != nil {
		writeError(w, http.StatusBadRequest, "invalid month or year", err)
		return
	}

	if district != "" {
		doc, err := h.Resolver.Resolve(r.Context(), state, district, month, year)
		if err != nil {
			h.serverError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, MetricsResponse{Row: doc})
		return
	}

	rows, err := h.compare(r.Context(), state, many, month, year)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ComparisonResponse{Rows: rows})
}

// compare resolves every district concurrently and keeps input order.
// Districts with no data are dropped.
func (h *Handler) compare(ctx context.Context, state string, names []string, month, year int) ([]ComparisonRowDTO, error) {
	docs := make([]*mgnrega.DistrictMonthMetrics, len(names))
	errs := make([]error, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			docs[i], errs[i] = h.Resolver.Resolve(ctx, state, name, month, year)
		}(i, name)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	rows := make([]ComparisonRowDTO, 0, len(names))
	for i, doc := range docs {
		if doc == nil {
			continue
		}
		rows = append(rows, ComparisonRowDTO{
			District:         names[i],
			Persondays:       doc.Cards.Persondays,
			HouseholdsWorked: doc.Cards.HouseholdsWorked,
			Stale:            doc.Stale,
		})
	}
	return rows, nil
}

// GetTrend returns persisted history for one district.
func (h *Handler) GetTrend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state := strings.TrimSpace(q.Get("state"))
	district := strings.TrimSpace(q.Get("district"))
	if state == "" || district == "" {
		writeError(w, http.StatusBadRequest, "missing state and district", nil)
		return
	}

	_, year := h.monthYear(r)
	months := positiveInt(q.Get("months"), h.TrendMonths)
	if months > maxTrendMonths {
		months = maxTrendMonths
	}

	points, err := h.Resolver.Trend(r.Context(), state, district, year, months)
	if err != nil {
		if mgnrega.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "invalid year", err)
			return
		}
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TrendResponse{State: state, District: district, Points: points})
}

// =============================================================================
// DIRECTORY HANDLERS
// =============================================================================

// ListDistricts searches the directory by name.
func (h *Handler) ListDistricts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DistrictsResponse{Districts: h.Directory.Search(r.URL.Query().Get("q"))})
}

// GetDistrictPage assembles the district page: current metrics plus, when
// those exist, the trend chart.
func (h *Handler) GetDistrictPage(w http.ResponseWriter, r *http.Request) {
	dist, known := h.Directory.Lookup(chi.URLParam(r, "state"), chi.URLParam(r, "district"))
	if dist.State == "" || dist.Name == "" {
		writeError(w, http.StatusBadRequest, "missing state or district", nil)
		return
	}

	month, year := h.monthYear(r)
	page := DistrictPageDTO{
		State:    dist.State,
		District: dist.Name,
		Known:    known,
		Month:    month,
		Year:     year,
		Trend:    []mgnrega.TrendPoint{},
	}

	doc, err := h.Resolver.Resolve(r.Context(), dist.State, dist.Name, month, year)
	if err != nil {
		if mgnrega.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "invalid month or year", err)
			return
		}
		h.serverError(w, r, err)
		return
	}
	if doc == nil {
		writeJSON(w, http.StatusOK, page)
		return
	}

	page.Available = true
	page.Metrics = doc
	trend, err := h.Resolver.Trend(r.Context(), dist.State, dist.Name, year, h.TrendMonths)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	page.Trend = trend
	writeJSON(w, http.StatusOK, page)
}

// =============================================================================
// GEO AND HEALTH
// =============================================================================

// ReverseGeocode maps ?lat=&lon= to a district.
func (h *Handler) ReverseGeocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	latStr, lonStr := strings.TrimSpace(q.Get("lat")), strings.TrimSpace(q.Get("lon"))
	if latStr == "" || lonStr == "" {
		writeError(w, http.StatusBadRequest, "missing lat/lon", nil)
		return
	}
	lat, errLat := strconv.ParseFloat(latStr, 64)
	lon, errLon := strconv.ParseFloat(lonStr, 64)
	if err := errors.Join(errLat, errLon); err != nil {
		writeError(w, http.StatusBadRequest, "invalid lat/lon", err)
		return
	}
	if h.Geocoder == nil {
		writeError(w, http.StatusBadGateway, "geocoding failed", nil)
		return
	}

	place, err := h.Geocoder.Reverse(r.Context(), lat, lon)
	if errors.Is(err, geo.ErrNoAddress) {
		writeJSON(w, http.StatusOK, GeoResponse{})
		return
	}
	if err != nil {
		logging.LogError(logging.FromContext(r.Context()), "reverse geocoding failed", err)
		writeError(w, http.StatusBadGateway, "geocoding failed", nil)
		return
	}
	writeJSON(w, http.StatusOK, GeoResponse{District: nonEmpty(place.District), State: nonEmpty(place.State)})
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthDTO{Status: "ok", Upstream: h.Resolver.UpstreamEnabled()})
}

// =============================================================================
// HELPERS
// =============================================================================

// monthYear reads ?month= and ?year=, defaulting each to the current month.
func (h *Handler) monthYear(r *http.Request) (int, int) {
	now := h.now()
	q := r.URL.Query()
	return positiveInt(q.Get("month"), int(now.Month())), positiveInt(q.Get("year"), now.Year())
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(logging.FromContext(r.Context()), "request failed", err,
		slog.String("path", r.URL.Path))
	writeError(w, http.StatusInternalServerError, "Server error", nil)
}

// positiveInt parses s, returning def for blanks, garbage and values <= 0.
func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// splitDistricts splits a comma list, dropping blanks and duplicates while
// keeping first-seen order.
func splitDistricts(s string) []string {
	seen := map[string]bool{}
	var out []string
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
