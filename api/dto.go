/*
dto.go - Data Transfer Objects for API responses

PURPOSE:
  JSON shapes returned by the HTTP surface. The resolved document itself
  (mgnrega.DistrictMonthMetrics) is already the wire contract consumed by
  the presentation layer and is returned as-is.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Response: Wrappers around lists or single documents

SEE ALSO:
  - handlers.go: Uses these types
  - mgnrega/types.go: DistrictMonthMetrics, TrendPoint
*/
package api

import (
	"github.com/ourvoice/mgnrega-engine/districts"
	"github.com/ourvoice/mgnrega-engine/mgnrega"
)

// =============================================================================
// METRICS
// =============================================================================

// MetricsResponse answers a single-district metrics query. Row is null when
// no tier had data.
type MetricsResponse struct {
	Row *mgnrega.DistrictMonthMetrics `json:"row"`
}

// ComparisonRowDTO is one district in a multi-district comparison.
type ComparisonRowDTO struct {
	District         string  `json:"district"`
	Persondays       float64 `json:"persondays"`
	HouseholdsWorked float64 `json:"householdsWorked"`
	Stale            bool    `json:"stale"`
}

// ComparisonResponse answers a multi-district metrics query.
type ComparisonResponse struct {
	Rows []ComparisonRowDTO `json:"rows"`
}

// TrendResponse wraps the chart points, oldest first.
type TrendResponse struct {
	State    string               `json:"state"`
	District string               `json:"district"`
	Points   []mgnrega.TrendPoint `json:"points"`
}

// =============================================================================
// DIRECTORY AND DISTRICT PAGE
// =============================================================================

// DistrictsResponse lists directory entries.
type DistrictsResponse struct {
	Districts []districts.District `json:"districts"`
}

// DistrictPageDTO is everything the district page renders. Trend is only
// populated when Metrics is present.
type DistrictPageDTO struct {
	State     string                        `json:"state"`
	District  string                        `json:"district"`
	Known     bool                          `json:"known"`
	Month     int                           `json:"month"`
	Year      int                           `json:"year"`
	Available bool                          `json:"available"`
	Metrics   *mgnrega.DistrictMonthMetrics `json:"metrics"`
	Trend     []mgnrega.TrendPoint          `json:"trend"`
}

// =============================================================================
// GEO, HEALTH, ERRORS
// =============================================================================

// GeoResponse is the reverse-geocoding result. Either field may be null.
type GeoResponse struct {
	District *string `json:"district"`
	State    *string `json:"state"`
}

// HealthDTO reports liveness and which optional tiers are active.
type HealthDTO struct {
	Status   string `json:"status"`
	Upstream bool   `json:"upstream"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
