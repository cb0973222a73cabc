// Package metrics holds the Prometheus collectors for the service.
// Collectors are registered on the default registry at init and exposed by
// the /metrics route.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mgnrega_resolutions_total",
		Help: "District/month resolutions by the tier that answered (store, cache, upstream, miss).",
	}, []string{"tier"})

	writeBackFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mgnrega_writeback_failures_total",
		Help: "Failed write-backs after an upstream fetch, by target.",
	}, []string{"target"})

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mgnrega_upstream_request_duration_seconds",
		Help:    "Latency of open-data API calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	cacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mgnrega_cache_requests_total",
		Help: "Cache lookups by backend and result (hit, miss).",
	}, []string{"backend", "result"})

	geocodeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mgnrega_geocode_requests_total",
		Help: "Reverse-geocoding lookups by result (cached, fetched, failed).",
	}, []string{"result"})
)

// ObserveResolution counts one resolution answered by tier.
func ObserveResolution(tier string) {
	resolutionsTotal.WithLabelValues(tier).Inc()
}

// ObserveWriteBackFailure counts one failed write-back to target.
func ObserveWriteBackFailure(target string) {
	writeBackFailuresTotal.WithLabelValues(target).Inc()
}

// ObserveUpstream records one upstream call.
func ObserveUpstream(err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	upstreamDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveCache counts one cache lookup.
func ObserveCache(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheRequestsTotal.WithLabelValues(backend, result).Inc()
}

// ObserveGeocode counts one reverse-geocoding lookup.
func ObserveGeocode(result string) {
	geocodeRequestsTotal.WithLabelValues(result).Inc()
}
