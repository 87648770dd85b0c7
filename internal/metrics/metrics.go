package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Redirects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redirect_requests_total",
		Help: "Total successful redirects.",
	})
	Shortens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shorten_requests_total",
		Help: "Shorten requests by outcome.",
	}, []string{"outcome"}) // created, existing
	CacheHit = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hit_total",
		Help: "Cache hits.",
	}, []string{"kind"})
	CacheMiss = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_miss_total",
		Help: "Cache misses.",
	}, []string{"kind"})
	CacheErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_errors_total",
		Help: "Cache operations that failed and were skipped.",
	}, []string{"op"})
	VisitsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "visits_recorded_total",
		Help: "Visit events appended to the store.",
	})
	VisitsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "visits_failed_total",
		Help: "Visit events that could not be stored.",
	})
	VisitsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "visits_dropped_total",
		Help: "Visit events dropped because the recorder was closed.",
	})
	VisitsInline = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "visits_inline_total",
		Help: "Visit events stored on the request path because the buffer was full.",
	})
	GeoFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geo_lookup_failures_total",
		Help: "Geo lookups that failed or timed out.",
	})
	AnalyticsQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_queries_total",
		Help: "Analytics queries by view.",
	}, []string{"view"}) // alias, topic, owner
)

func init() {
	prometheus.MustRegister(Redirects, Shortens, CacheHit, CacheMiss, CacheErrors,
		VisitsRecorded, VisitsFailed, VisitsDropped, VisitsInline, GeoFailures, AnalyticsQueries)
}

func Handler(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
