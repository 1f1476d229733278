package cache

import "github.com/prometheus/client_golang/prometheus"

var (
	requestsMetric = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jama_reports_cache_requests_total",
			Help: "Retrieval cache lookups by kind (testcycles, testruns) and result (hit, miss, refresh, error).",
		},
		[]string{"kind", "result"},
	)
	fetchDurationMetric = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jama_reports_fetch_duration_seconds",
			Help:    "Duration of fetches issued to Jama on cache misses and refreshes.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(requestsMetric, fetchDurationMetric)
}

const (
	kindCycles = "testcycles"
	kindRuns   = "testruns"

	resultHit     = "hit"
	resultMiss    = "miss"
	resultRefresh = "refresh"
	resultError   = "error"
)
