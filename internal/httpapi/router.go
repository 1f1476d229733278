// Package httpapi serves the reports as JSON (or Mermaid) over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jama-reports/internal/report"
)

// requestTimeout bounds every API call; a cold cache may need a full fetch.
const requestTimeout = 2 * time.Minute

// NewRouter sets up the routes and middleware of the report API.
func NewRouter(svc *report.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	h := NewHandlers(svc)

	r.Get("/healthz", HealthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/testplans", h.ListTestPlans)
		r.Get("/testcycles", h.ListTestCycles)
		r.Get("/status", h.CurrentStatus)
		r.Get("/historical", h.Historical)
		r.Get("/weekly", h.Weekly)
		r.Get("/current-week", h.CurrentWeekRuns)
		r.Get("/breakdown", h.Breakdown)
		r.Post("/refresh", h.Refresh)
		r.Get("/snapshot", h.Snapshots)
	})

	return http.TimeoutHandler(r, requestTimeout, `{"error":{"code":"TIMEOUT","message":"request timeout"}}`)
}
