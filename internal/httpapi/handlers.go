package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"jama-reports/internal/report"
	"jama-reports/internal/stats"
	"jama-reports/internal/visuals"
)

var errInternal = errors.New("internal error")

// Handlers holds the HTTP handlers of the report API.
type Handlers struct {
	svc *report.Service
}

func NewHandlers(svc *report.Service) *Handlers {
	return &Handlers{svc: svc}
}

// HealthHandler reports liveness.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// respond writes the chart as text when format=mermaid, JSON otherwise.
func respond(w http.ResponseWriter, r *http.Request, v any, chart func() string) {
	if r.URL.Query().Get("format") == "mermaid" && chart != nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprintln(w, chart())
		return
	}
	writeJSON(w, v)
}

func (h *Handlers) query(r *http.Request) (report.Query, error) {
	return parseQuery(r.URL.Query(), h.svc.DefaultCollapse())
}

func (h *Handlers) ListTestPlans(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	if project == "" {
		writeJSON(w, h.svc.Plans())
		return
	}
	plans, err := h.svc.ActiveTestPlans(r.Context(), project)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, plans)
}

func (h *Handlers) ListTestCycles(w http.ResponseWriter, r *http.Request) {
	plan := r.URL.Query().Get("plan")
	cycles, err := h.svc.TestCycles(r.Context(), plan)
	if err != nil {
		WriteError(w, err)
		return
	}
	groups, err := h.svc.TestGroups(r.Context(), plan, r.URL.Query().Get("cycle"))
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, map[string]any{"testcycles": cycles, "testgroups": groups})
}

func (h *Handlers) CurrentStatus(w http.ResponseWriter, r *http.Request) {
	q, err := h.query(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	rep, err := h.svc.CurrentStatus(r.Context(), q)
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, r, rep, func() string {
		return visuals.StatusPie(rep.Counts, h.svc.Colormap(), rep.Plan)
	})
}

func (h *Handlers) Historical(w http.ResponseWriter, r *http.Request) {
	q, err := h.query(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	rep, err := h.svc.Historical(r.Context(), q)
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, r, rep, func() string {
		return visuals.HistoricalChart(rep.Series, rep.Burn, h.svc.Colormap(), rep.Plan)
	})
}

func (h *Handlers) Weekly(w http.ResponseWriter, r *http.Request) {
	q, err := h.query(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	rep, err := h.svc.Weekly(r.Context(), q)
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, r, rep, func() string {
		return visuals.WeeklyChart(rep.Buckets, rep.Statuses, h.svc.Colormap(), rep.Plan+" by planned week")
	})
}

func (h *Handlers) CurrentWeekRuns(w http.ResponseWriter, r *http.Request) {
	q, err := h.query(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	rep, err := h.svc.CurrentWeekRuns(r.Context(), q)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, rep)
}

func (h *Handlers) Breakdown(w http.ResponseWriter, r *http.Request) {
	q, err := h.query(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	dim, err := stats.ParseDimension(r.URL.Query().Get("by"))
	if err != nil {
		WriteError(w, badRequest{err})
		return
	}
	statuses, err := parseStatuses(r.URL.Query())
	if err != nil {
		WriteError(w, err)
		return
	}
	rep, err := h.svc.Breakdown(r.Context(), q, dim, statuses)
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, r, rep, func() string {
		return visuals.BreakdownChart(rep.Rows, rep.Statuses, h.svc.Colormap(), fmt.Sprintf("%s by %s", rep.Plan, dim))
	})
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	results, err := h.svc.Refresh(r.Context(), r.URL.Query().Get("plan"))
	if err != nil && len(results) == 0 {
		WriteError(w, err)
		return
	}
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_ = encode(w, results)
		return
	}
	writeJSON(w, results)
}

func (h *Handlers) Snapshots(w http.ResponseWriter, r *http.Request) {
	metas, err := h.svc.Snapshots(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, metas)
}
