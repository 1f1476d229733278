package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"jama-reports/internal/cache"
	"jama-reports/internal/config"
	"jama-reports/internal/report"
	"jama-reports/internal/stats"
	"jama-reports/internal/testrun"
)

type stubFetcher struct{ err error }

func (f *stubFetcher) FetchTestCycles(ctx context.Context, project, plan string) ([]testrun.Cycle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []testrun.Cycle{{ID: 1, Name: "Cycle A"}}, nil
}

func (f *stubFetcher) FetchTestRuns(ctx context.Context, project, plan string) ([]testrun.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	created := time.Date(2025, 2, 3, 9, 0, 0, 0, time.Local)
	return []testrun.Record{
		{ID: 1, TestCycle: "Cycle A", TestGroup: "Core", TestRun: "login", Status: testrun.StatusPassed, Created: created, Modified: created, Priority: "High"},
		{ID: 2, TestCycle: "Cycle A", TestGroup: "Core", TestRun: "logout", Status: testrun.StatusInProgress, Created: created, Modified: created},
		{ID: 3, TestCycle: "Cycle A", TestGroup: "Edge", TestRun: "roaming", Status: testrun.StatusFailed, Created: created, Modified: created},
	}, nil
}

func newTestRouter(t *testing.T, f *stubFetcher) http.Handler {
	t.Helper()
	cfg, err := config.ParseReportConfig([]byte(`{"testplans": [{"displayName": "Release 5", "project": "NET", "name": "Release 5"}]}`))
	if err != nil {
		t.Fatalf("ParseReportConfig: %v", err)
	}
	return NewRouter(report.NewService(cfg, cache.New(f)))
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestRouter(t, &stubFetcher{}), "/healthz")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestCurrentStatusEndpoint(t *testing.T) {
	h := newTestRouter(t, &stubFetcher{})

	tests := []struct {
		name   string
		params url.Values
		want   stats.StatusCounts
	}{
		{
			name:   "whole plan",
			params: url.Values{"plan": {"Release 5"}},
			want: stats.StatusCounts{
				testrun.StatusNotRun: 0, testrun.StatusPassed: 1, testrun.StatusFailed: 1,
				testrun.StatusInProgress: 1, testrun.StatusBlocked: 0,
			},
		},
		{
			name:   "collapsed in-progress",
			params: url.Values{"collapse_inprogress": {"true"}},
			want: stats.StatusCounts{
				testrun.StatusNotRun: 1, testrun.StatusPassed: 1, testrun.StatusFailed: 1,
				testrun.StatusBlocked: 0,
			},
		},
		{
			name:   "group filter",
			params: url.Values{"group": {"Edge"}},
			want: stats.StatusCounts{
				testrun.StatusNotRun: 0, testrun.StatusPassed: 0, testrun.StatusFailed: 1,
				testrun.StatusInProgress: 0, testrun.StatusBlocked: 0,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, "/api/status?"+tt.params.Encode())
			if rec.Code != http.StatusOK {
				t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
			}
			var got report.StatusReport
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if diff := cmp.Diff(tt.want, got.Counts); diff != "" {
				t.Errorf("counts mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMermaidFormat(t *testing.T) {
	rec := get(t, newTestRouter(t, &stubFetcher{}), "/api/status?format=mermaid")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "pie title Release 5") {
		t.Errorf("body:\n%s", rec.Body.String())
	}
}

func TestErrorMapping(t *testing.T) {
	h := newTestRouter(t, &stubFetcher{})

	tests := []struct {
		target string
		status int
		code   string
	}{
		{"/api/status?plan=Release+9", http.StatusNotFound, "UNKNOWN_TESTPLAN"},
		{"/api/status?collapse_blocked=maybe", http.StatusBadRequest, "BAD_REQUEST"},
		{"/api/historical?start=2025/02/03", http.StatusBadRequest, "BAD_REQUEST"},
		{"/api/historical?bucket=quarter", http.StatusBadRequest, "BAD_REQUEST"},
		{"/api/breakdown?by=colour", http.StatusBadRequest, "BAD_REQUEST"},
		{"/api/breakdown?by=group&status=SKIPPED", http.StatusBadRequest, "BAD_REQUEST"},
		{"/api/snapshot", http.StatusNotFound, "NO_SNAPSHOT"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, h, tt.target)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			var body ErrorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.code)
			}
		})
	}
}

func TestFetchFailureIsBadGateway(t *testing.T) {
	h := newTestRouter(t, &stubFetcher{err: errors.New("connection refused")})
	rec := get(t, h, "/api/weekly")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestBreakdownEndpoint(t *testing.T) {
	rec := get(t, newTestRouter(t, &stubFetcher{}), "/api/breakdown?by=testgroup&status=passed,failed")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var got report.BreakdownReport
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff([]testrun.Status{testrun.StatusPassed, testrun.StatusFailed}, got.Statuses); diff != "" {
		t.Errorf("statuses mismatch (-want +got):\n%s", diff)
	}
	if len(got.Rows) != 2 {
		t.Errorf("got %d rows, want 2", len(got.Rows))
	}
}

func TestRefreshEndpoint(t *testing.T) {
	h := newTestRouter(t, &stubFetcher{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var results []report.RefreshResult
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 1 || results[0].Records != 3 {
		t.Errorf("results = %+v", results)
	}

	rec = get(t, h, "/api/refresh")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/refresh = %d, want 405", rec.Code)
	}
}

func TestMetricsExposed(t *testing.T) {
	h := newTestRouter(t, &stubFetcher{})
	get(t, h, "/api/status")
	rec := get(t, h, "/metrics")
	if !strings.Contains(rec.Body.String(), "jama_reports_cache_requests_total") {
		t.Error("cache metrics missing from /metrics")
	}
}
