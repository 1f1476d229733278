package report

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"jama-reports/internal/cache"
	"jama-reports/internal/config"
	"jama-reports/internal/jama"
	"jama-reports/internal/snapshot"
	"jama-reports/internal/stats"
	"jama-reports/internal/testrun"
)

const testConfig = `{
  "testplans": [
    {"displayName": "Release 5", "project": "NET", "name": "Release 5"},
    {"displayName": "Broken", "project": 17, "name": "Broken"}
  ],
  "chartSettings": {"testStart": "2025-02-03", "testDeadline": "2025-02-10"}
}`

type fakeFetcher struct {
	mu      sync.Mutex
	records []testrun.Record
	failing map[string]bool
	calls   int
}

func (f *fakeFetcher) FetchTestCycles(ctx context.Context, project, plan string) ([]testrun.Cycle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[plan] {
		return nil, errors.New("jama is down")
	}
	return []testrun.Cycle{{ID: 10, Name: "Cycle A"}, {ID: 11, Name: "Cycle B"}}, nil
}

func (f *fakeFetcher) FetchTestRuns(ctx context.Context, project, plan string) ([]testrun.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failing[plan] {
		return nil, errors.New("jama is down")
	}
	return f.records, nil
}

type fakePlans struct{ project string }

func (f *fakePlans) ListTestPlans(ctx context.Context, project string) ([]jama.TestPlan, error) {
	f.project = project
	return []jama.TestPlan{{ID: 1, Name: "Release 5", Active: true}}, nil
}

func day(d, hour int) time.Time {
	return time.Date(2025, 2, d, hour, 0, 0, 0, time.Local)
}

func fixtureRecords() []testrun.Record {
	return []testrun.Record{
		{ID: 1, TestCycle: "Cycle A", TestGroup: "Core", TestRun: "login", Status: testrun.StatusPassed, Created: day(3, 9), Modified: day(5, 10), AssignedTo: "ana", PlannedWeek: "2025-02-17"},
		{ID: 2, TestCycle: "Cycle A", TestGroup: "Core", TestRun: "logout", Status: testrun.StatusNotRun, Created: day(3, 9), Modified: day(3, 9), PlannedWeek: "2025-02-17"},
		{ID: 3, TestCycle: "Cycle B", TestGroup: "Edge", TestRun: "roaming", Status: testrun.StatusFailed, Created: day(3, 9), Modified: day(4, 11), Priority: "High"},
		{ID: 4, TestCycle: "Cycle B", TestGroup: "Edge", TestRun: "handover", Status: testrun.StatusBlocked, Created: day(4, 9), Modified: day(4, 12)},
	}
}

func newTestService(t *testing.T, opts ...Option) (*Service, *fakeFetcher) {
	t.Helper()
	cfg, err := config.ParseReportConfig([]byte(testConfig))
	if err != nil {
		t.Fatalf("ParseReportConfig: %v", err)
	}
	f := &fakeFetcher{records: fixtureRecords(), failing: map[string]bool{"Broken": true}}
	opts = append([]Option{WithClock(func() time.Time { return day(19, 8) })}, opts...)
	return NewService(cfg, cache.New(f), opts...), f
}

func TestCurrentStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rep, err := svc.CurrentStatus(ctx, Query{})
	if err != nil {
		t.Fatalf("CurrentStatus: %v", err)
	}
	want := stats.StatusCounts{
		testrun.StatusNotRun:     1,
		testrun.StatusPassed:     1,
		testrun.StatusFailed:     1,
		testrun.StatusInProgress: 0,
		testrun.StatusBlocked:    1,
	}
	if diff := cmp.Diff(want, rep.Counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	if rep.Plan != "Release 5" || rep.Total != 4 {
		t.Errorf("got plan %q total %d", rep.Plan, rep.Total)
	}

	collapsed, err := svc.CurrentStatus(ctx, Query{Plan: "NET:Release 5", Collapse: &stats.Collapse{BlockedIntoNotRun: true}})
	if err != nil {
		t.Fatalf("CurrentStatus collapsed: %v", err)
	}
	if collapsed.Counts[testrun.StatusNotRun] != 2 {
		t.Errorf("collapsed NOT_RUN = %d, want 2", collapsed.Counts[testrun.StatusNotRun])
	}
	if _, ok := collapsed.Counts[testrun.StatusBlocked]; ok {
		t.Error("BLOCKED should be absent once collapsed")
	}
}

func TestQueryFilters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		query Query
		want  int
	}{
		{"cycle", Query{Cycle: "Cycle B"}, 2},
		{"all cycles sentinel", Query{Cycle: testrun.AllTestCycles}, 4},
		{"group", Query{Group: "Core"}, 2},
		{"priority", Query{Priority: "High"}, 1},
		{"cycle and group", Query{Cycle: "Cycle A", Group: "Edge"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := svc.CurrentStatus(ctx, tt.query)
			if err != nil {
				t.Fatalf("CurrentStatus: %v", err)
			}
			if rep.Total != tt.want {
				t.Errorf("total = %d, want %d", rep.Total, tt.want)
			}
		})
	}
}

func TestUnknownPlan(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CurrentStatus(context.Background(), Query{Plan: "Release 9"})
	if !errors.Is(err, ErrUnknownTestPlan) {
		t.Fatalf("err = %v, want ErrUnknownTestPlan", err)
	}
}

func TestHistorical(t *testing.T) {
	svc, _ := newTestService(t)

	rep, err := svc.Historical(context.Background(), Query{End: day(6, 12)})
	if err != nil {
		t.Fatalf("Historical: %v", err)
	}

	var labels []string
	var notRun []int
	for _, p := range rep.Series.Points {
		labels = append(labels, p.Label)
		notRun = append(notRun, p.Counts[testrun.StatusNotRun])
	}
	if diff := cmp.Diff([]string{"2025-02-04", "2025-02-05", "2025-02-06"}, labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{3, 2, 1}, notRun); diff != "" {
		t.Errorf("NOT_RUN mismatch (-want +got):\n%s", diff)
	}
	if rep.Burn == nil {
		t.Fatal("expected a burn line towards the configured deadline")
	}
	if rep.Burn.Remaining != 1 {
		t.Errorf("burn remaining = %d, want 1", rep.Burn.Remaining)
	}
}

func TestWeeklyAndCurrentWeek(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	weekly, err := svc.Weekly(ctx, Query{})
	if err != nil {
		t.Fatalf("Weekly: %v", err)
	}
	var got []string
	for _, b := range weekly.Buckets {
		got = append(got, b.Label)
	}
	if diff := cmp.Diff([]string{"", "2025-02-17"}, got); diff != "" {
		t.Errorf("bucket labels mismatch (-want +got):\n%s", diff)
	}

	cw, err := svc.CurrentWeekRuns(ctx, Query{})
	if err != nil {
		t.Fatalf("CurrentWeekRuns: %v", err)
	}
	if cw.Week == nil || !cw.Week.Exact {
		t.Fatalf("expected an exact current week, got %+v", cw.Week)
	}
	var ids []int
	for _, r := range cw.Rows {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]int{1, 2}, ids); diff != "" {
		t.Errorf("current week rows mismatch (-want +got):\n%s", diff)
	}

	cw, err = svc.CurrentWeekRuns(ctx, Query{Cycle: "Cycle B"})
	if err != nil {
		t.Fatalf("CurrentWeekRuns: %v", err)
	}
	if cw.Week != nil || len(cw.Rows) != 0 {
		t.Errorf("cycle without planned weeks should report no week, got %+v", cw)
	}
}

func TestBreakdown(t *testing.T) {
	svc, _ := newTestService(t)

	rep, err := svc.Breakdown(context.Background(), Query{}, stats.DimensionTestGroup,
		[]testrun.Status{testrun.StatusFailed, testrun.StatusBlocked})
	if err != nil {
		t.Fatalf("Breakdown: %v", err)
	}
	if len(rep.Rows) != 1 || rep.Rows[0].Key != "Edge" || rep.Rows[0].Total != 2 {
		t.Errorf("rows = %+v, want a single Edge row with 2 runs", rep.Rows)
	}
}

func TestTestCyclesAndGroups(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cycles, err := svc.TestCycles(ctx, "Release 5")
	if err != nil {
		t.Fatalf("TestCycles: %v", err)
	}
	if len(cycles) != 2 {
		t.Errorf("got %d cycles, want 2", len(cycles))
	}

	groups, err := svc.TestGroups(ctx, "Release 5", "")
	if err != nil {
		t.Fatalf("TestGroups: %v", err)
	}
	if diff := cmp.Diff([]string{"Core", "Edge"}, groups); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}
}

func TestActiveTestPlans(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.ActiveTestPlans(context.Background(), "NET"); err == nil {
		t.Error("expected an error without a plan lister")
	}

	lister := &fakePlans{}
	svc, _ = newTestService(t, WithPlanLister(lister))
	plans, err := svc.ActiveTestPlans(context.Background(), "NET")
	if err != nil {
		t.Fatalf("ActiveTestPlans: %v", err)
	}
	if len(plans) != 1 || lister.project != "NET" {
		t.Errorf("plans = %+v, project = %q", plans, lister.project)
	}
}

func TestRefresh(t *testing.T) {
	store, err := snapshot.Open(filepath.Join(t.TempDir(), "snapshot.db"))
	if err != nil {
		t.Fatalf("snapshot.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	svc, f := newTestService(t, WithSnapshot(store))
	ctx := context.Background()

	if _, err := svc.CurrentStatus(ctx, Query{}); err != nil {
		t.Fatalf("CurrentStatus: %v", err)
	}

	results, err := svc.Refresh(ctx, "")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Error != "" || results[0].Records != 4 || results[0].Cycles != 2 {
		t.Errorf("Release 5 result = %+v", results[0])
	}
	if results[0].Snapshot == nil || results[0].Snapshot.Count != 4 {
		t.Errorf("Release 5 snapshot = %+v", results[0].Snapshot)
	}
	if results[1].Error == "" {
		t.Error("Broken plan should report its failure")
	}
	if f.calls != 2 {
		t.Errorf("fetcher called %d times, want 2 (initial load plus one refresh)", f.calls)
	}

	metas, err := svc.Snapshots(ctx)
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(metas) != 1 || metas[0].TestPlan != "Release 5" {
		t.Errorf("snapshots = %+v", metas)
	}

	if _, err := svc.Refresh(ctx, "Broken"); err == nil {
		t.Error("refreshing only a failing plan should return an error")
	}
}

func TestSnapshotsWithoutStore(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Snapshots(context.Background()); !errors.Is(err, snapshot.ErrNoSnapshot) {
		t.Errorf("err = %v, want ErrNoSnapshot", err)
	}
}
