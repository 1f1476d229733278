package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"jama-reports/internal/testrun"
)

type fakeFetcher struct {
	mu       sync.Mutex
	records  []testrun.Record
	cycles   []testrun.Cycle
	err      error
	runCalls atomic.Int32
	delay    time.Duration
}

func (f *fakeFetcher) FetchTestCycles(ctx context.Context, project, plan string) ([]testrun.Cycle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.cycles, nil
}

func (f *fakeFetcher) FetchTestRuns(ctx context.Context, project, plan string) ([]testrun.Record, error) {
	f.runCalls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeFetcher) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func sampleRecords() []testrun.Record {
	created := time.Date(2025, 2, 3, 9, 0, 0, 0, time.Local)
	return []testrun.Record{
		{ID: 1, Project: "NET", TestPlan: "Release 5", TestCycle: "Cycle A", TestRun: "login", Status: testrun.StatusPassed, Created: created, Modified: created, PlannedWeek: "Sprint3_Feb17-21"},
		{ID: 2, Project: "NET", TestPlan: "Release 5", TestCycle: "Cycle B", TestRun: "logout", Status: testrun.StatusNotRun, Created: created, Modified: created},
	}
}

func TestCache_TestRunsIdentity(t *testing.T) {
	f := &fakeFetcher{records: sampleRecords()}
	c := New(f)
	ctx := context.Background()

	first, err := c.TestRuns(ctx, "NET", "Release 5", "", false)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.TestRuns(ctx, "NET", "Release 5", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("expected the cached table to be returned unchanged")
	}
	if n := f.runCalls.Load(); n != 1 {
		t.Errorf("expected 1 fetch, got %d", n)
	}

	cycleA, _ := c.TestRuns(ctx, "NET", "Release 5", "Cycle A", false)
	cycleAAgain, _ := c.TestRuns(ctx, "NET", "Release 5", "Cycle A", false)
	if cycleA != cycleAAgain {
		t.Error("expected the cycle subset to be memoized")
	}
	if cycleA.Len() != 1 {
		t.Errorf("expected 1 record in Cycle A, got %d", cycleA.Len())
	}

	all, _ := c.TestRuns(ctx, "NET", "Release 5", testrun.AllTestCycles, false)
	if all != first {
		t.Error("the all-cycles sentinel must return the full table")
	}

	refreshed, err := c.TestRuns(ctx, "NET", "Release 5", "", true)
	if err != nil {
		t.Fatal(err)
	}
	if refreshed == first {
		t.Error("update must produce a new table even when content is unchanged")
	}
	if diff := cmp.Diff(first.Records(), refreshed.Records()); diff != "" {
		t.Errorf("content changed across refresh (-before +after):\n%s", diff)
	}
	if n := f.runCalls.Load(); n != 2 {
		t.Errorf("expected 2 fetches, got %d", n)
	}
}

func TestCache_ResolvesPlannedWeekOnce(t *testing.T) {
	c := New(&fakeFetcher{records: sampleRecords()})
	c.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.Local) }

	table, err := c.TestRuns(context.Background(), "NET", "Release 5", "", false)
	if err != nil {
		t.Fatal(err)
	}
	records := table.Records()
	if records[0].Week == nil || records[0].Week.Start.Day() != 17 {
		t.Errorf("expected planned week to resolve to Feb 17, got %+v", records[0].Week)
	}
	if records[1].Week != nil {
		t.Errorf("expected no week for unassigned run, got %+v", records[1].Week)
	}
}

func TestCache_FailureLeavesCacheUntouched(t *testing.T) {
	f := &fakeFetcher{records: sampleRecords(), cycles: []testrun.Cycle{{ID: 10, Name: "Cycle A"}}}
	c := New(f)
	ctx := context.Background()

	before, err := c.TestRuns(ctx, "NET", "Release 5", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.TestCycles(ctx, "NET", "Release 5", false); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("401 unauthorized")
	f.fail(boom)

	got, err := c.TestRuns(ctx, "NET", "Release 5", "", true)
	if !errors.Is(err, ErrFetchFailed) || !errors.Is(err, boom) {
		t.Fatalf("expected ErrFetchFailed wrapping the fetch error, got %v", err)
	}
	if got != nil {
		t.Error("a failed fetch must not return a table")
	}
	if _, err := c.TestCycles(ctx, "NET", "Release 5", true); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed for cycles, got %v", err)
	}

	after, err := c.TestRuns(ctx, "NET", "Release 5", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if after != before {
		t.Error("a failed refresh must keep the previous table")
	}
	cycles, err := c.TestCycles(ctx, "NET", "Release 5", false)
	if err != nil || len(cycles) != 1 {
		t.Errorf("expected cached cycles to survive, got %v, %v", cycles, err)
	}
}

func TestCache_MissWithFailingFetcher(t *testing.T) {
	c := New(&fakeFetcher{err: errors.New("connection refused")})
	if _, err := c.TestRuns(context.Background(), "NET", "Release 5", "", false); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed, got %v", err)
	}
	if _, ok := c.Cached("NET", "Release 5"); ok {
		t.Error("a failed miss must not populate the cache")
	}
}

func TestCache_ConcurrentMissesCoalesce(t *testing.T) {
	f := &fakeFetcher{records: sampleRecords(), delay: 50 * time.Millisecond}
	c := New(f)

	var wg sync.WaitGroup
	tables := make([]*testrun.Table, 8)
	for i := range tables {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tbl, err := c.TestRuns(context.Background(), "NET", "Release 5", "", false)
			if err != nil {
				t.Error(err)
				return
			}
			tables[i] = tbl
		}(i)
	}
	wg.Wait()

	for _, tbl := range tables {
		if tbl == nil || tbl.Len() != 2 {
			t.Fatalf("expected a full table, got %v", tbl)
		}
	}
	if n := f.runCalls.Load(); n > 2 {
		t.Errorf("expected concurrent misses to share fetches, got %d calls", n)
	}
}

func TestCache_CancelledCallerDoesNotFailOthers(t *testing.T) {
	f := &fakeFetcher{records: sampleRecords(), delay: 200 * time.Millisecond}
	c := New(f)

	first, cancel := context.WithCancel(context.Background())
	defer cancel()
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.TestRuns(first, "NET", "Release 5", "", false)
		firstErr <- err
	}()

	deadline := time.Now().Add(time.Second)
	for f.runCalls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("fetch never started")
		}
		time.Sleep(time.Millisecond)
	}

	type result struct {
		table *testrun.Table
		err   error
	}
	second := make(chan result, 1)
	go func() {
		tbl, err := c.TestRuns(context.Background(), "NET", "Release 5", "", false)
		second <- result{tbl, err}
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller: expected context.Canceled, got %v", err)
	}
	res := <-second
	if res.err != nil {
		t.Fatalf("live caller failed: %v", res.err)
	}
	if res.table.Len() != 2 {
		t.Errorf("expected a full table, got %d rows", res.table.Len())
	}
	if n := f.runCalls.Load(); n != 1 {
		t.Errorf("expected one shared fetch, got %d", n)
	}
	if _, ok := c.Cached("NET", "Release 5"); !ok {
		t.Error("the shared fetch should have populated the cache")
	}
}

func TestCache_ConcurrentRefreshAndRead(t *testing.T) {
	c := New(&fakeFetcher{records: sampleRecords()})
	ctx := context.Background()
	if _, err := c.TestRuns(ctx, "NET", "Release 5", "", false); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := c.TestRuns(ctx, "NET", "Release 5", "", true); err != nil {
				t.Error(err)
			}
		}()
		go func() {
			defer wg.Done()
			tbl, err := c.TestRuns(ctx, "NET", "Release 5", "Cycle B", false)
			if err != nil {
				t.Error(err)
				return
			}
			if tbl.Len() != 1 {
				t.Errorf("reader observed a partial table with %d rows", tbl.Len())
			}
		}()
	}
	wg.Wait()
}

func TestCache_InvalidateAndKeys(t *testing.T) {
	c := New(&fakeFetcher{})
	now := time.Now()
	c.Put("NET", "Release 5", sampleRecords(), nil, now)
	c.Put("CORE", "Release 1", nil, nil, now)

	want := []Key{{Project: "CORE", Plan: "Release 1"}, {Project: "NET", Plan: "Release 5"}}
	if diff := cmp.Diff(want, c.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}

	c.Invalidate("NET", "Release 5")
	if _, ok := c.Cached("NET", "Release 5"); ok {
		t.Error("expected the plan to be evicted")
	}
}
