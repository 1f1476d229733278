package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"jama-reports/internal/testrun"
)

func TestCache_Persistence(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.Local)

	c1 := New(&fakeFetcher{})
	c1.Put("NET", "Release 5", sampleRecords(), []testrun.Cycle{{ID: 10, Name: "Cycle A"}, {ID: 11, Name: "Cycle B"}}, now)
	if err := c1.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, runsFile)); err != nil {
		t.Fatalf("cache file missing: %v", err)
	}

	c2 := New(&fakeFetcher{})
	if err := c2.Load(dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	orig, _ := c1.Cached("NET", "Release 5")
	loaded, ok := c2.Cached("NET", "Release 5")
	if !ok {
		t.Fatal("expected the plan to be restored")
	}
	if diff := cmp.Diff(orig.Records(), loaded.Records()); diff != "" {
		t.Errorf("records mismatch after reload (-saved +loaded):\n%s", diff)
	}

	cycles, err := c2.TestCycles(t.Context(), "NET", "Release 5", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(cycles) != 2 || cycles[1].Name != "Cycle B" {
		t.Errorf("unexpected cycles %v", cycles)
	}
}

func TestCache_LoadMissingAndInvalid(t *testing.T) {
	dir := t.TempDir()
	c := New(&fakeFetcher{})
	if err := c.Load(dir); err != nil {
		t.Fatalf("missing cache must not fail: %v", err)
	}

	content := "not json\n" +
		`{"id":1,"project":"NET","testplan":"R5","testrun":"a","status":"PASSED","created_date":"2025-02-03T09:00:00Z","modified_date":"2025-02-03T09:00:00Z"}` + "\n" +
		`{"id":2,"project":"NET","testplan":"R5","testrun":"b","status":"SKIPPED","created_date":"2025-02-03T09:00:00Z","modified_date":"2025-02-03T09:00:00Z"}` + "\n"
	if err := os.WriteFile(filepath.Join(dir, runsFile), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.Load(dir); err != nil {
		t.Fatal(err)
	}
	table, ok := c.Cached("NET", "R5")
	if !ok || table.Len() != 1 {
		t.Errorf("expected one valid record, got %v", table.Len())
	}
}

func TestCache_PersistsEmptyPlans(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.Local)

	c1 := New(&fakeFetcher{})
	c1.Put("NET", "Release 5", sampleRecords(), nil, now)
	c1.Put("NET", "Release 6", nil, nil, now)
	if err := c1.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	f := &fakeFetcher{}
	c2 := New(f)
	if err := c2.Load(dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(c1.Keys(), c2.Keys()); diff != "" {
		t.Errorf("keys mismatch after reload (-saved +loaded):\n%s", diff)
	}

	table, err := c2.TestRuns(t.Context(), "NET", "Release 6", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != 0 {
		t.Errorf("expected the empty plan, got %d rows", table.Len())
	}
	if n := f.runCalls.Load(); n != 0 {
		t.Errorf("an empty cached plan must not be refetched, got %d fetches", n)
	}
}
