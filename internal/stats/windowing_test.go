package stats

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"jama-reports/internal/testrun"
)

func TestSnapToStart(t *testing.T) {
	wed := at(2025, 3, 12, 15)
	tests := []struct {
		bucket string
		want   time.Time
	}{
		{BucketDay, at(2025, 3, 12, 0)},
		{BucketWeek, at(2025, 3, 10, 0)},
		{BucketMonth, at(2025, 3, 1, 0)},
	}
	for _, tt := range tests {
		if got := SnapToStart(wed, tt.bucket); !got.Equal(tt.want) {
			t.Errorf("SnapToStart(%s) = %v, want %v", tt.bucket, got, tt.want)
		}
	}

	sunday := at(2025, 3, 16, 10)
	if got := SnapToStart(sunday, BucketWeek); !got.Equal(at(2025, 3, 10, 0)) {
		t.Errorf("Sunday should snap to the preceding Monday, got %v", got)
	}
}

func TestWindowSubdivide(t *testing.T) {
	w := NewWindow(at(2025, 3, 12, 15), at(2025, 3, 14, 9), BucketDay)

	var labels []string
	for _, b := range w.Subdivide() {
		labels = append(labels, w.GenerateLabel(b))
	}
	if diff := cmp.Diff([]string{"2025-03-12", "2025-03-13", "2025-03-14"}, labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}

	if !w.IsPartial(at(2025, 3, 14, 0), at(2025, 3, 14, 11)) {
		t.Error("today's bucket should be partial")
	}
	if w.IsPartial(at(2025, 3, 13, 0), at(2025, 3, 14, 11)) {
		t.Error("yesterday's bucket should not be partial")
	}
}

func TestParseBucket(t *testing.T) {
	for raw, want := range map[string]string{"": BucketDay, "day": BucketDay, "week": BucketWeek, "month": BucketMonth} {
		got, err := ParseBucket(raw)
		if err != nil || got != want {
			t.Errorf("ParseBucket(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}
	if _, err := ParseBucket("quarter"); err == nil {
		t.Error("expected an error for an unknown bucket")
	}
}

func TestBuildHistoricalSeriesBy_Week(t *testing.T) {
	records := []testrun.Record{
		{ID: 1, Status: testrun.StatusPassed, Created: at(2025, 3, 3, 8), Modified: at(2025, 3, 5, 8)},
		{ID: 2, Status: testrun.StatusFailed, Created: at(2025, 3, 3, 8), Modified: at(2025, 3, 12, 8)},
	}

	series, err := BuildHistoricalSeriesBy(records, at(2025, 3, 3, 0), at(2025, 3, 19, 0), BucketWeek, Collapse{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	type point struct {
		Label                  string
		NotRun, Passed, Failed int
	}
	var got []point
	for _, p := range series.Points {
		got = append(got, point{p.Label, p.Counts[testrun.StatusNotRun], p.Counts[testrun.StatusPassed], p.Counts[testrun.StatusFailed]})
	}
	want := []point{
		{"2025-W10", 1, 1, 0},
		{"2025-W11", 0, 1, 1},
		{"2025-W12", 0, 1, 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("weekly series mismatch (-want +got):\n%s", diff)
	}
	if first := series.Points[0]; !first.Date.Equal(at(2025, 3, 10, 0)) {
		t.Errorf("W10 should be evaluated at the start of W11, got %v", first.Date)
	}
}

func TestBuildHistoricalSeriesBy_LastPointMatchesDaily(t *testing.T) {
	records := []testrun.Record{
		{ID: 1, Status: testrun.StatusPassed, Created: at(2025, 3, 3, 8), Modified: at(2025, 3, 4, 8)},
		{ID: 2, Status: testrun.StatusPassed, Created: at(2025, 3, 3, 8), Modified: at(2025, 3, 13, 8)},
	}
	start, end := at(2025, 3, 3, 0), at(2025, 3, 16, 0)

	daily, err := BuildHistoricalSeries(records, start, end, Collapse{})
	if err != nil {
		t.Fatal(err)
	}
	lastDay, ok := daily.Last()
	if !ok {
		t.Fatal("expected a daily series")
	}

	for _, bucket := range []string{BucketWeek, BucketMonth} {
		series, err := BuildHistoricalSeriesBy(records, start, end, bucket, Collapse{})
		if err != nil {
			t.Fatal(err)
		}
		last, ok := series.Last()
		if !ok {
			t.Fatalf("%s: expected a series", bucket)
		}
		if !last.Date.Equal(lastDay.Date) {
			t.Errorf("%s: last point at %v, want %v", bucket, last.Date, lastDay.Date)
		}
		if diff := cmp.Diff(lastDay.Counts, last.Counts); diff != "" {
			t.Errorf("%s: last point mismatch (-daily +%s):\n%s", bucket, bucket, diff)
		}
		if last.Counts[testrun.StatusPassed] != 2 {
			t.Errorf("%s: expected both runs passed, got %v", bucket, last.Counts)
		}
	}
}
