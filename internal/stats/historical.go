package stats

import (
	"time"

	"jama-reports/internal/sprint"
	"jama-reports/internal/testrun"
)

// HistoricalPoint is the status distribution as it appeared at the start of Date.
type HistoricalPoint struct {
	Date     time.Time    `json:"date"`
	Label    string       `json:"label"`
	Total    int          `json:"total"`
	Counts   StatusCounts `json:"counts"`
	Partial  bool         `json:"partial,omitempty"`
	Warnings []string     `json:"warnings,omitempty"`
}

// HistoricalSeries is an ordered, finite day-by-day reconstruction.
type HistoricalSeries struct {
	Window   Window            `json:"window"`
	Statuses []testrun.Status  `json:"statuses"`
	Points   []HistoricalPoint `json:"points"`
}

// BuildHistoricalSeries replays the status distribution for every day in
// [start, end]. A zero start defaults to the day before the earliest
// modification; a zero end defaults to today.
//
// A run counts toward day d once it was created strictly before d, and its
// status is visible once it was modified strictly before d (both compared as
// local calendar dates). Runs created but not yet modified count as NOT_RUN.
// Days with no created or no modified runs are omitted. The input is never
// modified and every call recomputes from scratch.
func BuildHistoricalSeries(records []testrun.Record, start, end time.Time, collapse Collapse) (HistoricalSeries, error) {
	return BuildHistoricalSeriesBy(records, start, end, BucketDay, collapse)
}

// BuildHistoricalSeriesBy samples the series once per bucket instead of every
// day. A week or month point shows the state at the start of the following
// bucket, capped at the last day of the series, so it includes the progress
// made during the bucket and the last point matches the last daily one. The
// point keeps the label of its own bucket.
//
// Visible runs are always a subset of created runs, so the derived NOT_RUN of
// a point cannot go negative; Warnings stays empty unless that breaks.
func BuildHistoricalSeriesBy(records []testrun.Record, start, end time.Time, bucket string, collapse Collapse) (HistoricalSeries, error) {
	now := time.Now()
	series := HistoricalSeries{Statuses: collapse.Statuses()}
	if len(records) == 0 {
		return series, nil
	}
	if _, err := tallyRecords(records); err != nil {
		return series, err
	}

	loc := time.Local
	if end.IsZero() {
		end = now
	} else {
		loc = end.Location()
	}

	type dated struct {
		created  time.Time
		modified time.Time
		record   testrun.Record
	}
	rows := make([]dated, len(records))
	var earliest time.Time
	for i, r := range records {
		rows[i] = dated{
			created:  sprint.Day(r.Created.In(loc)),
			modified: sprint.Day(r.Modified.In(loc)),
			record:   r,
		}
		if earliest.IsZero() || rows[i].modified.Before(earliest) {
			earliest = rows[i].modified
		}
	}
	if start.IsZero() {
		start = earliest.AddDate(0, 0, -1)
	}

	window := NewWindow(start.In(loc), end.In(loc), bucket)
	series.Window = window
	lastDay := SnapToStart(end.In(loc), BucketDay)

	for _, bucketStart := range window.Subdivide() {
		day := bucketStart
		if window.Bucket != BucketDay {
			day = SnapToEnd(bucketStart, window.Bucket).Add(time.Nanosecond)
			if day.After(lastDay) {
				day = lastDay
			}
		}
		var created, modified []testrun.Record
		for _, row := range rows {
			if !row.created.Before(day) {
				continue
			}
			created = append(created, row.record)
			if row.modified.Before(day) {
				modified = append(modified, row.record)
			}
		}
		if len(created) == 0 || len(modified) == 0 {
			continue
		}

		total := len(created)
		t, _ := tallyRecords(modified)
		point := HistoricalPoint{
			Date:    day,
			Label:   window.GenerateLabel(bucketStart),
			Total:   total,
			Counts:  t.counts(collapse, &total),
			Partial: window.IsPartial(bucketStart, now),
		}
		if err := t.checkTotal(total); err != nil {
			point.Warnings = append(point.Warnings, err.Error())
		}
		series.Points = append(series.Points, point)
	}

	return series, nil
}

// Last returns the most recent point.
func (s HistoricalSeries) Last() (HistoricalPoint, bool) {
	if len(s.Points) == 0 {
		return HistoricalPoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}
