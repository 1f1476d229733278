package stats

import (
	"sort"
	"time"

	"jama-reports/internal/sprint"
	"jama-reports/internal/testrun"
)

// WeekBucket is the status distribution of one planned week.
type WeekBucket struct {
	// Label is the raw planned-week value; empty is the unassigned bucket.
	Label   string        `json:"label"`
	Display string        `json:"display"`
	Week    *sprint.Range `json:"week,omitempty"`
	Counts  StatusCounts  `json:"counts"`
	Total   int           `json:"total"`
}

// BucketByPlannedWeek groups the records matching filter by planned week and
// counts each group. Buckets whose counts are all zero are dropped.
//
// Unassigned comes first, then labels that do not resolve to a date range
// (ascending), then resolved weeks by start date.
func BucketByPlannedWeek(records []testrun.Record, filter testrun.Filter, collapse Collapse) ([]WeekBucket, error) {
	groups := make(map[string][]testrun.Record)
	weeks := make(map[string]*sprint.Range)
	for _, r := range filter.Apply(records) {
		groups[r.PlannedWeek] = append(groups[r.PlannedWeek], r)
		if r.Week != nil && weeks[r.PlannedWeek] == nil {
			weeks[r.PlannedWeek] = r.Week
		}
	}

	buckets := make([]WeekBucket, 0, len(groups))
	for label, rows := range groups {
		counts, err := CountStatuses(rows, collapse)
		if err != nil {
			return nil, err
		}
		if counts.IsZero() {
			continue
		}
		b := WeekBucket{
			Label:   label,
			Display: label,
			Week:    weeks[label],
			Counts:  counts,
			Total:   counts.Total(),
		}
		switch {
		case label == "":
			b.Display = testrun.Unassigned
		case b.Week != nil:
			b.Display = b.Week.DisplayName()
		}
		buckets = append(buckets, b)
	}

	sort.Slice(buckets, func(i, j int) bool {
		return weekLess(buckets[i], buckets[j])
	})
	return buckets, nil
}

func weekLess(a, b WeekBucket) bool {
	return plannedWeekLess(a.Label, a.Week, b.Label, b.Week)
}

// plannedWeekLess orders the unassigned label first, then unresolved labels
// by name, then resolved weeks by start date.
func plannedWeekLess(la string, wa *sprint.Range, lb string, wb *sprint.Range) bool {
	ra, rb := weekRank(la, wa), weekRank(lb, wb)
	if ra != rb {
		return ra < rb
	}
	if ra == 2 && !wa.Start.Equal(wb.Start) {
		return wa.Start.Before(wb.Start)
	}
	return la < lb
}

func weekRank(label string, week *sprint.Range) int {
	switch {
	case label == "":
		return 0
	case week == nil:
		return 1
	default:
		return 2
	}
}

// CurrentWeekRuns returns the records matching filter whose planned week is
// the current one as of today (see sprint.FindCurrentWeek). The boolean is
// false when no planned week qualifies.
func CurrentWeekRuns(records []testrun.Record, filter testrun.Filter, today time.Time) ([]testrun.Record, sprint.CurrentWeek, bool) {
	matched := filter.Apply(records)

	seen := make(map[string]bool)
	var ranges []sprint.Range
	for _, r := range matched {
		if r.Week == nil || seen[r.PlannedWeek] {
			continue
		}
		seen[r.PlannedWeek] = true
		ranges = append(ranges, *r.Week)
	}

	current, ok := sprint.FindCurrentWeek(ranges, today)
	if !ok {
		return nil, sprint.CurrentWeek{}, false
	}

	out := make([]testrun.Record, 0)
	for _, r := range matched {
		if r.Week != nil && r.Week.Label == current.Range.Label {
			out = append(out, r)
		}
	}
	return out, current, true
}
