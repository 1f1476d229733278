package stats

import (
	"time"

	"jama-reports/internal/sprint"
	"jama-reports/internal/testrun"
)

// BurnLine is the straight line a plan has to follow to run out of NOT_RUN
// test runs by its deadline.
type BurnLine struct {
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Remaining int       `json:"remaining"`
	// PerDay is the number of runs that must leave NOT_RUN each day.
	PerDay float64 `json:"per_day"`
	// Overdue is set when the deadline is not after the last point.
	Overdue bool `json:"overdue,omitempty"`
}

// RequiredBurnRate draws the line from the last point's NOT_RUN count down to
// zero at deadline. It reports false when the series is empty or deadline is
// zero.
func RequiredBurnRate(series HistoricalSeries, deadline time.Time) (BurnLine, bool) {
	last, ok := series.Last()
	if !ok || deadline.IsZero() {
		return BurnLine{}, false
	}

	line := BurnLine{
		From:      last.Date,
		To:        sprint.Day(deadline.In(last.Date.Location())),
		Remaining: last.Counts[testrun.StatusNotRun],
	}
	days := int(line.To.Sub(line.From).Hours()/24 + 0.5)
	if days <= 0 {
		line.Overdue = true
		line.PerDay = float64(line.Remaining)
		return line, true
	}
	line.PerDay = float64(line.Remaining) / float64(days)
	return line, true
}
