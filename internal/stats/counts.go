package stats

import (
	"errors"
	"fmt"

	"jama-reports/internal/testrun"
)

// ErrInconsistentTotals marks a row whose derived NOT_RUN went negative
// because the total override is smaller than the transitioned runs.
var ErrInconsistentTotals = errors.New("inconsistent totals")

// Collapse folds granular statuses into NOT_RUN for simplified reporting.
type Collapse struct {
	BlockedIntoNotRun    bool `json:"collapse_blocked"`
	InProgressIntoNotRun bool `json:"collapse_inprogress"`
}

// Statuses returns the visible statuses under c, in canonical order.
func (c Collapse) Statuses() []testrun.Status {
	out := make([]testrun.Status, 0, 5)
	for _, s := range testrun.Statuses() {
		if s == testrun.StatusBlocked && c.BlockedIntoNotRun {
			continue
		}
		if s == testrun.StatusInProgress && c.InProgressIntoNotRun {
			continue
		}
		out = append(out, s)
	}
	return out
}

// StatusCounts maps a status to its run count. Collapsed statuses are absent.
type StatusCounts map[testrun.Status]int

// Total sums every count.
func (c StatusCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// IsZero reports whether every count is zero.
func (c StatusCounts) IsZero() bool {
	for _, v := range c {
		if v != 0 {
			return false
		}
	}
	return true
}

// Ordered returns the present statuses in canonical order.
func (c StatusCounts) Ordered() []testrun.Status {
	out := make([]testrun.Status, 0, len(c))
	for _, s := range testrun.Statuses() {
		if _, ok := c[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// CountStatuses tallies records per status and applies collapsing.
// An empty input yields all-zero counts.
func CountStatuses(records []testrun.Record, collapse Collapse) (StatusCounts, error) {
	t, err := tallyRecords(records)
	if err != nil {
		return nil, err
	}
	return t.counts(collapse, nil), nil
}

// CountStatusesWithTotal derives NOT_RUN as total minus every other status
// instead of counting it, so runs absent from records count as NOT_RUN.
// A negative NOT_RUN is kept in the result, never clamped; see CheckTotals.
func CountStatusesWithTotal(records []testrun.Record, collapse Collapse, total int) (StatusCounts, error) {
	t, err := tallyRecords(records)
	if err != nil {
		return nil, err
	}
	return t.counts(collapse, &total), nil
}

// CheckTotals returns an error wrapping ErrInconsistentTotals when records
// hold more non-NOT_RUN runs than total allows.
func CheckTotals(records []testrun.Record, total int) error {
	t, err := tallyRecords(records)
	if err != nil {
		return err
	}
	return t.checkTotal(total)
}

type tally struct {
	notRun, passed, failed, inProgress, blocked int
}

func tallyRecords(records []testrun.Record) (tally, error) {
	var t tally
	for _, r := range records {
		switch r.Status {
		case testrun.StatusNotRun:
			t.notRun++
		case testrun.StatusPassed:
			t.passed++
		case testrun.StatusFailed:
			t.failed++
		case testrun.StatusInProgress:
			t.inProgress++
		case testrun.StatusBlocked:
			t.blocked++
		default:
			return tally{}, fmt.Errorf("test run %d: %w: %q", r.ID, testrun.ErrUnknownStatus, r.Status)
		}
	}
	return t, nil
}

func (t tally) transitioned() int {
	return t.passed + t.failed + t.blocked + t.inProgress
}

func (t tally) checkTotal(total int) error {
	if n := t.transitioned(); n > total {
		return fmt.Errorf("%w: %d runs have a status but only %d exist", ErrInconsistentTotals, n, total)
	}
	return nil
}

// counts builds a fresh map; collapsing happens after the override.
func (t tally) counts(c Collapse, total *int) StatusCounts {
	notRun := t.notRun
	if total != nil {
		notRun = *total - t.transitioned()
	}

	out := StatusCounts{
		testrun.StatusNotRun: notRun,
		testrun.StatusPassed: t.passed,
		testrun.StatusFailed: t.failed,
	}
	if c.InProgressIntoNotRun {
		out[testrun.StatusNotRun] += t.inProgress
	} else {
		out[testrun.StatusInProgress] = t.inProgress
	}
	if c.BlockedIntoNotRun {
		out[testrun.StatusNotRun] += t.blocked
	} else {
		out[testrun.StatusBlocked] = t.blocked
	}
	return out
}
