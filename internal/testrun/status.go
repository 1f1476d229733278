package testrun

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the execution state of a test run. The set is closed.
type Status string

const (
	StatusNotRun     Status = "NOT_RUN"
	StatusPassed     Status = "PASSED"
	StatusFailed     Status = "FAILED"
	StatusInProgress Status = "INPROGRESS"
	StatusBlocked    Status = "BLOCKED"
)

// ErrUnknownStatus is returned for status literals outside the closed set.
var ErrUnknownStatus = errors.New("unknown test run status")

var allStatuses = []Status{StatusNotRun, StatusPassed, StatusFailed, StatusInProgress, StatusBlocked}

// Statuses returns the canonical status order used for columns and chart series.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Valid reports whether s belongs to the closed status set.
func (s Status) Valid() bool {
	switch s {
	case StatusNotRun, StatusPassed, StatusFailed, StatusInProgress, StatusBlocked:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus maps a Jama testRunStatus literal onto the closed set.
// Jama reports "NOT_RUN", "PASSED", ... but older Contour instances use
// display names ("Not Run", "In Progress"), so matching ignores case, spaces
// and underscores.
func ParseStatus(raw string) (Status, error) {
	norm := strings.ToUpper(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.TrimSpace(raw)))
	switch norm {
	case "NOTRUN":
		return StatusNotRun, nil
	case "PASSED":
		return StatusPassed, nil
	case "FAILED":
		return StatusFailed, nil
	case "INPROGRESS":
		return StatusInProgress, nil
	case "BLOCKED":
		return StatusBlocked, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}
