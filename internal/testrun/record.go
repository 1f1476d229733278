package testrun

import (
	"time"

	"jama-reports/internal/sprint"
)

// Unassigned is the display value of an empty pick-list field.
const Unassigned = "Unassigned"

// Cycle identifies a test cycle inside a test plan.
type Cycle struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Record is an immutable snapshot of one test run as fetched from Jama.
type Record struct {
	ID        int    `json:"id"`
	Project   string `json:"project"`
	TestPlan  string `json:"testplan"`
	TestCycle string `json:"testcycle,omitempty"`
	TestGroup string `json:"testgroup,omitempty"`
	TestRun   string `json:"testrun"`

	Status Status `json:"status"`

	Created       time.Time  `json:"created_date"`
	Modified      time.Time  `json:"modified_date"`
	ExecutionDate *time.Time `json:"execution_date,omitempty"`

	Priority        string `json:"priority,omitempty"`
	AssignedTo      string `json:"assigned_to,omitempty"`
	BugID           string `json:"bug_id,omitempty"`
	NetworkType     string `json:"network_type,omitempty"`
	TestNetwork     string `json:"test_network,omitempty"`
	ExecutionMethod string `json:"execution_method,omitempty"`

	// PlannedWeek is the raw pick-list label; empty means unassigned.
	PlannedWeek string `json:"planned_week,omitempty"`
	// Week is PlannedWeek resolved once at mapping time. Nil when the label is
	// empty or does not parse.
	Week *sprint.Range `json:"week,omitempty"`
}

// ResolveWeek fills Week from PlannedWeek using now for year disambiguation.
// Records that already carry a resolved week are returned unchanged.
func (r Record) ResolveWeek(now time.Time) Record {
	if r.Week != nil || r.PlannedWeek == "" {
		return r
	}
	if rng, err := sprint.Resolve(r.PlannedWeek, now); err == nil {
		r.Week = &rng
	}
	return r
}

// CurrentWeekRow is the reduced column set shown in the current-week table.
type CurrentWeekRow struct {
	ID              int        `json:"id"`
	TestCycle       string     `json:"testcycle,omitempty"`
	TestGroup       string     `json:"testgroup,omitempty"`
	TestRun         string     `json:"testrun"`
	Status          Status     `json:"status"`
	ExecutionDate   *time.Time `json:"execution_date,omitempty"`
	Priority        string     `json:"priority,omitempty"`
	AssignedTo      string     `json:"assigned_to,omitempty"`
	BugID           string     `json:"bug_id,omitempty"`
	NetworkType     string     `json:"network_type,omitempty"`
	TestNetwork     string     `json:"test_network,omitempty"`
	ExecutionMethod string     `json:"execution_method,omitempty"`
}

// Row drops the bookkeeping columns (project, plan, timestamps, planned week).
func (r Record) Row() CurrentWeekRow {
	return CurrentWeekRow{
		ID:              r.ID,
		TestCycle:       r.TestCycle,
		TestGroup:       r.TestGroup,
		TestRun:         r.TestRun,
		Status:          r.Status,
		ExecutionDate:   r.ExecutionDate,
		Priority:        r.Priority,
		AssignedTo:      r.AssignedTo,
		BugID:           r.BugID,
		NetworkType:     r.NetworkType,
		TestNetwork:     r.TestNetwork,
		ExecutionMethod: r.ExecutionMethod,
	}
}
