package testrun

import (
	"slices"
	"time"
)

// UI sentinels meaning "no filter" on the corresponding dimension.
const (
	AllTestCycles = "All Test Cycles"
	AllTestGroups = "All Test Groups"
)

// Table is an immutable set of records for one (project, plan[, cycle]) key.
// Tables are replaced wholesale on refresh and compared by pointer identity.
type Table struct {
	project   string
	plan      string
	records   []Record
	fetchedAt time.Time
}

// NewTable takes ownership of a copy of records.
func NewTable(project, plan string, records []Record, fetchedAt time.Time) *Table {
	return &Table{
		project:   project,
		plan:      plan,
		records:   slices.Clone(records),
		fetchedAt: fetchedAt,
	}
}

func (t *Table) Project() string { return t.project }

func (t *Table) TestPlan() string { return t.plan }

// FetchedAt is the time the underlying rows were retrieved from Jama.
func (t *Table) FetchedAt() time.Time { return t.fetchedAt }

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// Records returns a copy of the rows so callers cannot mutate the table.
func (t *Table) Records() []Record {
	if t == nil {
		return nil
	}
	return slices.Clone(t.records)
}

// Cycle returns a new table restricted to one test cycle.
func (t *Table) Cycle(name string) *Table {
	return &Table{
		project:   t.project,
		plan:      t.plan,
		records:   Filter{TestCycle: name}.Apply(t.records),
		fetchedAt: t.fetchedAt,
	}
}

// Filter returns the rows matching f.
func (t *Table) Filter(f Filter) []Record {
	if t == nil {
		return nil
	}
	return f.Apply(t.records)
}

// Filter selects records; empty fields match everything.
type Filter struct {
	TestCycle   string `json:"testcycle,omitempty"`
	TestGroup   string `json:"testgroup,omitempty"`
	Priority    string `json:"priority,omitempty"`
	AssignedTo  string `json:"assigned_to,omitempty"`
	TestNetwork string `json:"test_network,omitempty"`
	PlannedWeek string `json:"planned_week,omitempty"`
}

// FilterFromLabels builds a filter from dropdown labels, mapping the
// "All ..." sentinels to no restriction.
func FilterFromLabels(cycle, group string) Filter {
	if cycle == AllTestCycles {
		cycle = ""
	}
	if group == AllTestGroups {
		group = ""
	}
	return Filter{TestCycle: cycle, TestGroup: group}
}

func (f Filter) IsZero() bool {
	return f == Filter{}
}

func (f Filter) Match(r Record) bool {
	if f.TestCycle != "" && r.TestCycle != f.TestCycle {
		return false
	}
	if f.TestGroup != "" && r.TestGroup != f.TestGroup {
		return false
	}
	if f.Priority != "" && r.Priority != f.Priority {
		return false
	}
	if f.AssignedTo != "" && r.AssignedTo != f.AssignedTo {
		return false
	}
	if f.TestNetwork != "" && r.TestNetwork != f.TestNetwork {
		return false
	}
	if f.PlannedWeek != "" && r.PlannedWeek != f.PlannedWeek {
		return false
	}
	return true
}

// Apply returns a fresh slice with the matching records.
func (f Filter) Apply(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
