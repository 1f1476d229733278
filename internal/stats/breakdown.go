package stats

import (
	"fmt"
	"sort"
	"strings"

	"jama-reports/internal/sprint"
	"jama-reports/internal/testrun"
)

// Dimension is a record attribute a breakdown groups by.
type Dimension string

const (
	DimensionTestGroup   Dimension = "testgroup"
	DimensionAssignee    Dimension = "assigned_to"
	DimensionTestNetwork Dimension = "test_network"
	DimensionPlannedWeek Dimension = "planned_week"
)

// Dimensions lists the supported breakdown dimensions.
func Dimensions() []Dimension {
	return []Dimension{DimensionTestGroup, DimensionAssignee, DimensionTestNetwork, DimensionPlannedWeek}
}

// ParseDimension accepts a dimension name; "group", "assignee", "network" and
// "week" are accepted as short forms.
func ParseDimension(raw string) (Dimension, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "testgroup", "group", "test_group":
		return DimensionTestGroup, nil
	case "assigned_to", "assignee", "assignedto":
		return DimensionAssignee, nil
	case "test_network", "network", "testnetwork":
		return DimensionTestNetwork, nil
	case "planned_week", "week", "plannedweek":
		return DimensionPlannedWeek, nil
	}
	return "", fmt.Errorf("unknown breakdown dimension %q", raw)
}

func (d Dimension) key(r testrun.Record) string {
	switch d {
	case DimensionAssignee:
		return r.AssignedTo
	case DimensionTestNetwork:
		return r.TestNetwork
	case DimensionPlannedWeek:
		return r.PlannedWeek
	default:
		return r.TestGroup
	}
}

// byTotal reports whether rows are ranked by volume rather than by key.
func (d Dimension) byTotal() bool {
	return d == DimensionTestGroup || d == DimensionTestNetwork
}

// BreakdownRow holds the selected status counts of one dimension value.
type BreakdownRow struct {
	Key     string       `json:"key"`
	Display string       `json:"display"`
	Counts  StatusCounts `json:"counts"`
	Total   int          `json:"total"`

	week *sprint.Range
}

// Breakdown counts records per dimension value, keeping only statuses
// (every status when empty). Rows whose selected total is zero are dropped.
// Test groups and networks are ordered by total descending, assignees and
// weeks ascending with the unassigned row first. Planned weeks follow the
// BucketByPlannedWeek order: unresolved labels by name, then resolved weeks
// by start date.
func Breakdown(records []testrun.Record, dim Dimension, statuses []testrun.Status) ([]BreakdownRow, error) {
	if len(statuses) == 0 {
		statuses = testrun.Statuses()
	}

	groups := make(map[string][]testrun.Record)
	weeks := make(map[string]*sprint.Range)
	for _, r := range records {
		k := dim.key(r)
		groups[k] = append(groups[k], r)
		if dim == DimensionPlannedWeek && r.Week != nil && weeks[k] == nil {
			weeks[k] = r.Week
		}
	}

	rows := make([]BreakdownRow, 0, len(groups))
	for key, group := range groups {
		all, err := CountStatuses(group, Collapse{})
		if err != nil {
			return nil, err
		}
		counts := make(StatusCounts, len(statuses))
		for _, s := range statuses {
			counts[s] = all[s]
		}
		total := counts.Total()
		if total == 0 {
			continue
		}
		display := key
		if key == "" {
			display = testrun.Unassigned
		}
		rows = append(rows, BreakdownRow{Key: key, Display: display, Counts: counts, Total: total, week: weeks[key]})
	}

	sort.Slice(rows, func(i, j int) bool {
		if dim == DimensionPlannedWeek {
			return plannedWeekLess(rows[i].Key, rows[i].week, rows[j].Key, rows[j].week)
		}
		if dim.byTotal() && rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return rows[i].Key < rows[j].Key
	})
	return rows, nil
}
