package mcp

import (
	"fmt"
	"strings"
	"time"

	"jama-reports/internal/report"
	"jama-reports/internal/stats"
	"jama-reports/internal/testrun"
)

type listPlansArgs struct {
	Project string `json:"project,omitempty" jsonschema:"Optional Jama project id. When set, lists the active test plans of that project in Jama instead of the configured ones."`
}

type planArgs struct {
	Plan string `json:"testplan,omitempty" jsonschema:"Display name or 'project:name' of a configured test plan. Default: the first configured plan."`
}

type selectionArgs struct {
	Plan               string `json:"testplan,omitempty" jsonschema:"Display name or 'project:name' of a configured test plan. Default: the first configured plan."`
	Cycle              string `json:"testcycle,omitempty" jsonschema:"Optional test cycle name. 'All Test Cycles' or empty selects the whole plan."`
	Group              string `json:"testgroup,omitempty" jsonschema:"Optional test group name. 'All Test Groups' or empty selects every group."`
	Priority           string `json:"priority,omitempty" jsonschema:"Optional priority label to filter on."`
	CollapseBlocked    *bool  `json:"collapse_blocked,omitempty" jsonschema:"Count BLOCKED runs as NOT_RUN."`
	CollapseInProgress *bool  `json:"collapse_inprogress,omitempty" jsonschema:"Count INPROGRESS runs as NOT_RUN."`
}

type historicalArgs struct {
	Plan               string `json:"testplan,omitempty" jsonschema:"Display name or 'project:name' of a configured test plan. Default: the first configured plan."`
	Cycle              string `json:"testcycle,omitempty" jsonschema:"Optional test cycle name."`
	Group              string `json:"testgroup,omitempty" jsonschema:"Optional test group name."`
	Priority           string `json:"priority,omitempty" jsonschema:"Optional priority label to filter on."`
	CollapseBlocked    *bool  `json:"collapse_blocked,omitempty" jsonschema:"Count BLOCKED runs as NOT_RUN."`
	CollapseInProgress *bool  `json:"collapse_inprogress,omitempty" jsonschema:"Count INPROGRESS runs as NOT_RUN."`
	StartDate          string `json:"start_date,omitempty" jsonschema:"Optional first day (YYYY-MM-DD). Default: the configured test start, else the day before the first modification."`
	EndDate            string `json:"end_date,omitempty" jsonschema:"Optional last day (YYYY-MM-DD). Default: today."`
	Granularity        string `json:"granularity,omitempty" jsonschema:"Sampling interval: day (default), week or month. Use week for plans spanning several months."`
}

type breakdownArgs struct {
	Plan     string   `json:"testplan,omitempty" jsonschema:"Display name or 'project:name' of a configured test plan. Default: the first configured plan."`
	Cycle    string   `json:"testcycle,omitempty" jsonschema:"Optional test cycle name."`
	Group    string   `json:"testgroup,omitempty" jsonschema:"Optional test group name."`
	Priority string   `json:"priority,omitempty" jsonschema:"Optional priority label to filter on."`
	By       string   `json:"by" jsonschema:"Dimension to break down by: testgroup, assigned_to, test_network or planned_week."`
	Statuses []string `json:"statuses,omitempty" jsonschema:"Optional statuses to count (e.g. ['FAILED', 'BLOCKED']). Default: every status."`
}

type refreshArgs struct {
	Plan string `json:"testplan,omitempty" jsonschema:"Optional test plan to refresh. Default: every configured plan."`
}

type emptyArgs struct{}

func (s *Server) registerTools() {
	addTool(s, "list_testplans",
		"List the configured test plans. With 'project', list the active (non-archived) test plans of that Jama project instead.",
		s.handleListTestPlans)
	addTool(s, "list_testcycles",
		"List the test cycles and test groups of a test plan. Use the names as 'testcycle' and 'testgroup' filters of the status tools.",
		s.handleListTestCycles)
	addTool(s, "get_current_status",
		"Get the current number of test runs per status (NOT_RUN, PASSED, FAILED, INPROGRESS, BLOCKED) for a test plan, optionally narrowed to a cycle, group or priority.",
		s.handleCurrentStatus)
	addTool(s, "get_historical_status",
		"Reconstruct the daily status distribution of a test plan from creation and modification dates. "+
			"Each point shows the statuses as they were at the start of that day. Includes the burn rate needed to reach the configured deadline.\n\n"+
			"The reconstruction only knows the latest status of every run; intermediate transitions are not recorded.",
		s.handleHistoricalStatus)
	addTool(s, "get_weekly_status",
		"Get the status distribution per planned week (sprint) of a test plan. Runs without a planned week are grouped as 'Unassigned'.",
		s.handleWeeklyStatus)
	addTool(s, "get_current_week_runs",
		"List the test runs planned for the current week. When no planned week contains today, the most recently closed week is used and 'exact' is false.",
		s.handleCurrentWeekRuns)
	addTool(s, "get_status_breakdown",
		"Count test runs per test group, assignee, test network or planned week, restricted to the requested statuses. Use it to find where failures or blockers concentrate.",
		s.handleStatusBreakdown)
	addTool(s, "refresh_testruns",
		"Re-fetch test runs from Jama for one test plan or for all of them. Cached data is kept for plans whose refresh fails.",
		s.handleRefresh)
	addTool(s, "list_snapshots",
		"List the datasets stored in the local snapshot database with their record counts and last change.",
		s.handleListSnapshots)
}

func (s *Server) collapse(blocked, inProgress *bool) *stats.Collapse {
	if blocked == nil && inProgress == nil {
		return nil
	}
	c := s.svc.DefaultCollapse()
	if blocked != nil {
		c.BlockedIntoNotRun = *blocked
	}
	if inProgress != nil {
		c.InProgressIntoNotRun = *inProgress
	}
	return &c
}

func (s *Server) selection(a selectionArgs) report.Query {
	return report.Query{
		Plan:     a.Plan,
		Cycle:    a.Cycle,
		Group:    a.Group,
		Priority: a.Priority,
		Collapse: s.collapse(a.CollapseBlocked, a.CollapseInProgress),
	}
}

func parseDay(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(value), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: expected YYYY-MM-DD", field, value)
	}
	return t, nil
}

func parseStatuses(raw []string) ([]testrun.Status, error) {
	out := make([]testrun.Status, 0, len(raw))
	for _, r := range raw {
		st, err := testrun.ParseStatus(r)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
