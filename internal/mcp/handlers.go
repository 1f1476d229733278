package mcp

import (
	"context"
	"fmt"

	"jama-reports/internal/report"
	"jama-reports/internal/stats"
	"jama-reports/internal/testrun"
	"jama-reports/internal/visuals"
)

func (s *Server) handleListTestPlans(ctx context.Context, a listPlansArgs) (ResponseEnvelope, error) {
	if a.Project == "" {
		plans := s.svc.Plans()
		guidance := []string{
			"Pass a plan's 'displayName' as 'testplan' to the status tools.",
			"Call 'list_testcycles' to discover cycle and group names for filtering.",
		}
		if len(plans) == 0 {
			guidance = []string{"No test plans are configured. Add them to the report config file and restart."}
		}
		return WrapResponse(plans, "", nil, nil, guidance), nil
	}

	plans, err := s.svc.ActiveTestPlans(ctx, a.Project)
	if err != nil {
		return ResponseEnvelope{}, err
	}
	guidance := []string{
		"Only configured test plans can be reported on. Add the ones you need to the report config file.",
	}
	return WrapResponse(plans, "", map[string]any{"project": a.Project}, nil, guidance), nil
}

func (s *Server) handleListTestCycles(ctx context.Context, a planArgs) (ResponseEnvelope, error) {
	cycles, err := s.svc.TestCycles(ctx, a.Plan)
	if err != nil {
		return ResponseEnvelope{}, err
	}
	groups, err := s.svc.TestGroups(ctx, a.Plan, "")
	if err != nil {
		return ResponseEnvelope{}, err
	}
	res := map[string]any{
		"testcycles": cycles,
		"testgroups": groups,
	}
	return WrapResponse(res, a.Plan, nil, nil, nil), nil
}

func (s *Server) handleCurrentStatus(ctx context.Context, a selectionArgs) (ResponseEnvelope, error) {
	rep, err := s.svc.CurrentStatus(ctx, s.selection(a))
	if err != nil {
		return ResponseEnvelope{}, err
	}

	var guidance []string
	if rep.Total == 0 {
		guidance = append(guidance, "No test runs match this selection. Check the cycle and group names with 'list_testcycles'.")
	}
	env := WrapResponse(rep, rep.Plan, selectionContext(a.Cycle, a.Group, a.Priority), nil, guidance)
	env.Chart = visuals.StatusPie(rep.Counts, s.svc.Colormap(), rep.Plan)
	return env, nil
}

func (s *Server) handleHistoricalStatus(ctx context.Context, a historicalArgs) (ResponseEnvelope, error) {
	start, err := parseDay("start_date", a.StartDate)
	if err != nil {
		return ResponseEnvelope{}, err
	}
	end, err := parseDay("end_date", a.EndDate)
	if err != nil {
		return ResponseEnvelope{}, err
	}

	q := s.selection(selectionArgs{
		Plan:               a.Plan,
		Cycle:              a.Cycle,
		Group:              a.Group,
		Priority:           a.Priority,
		CollapseBlocked:    a.CollapseBlocked,
		CollapseInProgress: a.CollapseInProgress,
	})
	q.Start, q.End = start, end
	q.Bucket = a.Granularity

	rep, err := s.svc.Historical(ctx, q)
	if err != nil {
		return ResponseEnvelope{}, err
	}

	var warnings []string
	for _, p := range rep.Series.Points {
		for _, w := range p.Warnings {
			warnings = append(warnings, p.Label+": "+w)
		}
	}
	guidance := []string{
		"Each point is the state at the START of that day; runs modified on the day itself appear on the next point.",
	}
	if rep.Burn != nil && rep.Burn.Overdue {
		guidance = append(guidance, "The configured deadline has passed while runs are still NOT_RUN.")
	}
	if len(rep.Series.Points) == 0 {
		guidance = append(guidance, "No day in the window had created and modified runs. Try an earlier start_date.")
	}

	env := WrapResponse(rep, rep.Plan, selectionContext(a.Cycle, a.Group, a.Priority), warnings, guidance)
	env.Chart = visuals.HistoricalChart(rep.Series, rep.Burn, s.svc.Colormap(), rep.Plan)
	return env, nil
}

func (s *Server) handleWeeklyStatus(ctx context.Context, a selectionArgs) (ResponseEnvelope, error) {
	rep, err := s.svc.Weekly(ctx, s.selection(a))
	if err != nil {
		return ResponseEnvelope{}, err
	}
	env := WrapResponse(rep, rep.Plan, selectionContext(a.Cycle, a.Group, a.Priority), nil, nil)
	env.Chart = visuals.WeeklyChart(rep.Buckets, rep.Statuses, s.svc.Colormap(), rep.Plan+" by planned week")
	return env, nil
}

func (s *Server) handleCurrentWeekRuns(ctx context.Context, a selectionArgs) (ResponseEnvelope, error) {
	rep, err := s.svc.CurrentWeekRuns(ctx, s.selection(a))
	if err != nil {
		return ResponseEnvelope{}, err
	}

	var guidance []string
	switch {
	case rep.Week == nil:
		guidance = append(guidance, "No planned week has started yet for this selection.")
	case !rep.Week.Exact:
		guidance = append(guidance, fmt.Sprintf("No planned week contains today; showing the last closed week (%s).", rep.Week.Range.DisplayName()))
	}
	return WrapResponse(rep, rep.Plan, selectionContext(a.Cycle, a.Group, a.Priority), nil, guidance), nil
}

func (s *Server) handleStatusBreakdown(ctx context.Context, a breakdownArgs) (ResponseEnvelope, error) {
	dim, err := stats.ParseDimension(a.By)
	if err != nil {
		return ResponseEnvelope{}, err
	}
	statuses, err := parseStatuses(a.Statuses)
	if err != nil {
		return ResponseEnvelope{}, err
	}

	q := report.Query{Plan: a.Plan, Cycle: a.Cycle, Group: a.Group, Priority: a.Priority}
	rep, err := s.svc.Breakdown(ctx, q, dim, statuses)
	if err != nil {
		return ResponseEnvelope{}, err
	}

	env := WrapResponse(rep, rep.Plan, selectionContext(a.Cycle, a.Group, a.Priority), nil, nil)
	env.Chart = visuals.BreakdownChart(rep.Rows, rep.Statuses, s.svc.Colormap(), fmt.Sprintf("%s by %s", rep.Plan, dim))
	return env, nil
}

func (s *Server) handleRefresh(ctx context.Context, a refreshArgs) (ResponseEnvelope, error) {
	results, err := s.svc.Refresh(ctx, a.Plan)
	if err != nil && len(results) == 0 {
		return ResponseEnvelope{}, err
	}

	var warnings []string
	for _, r := range results {
		if r.Error != "" {
			warnings = append(warnings, fmt.Sprintf("%s: %s", r.Plan, r.Error))
		}
	}
	if err != nil {
		warnings = append(warnings, err.Error())
	}
	guidance := []string{"Previously returned reports are stale now; re-run the status tools."}
	return WrapResponse(results, a.Plan, nil, warnings, guidance), nil
}

func (s *Server) handleListSnapshots(ctx context.Context, _ emptyArgs) (ResponseEnvelope, error) {
	metas, err := s.svc.Snapshots(ctx)
	if err != nil {
		return ResponseEnvelope{}, err
	}
	return WrapResponse(metas, "", nil, nil, nil), nil
}

func selectionContext(cycle, group, priority string) map[string]any {
	ctx := make(map[string]any)
	if cycle != "" && cycle != testrun.AllTestCycles {
		ctx["testcycle"] = cycle
	}
	if group != "" && group != testrun.AllTestGroups {
		ctx["testgroup"] = group
	}
	if priority != "" {
		ctx["priority"] = priority
	}
	if len(ctx) == 0 {
		return nil
	}
	return ctx
}
