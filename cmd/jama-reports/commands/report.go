package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"jama-reports/internal/report"
	"jama-reports/internal/stats"
	"jama-reports/internal/testrun"
	"jama-reports/internal/visuals"
)

var reportFlags struct {
	plan, cycle, group, priority string
	start, end, bucket           string
	by                           string
	statuses                     []string
	format                       string
	refresh                      bool
	collapseBlocked              bool
	collapseInProgress           bool
}

var reportKinds = []string{"plans", "cycles", "status", "historical", "weekly", "current-week", "breakdown"}

var reportCmd = &cobra.Command{
	Use:       "report <" + strings.Join(reportKinds, "|") + ">",
	Short:     "Print a single report as JSON or Mermaid",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: reportKinds,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc := newService(nil)

		q, err := reportQuery(cmd)
		if err != nil {
			return err
		}
		if reportFlags.refresh {
			if _, err := svc.Refresh(ctx, q.Plan); err != nil {
				return err
			}
			defer saveCache()
		}

		out := cmd.OutOrStdout()
		colors := svc.Colormap()
		switch args[0] {
		case "plans":
			return writeJSON(out, svc.Plans())
		case "cycles":
			cycles, err := svc.TestCycles(ctx, q.Plan)
			if err != nil {
				return err
			}
			return writeJSON(out, cycles)
		case "status":
			rep, err := svc.CurrentStatus(ctx, q)
			if err != nil {
				return err
			}
			return emit(out, rep, func() string { return visuals.StatusPie(rep.Counts, colors, rep.Plan) })
		case "historical":
			rep, err := svc.Historical(ctx, q)
			if err != nil {
				return err
			}
			return emit(out, rep, func() string { return visuals.HistoricalChart(rep.Series, rep.Burn, colors, rep.Plan) })
		case "weekly":
			rep, err := svc.Weekly(ctx, q)
			if err != nil {
				return err
			}
			return emit(out, rep, func() string {
				return visuals.WeeklyChart(rep.Buckets, rep.Statuses, colors, rep.Plan+" by planned week")
			})
		case "current-week":
			rep, err := svc.CurrentWeekRuns(ctx, q)
			if err != nil {
				return err
			}
			return writeJSON(out, rep)
		case "breakdown":
			dim, err := stats.ParseDimension(reportFlags.by)
			if err != nil {
				return err
			}
			statuses := make([]testrun.Status, 0, len(reportFlags.statuses))
			for _, raw := range reportFlags.statuses {
				st, err := testrun.ParseStatus(raw)
				if err != nil {
					return err
				}
				statuses = append(statuses, st)
			}
			rep, err := svc.Breakdown(ctx, q, dim, statuses)
			if err != nil {
				return err
			}
			return emit(out, rep, func() string {
				return visuals.BreakdownChart(rep.Rows, rep.Statuses, colors, fmt.Sprintf("%s by %s", rep.Plan, dim))
			})
		}
		return fmt.Errorf("unknown report %q", args[0])
	},
}

func reportQuery(cmd *cobra.Command) (report.Query, error) {
	q := report.Query{
		Plan:     reportFlags.plan,
		Cycle:    reportFlags.cycle,
		Group:    reportFlags.group,
		Priority: reportFlags.priority,
		Bucket:   reportFlags.bucket,
	}

	if cmd.Flags().Changed("collapse-blocked") || cmd.Flags().Changed("collapse-inprogress") {
		c := cfg.Collapse
		if cmd.Flags().Changed("collapse-blocked") {
			c.BlockedIntoNotRun = reportFlags.collapseBlocked
		}
		if cmd.Flags().Changed("collapse-inprogress") {
			c.InProgressIntoNotRun = reportFlags.collapseInProgress
		}
		q.Collapse = &c
	}

	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Time
	}{
		{"start", reportFlags.start, &q.Start},
		{"end", reportFlags.end, &q.End},
	} {
		if d.raw == "" {
			continue
		}
		t, err := time.ParseInLocation("2006-01-02", d.raw, time.Local)
		if err != nil {
			return q, fmt.Errorf("invalid --%s %q: expected YYYY-MM-DD", d.name, d.raw)
		}
		*d.dst = t
	}
	return q, nil
}

func emit(w io.Writer, v any, chart func() string) error {
	switch reportFlags.format {
	case "mermaid":
		_, err := fmt.Fprintln(w, chart())
		return err
	case "json", "":
		return writeJSON(w, v)
	}
	return fmt.Errorf("unknown format %q (want json or mermaid)", reportFlags.format)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	f := reportCmd.Flags()
	f.StringVarP(&reportFlags.plan, "plan", "p", "", "test plan display name or project:name (default: first configured plan)")
	f.StringVar(&reportFlags.cycle, "cycle", "", "test cycle name")
	f.StringVar(&reportFlags.group, "group", "", "test group name")
	f.StringVar(&reportFlags.priority, "priority", "", "priority label")
	f.StringVar(&reportFlags.start, "start", "", "first day of the historical window (YYYY-MM-DD)")
	f.StringVar(&reportFlags.end, "end", "", "last day of the historical window (YYYY-MM-DD)")
	f.StringVar(&reportFlags.bucket, "bucket", "day", "historical sampling interval: day, week or month")
	f.StringVar(&reportFlags.by, "by", "testgroup", "breakdown dimension: testgroup, assigned_to, test_network, planned_week")
	f.StringSliceVar(&reportFlags.statuses, "status", nil, "statuses counted by the breakdown (default: all)")
	f.StringVarP(&reportFlags.format, "format", "f", "json", "output format: json or mermaid")
	f.BoolVar(&reportFlags.refresh, "refresh", false, "fetch fresh data from Jama before reporting")
	f.BoolVar(&reportFlags.collapseBlocked, "collapse-blocked", false, "count BLOCKED as NOT_RUN")
	f.BoolVar(&reportFlags.collapseInProgress, "collapse-inprogress", false, "count INPROGRESS as NOT_RUN")
}
