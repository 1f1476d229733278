package report

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"jama-reports/internal/sprint"
	"jama-reports/internal/stats"
	"jama-reports/internal/testrun"
)

// StatusReport is the current status distribution of a selection.
type StatusReport struct {
	Plan      string             `json:"plan"`
	Statuses  []testrun.Status   `json:"statuses"`
	Counts    stats.StatusCounts `json:"counts"`
	Total     int                `json:"total"`
	FetchedAt time.Time          `json:"fetched_at"`
}

func (s *Service) CurrentStatus(ctx context.Context, q Query) (StatusReport, error) {
	ref, table, records, err := s.records(ctx, q)
	if err != nil {
		return StatusReport{}, err
	}
	collapse := s.collapseFor(q)
	counts, err := stats.CountStatuses(records, collapse)
	if err != nil {
		return StatusReport{}, err
	}
	return StatusReport{
		Plan:      ref.DisplayName,
		Statuses:  collapse.Statuses(),
		Counts:    counts,
		Total:     counts.Total(),
		FetchedAt: table.FetchedAt(),
	}, nil
}

// HistoricalReport is a day-by-day reconstruction plus the burn line needed
// to reach the configured deadline.
type HistoricalReport struct {
	Plan   string                 `json:"plan"`
	Series stats.HistoricalSeries `json:"series"`
	Burn   *stats.BurnLine        `json:"burn,omitempty"`
}

// Historical defaults the start to chartSettings.testStart and the end to today.
func (s *Service) Historical(ctx context.Context, q Query) (HistoricalReport, error) {
	ref, _, records, err := s.records(ctx, q)
	if err != nil {
		return HistoricalReport{}, err
	}

	start := q.Start
	if start.IsZero() {
		start = s.cfg.TestStart()
	}
	end := q.End
	if end.IsZero() {
		end = s.now()
	}

	bucket, err := stats.ParseBucket(q.Bucket)
	if err != nil {
		return HistoricalReport{}, err
	}
	series, err := stats.BuildHistoricalSeriesBy(records, start, end, bucket, s.collapseFor(q))
	if err != nil {
		return HistoricalReport{}, err
	}
	for _, p := range series.Points {
		for _, w := range p.Warnings {
			log.Warn().Str("plan", ref.DisplayName).Str("date", p.Label).Msg(w)
		}
	}

	rep := HistoricalReport{Plan: ref.DisplayName, Series: series}
	if line, ok := stats.RequiredBurnRate(series, s.cfg.TestDeadline()); ok {
		rep.Burn = &line
	}
	return rep, nil
}

// WeeklyReport is the planned-week bucketing of a selection.
type WeeklyReport struct {
	Plan     string             `json:"plan"`
	Statuses []testrun.Status   `json:"statuses"`
	Buckets  []stats.WeekBucket `json:"buckets"`
}

func (s *Service) Weekly(ctx context.Context, q Query) (WeeklyReport, error) {
	ref, _, records, err := s.records(ctx, q)
	if err != nil {
		return WeeklyReport{}, err
	}
	collapse := s.collapseFor(q)
	buckets, err := stats.BucketByPlannedWeek(records, testrun.Filter{}, collapse)
	if err != nil {
		return WeeklyReport{}, err
	}
	return WeeklyReport{Plan: ref.DisplayName, Statuses: collapse.Statuses(), Buckets: buckets}, nil
}

// CurrentWeekReport lists the runs planned for the current week.
type CurrentWeekReport struct {
	Plan string                   `json:"plan"`
	Week *sprint.CurrentWeek      `json:"week,omitempty"`
	Rows []testrun.CurrentWeekRow `json:"rows"`
}

func (s *Service) CurrentWeekRuns(ctx context.Context, q Query) (CurrentWeekReport, error) {
	ref, _, records, err := s.records(ctx, q)
	if err != nil {
		return CurrentWeekReport{}, err
	}
	rep := CurrentWeekReport{Plan: ref.DisplayName, Rows: []testrun.CurrentWeekRow{}}
	runs, week, ok := stats.CurrentWeekRuns(records, testrun.Filter{}, s.now())
	if !ok {
		return rep, nil
	}
	rep.Week = &week
	for _, r := range runs {
		rep.Rows = append(rep.Rows, r.Row())
	}
	return rep, nil
}

// BreakdownReport counts selected statuses per dimension value.
type BreakdownReport struct {
	Plan      string               `json:"plan"`
	Dimension stats.Dimension      `json:"dimension"`
	Statuses  []testrun.Status     `json:"statuses"`
	Rows      []stats.BreakdownRow `json:"rows"`
}

func (s *Service) Breakdown(ctx context.Context, q Query, dim stats.Dimension, statuses []testrun.Status) (BreakdownReport, error) {
	ref, _, records, err := s.records(ctx, q)
	if err != nil {
		return BreakdownReport{}, err
	}
	if len(statuses) == 0 {
		statuses = testrun.Statuses()
	}
	rows, err := stats.Breakdown(records, dim, statuses)
	if err != nil {
		return BreakdownReport{}, err
	}
	return BreakdownReport{Plan: ref.DisplayName, Dimension: dim, Statuses: statuses, Rows: rows}, nil
}
