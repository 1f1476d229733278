// Package report answers status questions about the configured test plans.
// It is the single entry point used by the MCP tools, the HTTP API and the
// CLI.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jama-reports/internal/cache"
	"jama-reports/internal/config"
	"jama-reports/internal/jama"
	"jama-reports/internal/snapshot"
	"jama-reports/internal/stats"
	"jama-reports/internal/testrun"
	"jama-reports/internal/visuals"
)

// ErrUnknownTestPlan is returned for a plan key missing from the report config.
var ErrUnknownTestPlan = errors.New("unknown test plan")

// PlanLister lists the test plans of a project.
type PlanLister interface {
	ListTestPlans(ctx context.Context, project string) ([]jama.TestPlan, error)
}

// Service is safe for concurrent use.
type Service struct {
	cfg      *config.ReportConfig
	cache    *cache.Cache
	plans    PlanLister
	store    *snapshot.Store
	collapse stats.Collapse
	now      func() time.Time
}

type Option func(*Service)

// WithPlanLister enables ActiveTestPlans.
func WithPlanLister(p PlanLister) Option {
	return func(s *Service) { s.plans = p }
}

// WithSnapshot writes every refreshed plan to store.
func WithSnapshot(store *snapshot.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithCollapse sets the collapse used when a query does not specify one.
func WithCollapse(c stats.Collapse) Option {
	return func(s *Service) { s.collapse = c }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(cfg *config.ReportConfig, c *cache.Cache, opts ...Option) *Service {
	if cfg == nil {
		cfg = &config.ReportConfig{}
	}
	s := &Service{cfg: cfg, cache: c, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Query selects the records a report is computed from. Start, End and
// Bucket (day, week or month) only apply to historical reports.
type Query struct {
	// Plan is a display name or "project:name"; empty means the first plan.
	Plan     string          `json:"plan,omitempty"`
	Cycle    string          `json:"cycle,omitempty"`
	Group    string          `json:"group,omitempty"`
	Priority string          `json:"priority,omitempty"`
	Collapse *stats.Collapse `json:"collapse,omitempty"`
	Start    time.Time       `json:"start,omitzero"`
	End      time.Time       `json:"end,omitzero"`
	Bucket   string          `json:"bucket,omitempty"`
}

func (q Query) filter() testrun.Filter {
	f := testrun.FilterFromLabels("", q.Group)
	f.Priority = q.Priority
	return f
}

// Plans returns the configured plans in config order.
func (s *Service) Plans() []config.TestPlanRef {
	return append([]config.TestPlanRef(nil), s.cfg.TestPlans...)
}

// DefaultCollapse is the collapse applied when a query sets none.
func (s *Service) DefaultCollapse() stats.Collapse { return s.collapse }

// Colormap returns the status colors.
func (s *Service) Colormap() visuals.Colormap {
	return visuals.Colormap(s.cfg.Colormap())
}

func (s *Service) resolve(key string) (config.TestPlanRef, error) {
	if key == "" {
		if len(s.cfg.TestPlans) == 0 {
			return config.TestPlanRef{}, fmt.Errorf("%w: no test plans configured", ErrUnknownTestPlan)
		}
		return s.cfg.TestPlans[0], nil
	}
	if ref, ok := s.cfg.Plan(key); ok {
		return ref, nil
	}
	return config.TestPlanRef{}, fmt.Errorf("%w: %q", ErrUnknownTestPlan, key)
}

func (s *Service) collapseFor(q Query) stats.Collapse {
	if q.Collapse != nil {
		return *q.Collapse
	}
	return s.collapse
}

// records loads the plan (or cycle) table and applies the query filters.
func (s *Service) records(ctx context.Context, q Query) (config.TestPlanRef, *testrun.Table, []testrun.Record, error) {
	ref, err := s.resolve(q.Plan)
	if err != nil {
		return ref, nil, nil, err
	}
	cycle := testrun.FilterFromLabels(q.Cycle, "").TestCycle
	table, err := s.cache.TestRuns(ctx, ref.Project, ref.Name, cycle, false)
	if err != nil {
		return ref, nil, nil, err
	}
	return ref, table, table.Filter(q.filter()), nil
}

// TestCycles lists the cycles of a plan.
func (s *Service) TestCycles(ctx context.Context, plan string) ([]testrun.Cycle, error) {
	ref, err := s.resolve(plan)
	if err != nil {
		return nil, err
	}
	return s.cache.TestCycles(ctx, ref.Project, ref.Name, false)
}

// TestGroups lists the distinct test groups of a plan (or cycle).
func (s *Service) TestGroups(ctx context.Context, plan, cycle string) ([]string, error) {
	_, _, records, err := s.records(ctx, Query{Plan: plan, Cycle: cycle})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var groups []string
	for _, r := range records {
		if r.TestGroup != "" && !seen[r.TestGroup] {
			seen[r.TestGroup] = true
			groups = append(groups, r.TestGroup)
		}
	}
	return groups, nil
}

// ActiveTestPlans lists the non-archived plans of a project in Jama.
func (s *Service) ActiveTestPlans(ctx context.Context, project string) ([]jama.TestPlan, error) {
	if s.plans == nil {
		return nil, errors.New("test plan listing is not available")
	}
	return s.plans.ListTestPlans(ctx, project)
}
