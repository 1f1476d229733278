package jama

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"jama-reports/internal/testrun"
)

// FetchTestCycles returns the cycles of the named test plan. Plan names are
// assumed unique within a project.
func (c *Client) FetchTestCycles(ctx context.Context, project, plan string) ([]testrun.Cycle, error) {
	m, err := c.metadata(ctx)
	if err != nil {
		return nil, err
	}

	plans, err := getAll[ItemDTO](ctx, c, "/abstractitems", url.Values{
		"itemType": {strconv.Itoa(m.testPlanType)},
		"project":  {project},
		"contains": {plan},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search test plan %q: %w", plan, err)
	}
	planID, ok := pickPlan(plans, plan)
	if !ok {
		return nil, fmt.Errorf("%w: test plan %q in project %s", ErrNotFound, plan, project)
	}

	items, err := getAll[ItemDTO](ctx, c, "/abstractitems", url.Values{
		"itemType": {strconv.Itoa(m.testCycleType)},
		"project":  {project},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list test cycles: %w", err)
	}

	var cycles []testrun.Cycle
	for _, it := range items {
		if id, ok := it.id("testPlan"); ok && id == planID {
			cycles = append(cycles, testrun.Cycle{ID: it.ID, Name: it.str("name")})
		}
	}
	if len(cycles) == 0 {
		return nil, fmt.Errorf("%w: no test cycles under test plan %q", ErrNotFound, plan)
	}

	log.Info().Str("testplan", plan).Int("cycles", len(cycles)).Msg("Test cycles found")
	return cycles, nil
}

// pickPlan prefers an exact name match among the search results and falls
// back to the first one.
func pickPlan(items []ItemDTO, name string) (int, bool) {
	if len(items) == 0 {
		return 0, false
	}
	for _, it := range items {
		if it.str("name") == name {
			return it.ID, true
		}
	}
	return items[0].ID, true
}

// FetchTestRuns returns every test run of every cycle of the plan. Cycles
// are fetched concurrently; the result keeps the cycle order.
func (c *Client) FetchTestRuns(ctx context.Context, project, plan string) ([]testrun.Record, error) {
	cycles, err := c.FetchTestCycles(ctx, project, plan)
	if err != nil {
		return nil, err
	}
	m, err := c.metadata(ctx)
	if err != nil {
		return nil, err
	}

	perCycle := make([][]testrun.Record, len(cycles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, cycle := range cycles {
		g.Go(func() error {
			items, err := getAll[ItemDTO](gctx, c, "/testcycles/"+strconv.Itoa(cycle.ID)+"/testruns", nil)
			if err != nil {
				return fmt.Errorf("failed to fetch test runs of cycle %q: %w", cycle.Name, err)
			}
			mp := mapper{meta: m, users: func(id int) string { return c.userName(gctx, id) }}
			perCycle[i] = mp.records(items, project, plan, cycle.Name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []testrun.Record
	for _, rs := range perCycle {
		records = append(records, rs...)
	}
	log.Info().Str("testplan", plan).Int("testruns", len(records)).Msg("Test runs fetched")
	return records, nil
}
