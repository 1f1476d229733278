// Package cache memoizes test-cycle lists and test-run tables fetched from
// Jama, keyed by project and test plan.
package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"jama-reports/internal/testrun"
)

// ErrFetchFailed wraps any error returned by the Fetcher. The cache is left
// exactly as it was before the call.
var ErrFetchFailed = errors.New("fetch failed")

// Fetcher retrieves fresh data from the test-management system.
type Fetcher interface {
	FetchTestCycles(ctx context.Context, project, plan string) ([]testrun.Cycle, error)
	FetchTestRuns(ctx context.Context, project, plan string) ([]testrun.Record, error)
}

// Key identifies a test plan inside a project.
type Key struct {
	Project string `json:"project"`
	Plan    string `json:"testplan"`
}

func (k Key) String() string { return k.Project + "/" + k.Plan }

// entry holds the full table of a plan and the per-cycle subsets derived
// from it so repeated reads return the same table pointer.
type entry struct {
	table *testrun.Table

	mu      sync.Mutex
	subsets map[string]*testrun.Table
}

func newEntry(table *testrun.Table) *entry {
	return &entry{table: table, subsets: make(map[string]*testrun.Table)}
}

func (e *entry) subset(cycle string) *testrun.Table {
	if cycle == "" || cycle == testrun.AllTestCycles {
		return e.table
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.subsets[cycle]; ok {
		return t
	}
	t := e.table.Cycle(cycle)
	e.subsets[cycle] = t
	return t
}

// Cache is safe for concurrent use. Fetches for the same key are coalesced,
// and a refreshed table is swapped in only after the fetch succeeded, so
// readers observe either the previous or the new table.
type Cache struct {
	fetcher Fetcher
	now     func() time.Time

	mu     sync.RWMutex
	cycles map[Key][]testrun.Cycle
	runs   map[Key]*entry

	group singleflight.Group
}

// New creates an empty cache backed by fetcher.
func New(fetcher Fetcher) *Cache {
	return &Cache{
		fetcher: fetcher,
		now:     time.Now,
		cycles:  make(map[Key][]testrun.Cycle),
		runs:    make(map[Key]*entry),
	}
}

// TestCycles returns the cycles of a plan, fetching them on a miss or when
// update is set.
func (c *Cache) TestCycles(ctx context.Context, project, plan string, update bool) ([]testrun.Cycle, error) {
	key := Key{Project: project, Plan: plan}

	if !update {
		c.mu.RLock()
		cycles, ok := c.cycles[key]
		c.mu.RUnlock()
		if ok {
			requestsMetric.WithLabelValues(kindCycles, resultHit).Inc()
			return slices.Clone(cycles), nil
		}
	}

	v, err := c.do(ctx, kindCycles+"|"+key.String(), func(ctx context.Context) (any, error) {
		timer := time.Now()
		cycles, err := c.fetcher.FetchTestCycles(ctx, project, plan)
		fetchDurationMetric.WithLabelValues(kindCycles).Observe(time.Since(timer).Seconds())
		if err != nil {
			return nil, err
		}
		cycles = slices.Clone(cycles)

		c.mu.Lock()
		c.cycles[key] = cycles
		c.mu.Unlock()
		return cycles, nil
	})
	if err != nil {
		requestsMetric.WithLabelValues(kindCycles, resultError).Inc()
		log.Warn().Err(err).Str("project", project).Str("testplan", plan).Msg("Test cycle fetch failed, keeping cached data")
		return nil, fmt.Errorf("%w: test cycles of %s: %w", ErrFetchFailed, key, err)
	}
	requestsMetric.WithLabelValues(kindCycles, missOrRefresh(update)).Inc()
	return slices.Clone(v.([]testrun.Cycle)), nil
}

// TestRuns returns the table of a plan, or of one of its cycles when cycle is
// set. Without update, a cached table is returned as is; the same pointer is
// handed out until the next refresh. With update, the plan's rows are
// re-fetched and replace the cached ones wholesale.
func (c *Cache) TestRuns(ctx context.Context, project, plan, cycle string, update bool) (*testrun.Table, error) {
	key := Key{Project: project, Plan: plan}

	if !update {
		c.mu.RLock()
		e, ok := c.runs[key]
		c.mu.RUnlock()
		if ok {
			requestsMetric.WithLabelValues(kindRuns, resultHit).Inc()
			return e.subset(cycle), nil
		}
	}

	v, err := c.do(ctx, kindRuns+"|"+key.String(), func(ctx context.Context) (any, error) {
		timer := time.Now()
		records, err := c.fetcher.FetchTestRuns(ctx, project, plan)
		fetchDurationMetric.WithLabelValues(kindRuns).Observe(time.Since(timer).Seconds())
		if err != nil {
			return nil, err
		}
		return c.install(key, records, c.now()), nil
	})
	if err != nil {
		requestsMetric.WithLabelValues(kindRuns, resultError).Inc()
		log.Warn().Err(err).Str("project", project).Str("testplan", plan).Msg("Test run fetch failed, keeping cached data")
		return nil, fmt.Errorf("%w: test runs of %s: %w", ErrFetchFailed, key, err)
	}
	requestsMetric.WithLabelValues(kindRuns, missOrRefresh(update)).Inc()
	return v.(*entry).subset(cycle), nil
}

// do runs fetch once for all concurrent callers of name. The fetch ignores
// the cancellation of whichever caller started it; every caller stops waiting
// when its own ctx is done.
func (c *Cache) do(ctx context.Context, name string, fetch func(context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(name, func() (any, error) {
		return fetch(detached)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Put installs records for a plan as if they had just been fetched at
// fetchedAt. It is used for warm starts and synthetic data.
func (c *Cache) Put(project, plan string, records []testrun.Record, cycles []testrun.Cycle, fetchedAt time.Time) {
	key := Key{Project: project, Plan: plan}
	c.install(key, records, fetchedAt)
	if cycles != nil {
		c.mu.Lock()
		c.cycles[key] = slices.Clone(cycles)
		c.mu.Unlock()
	}
}

// Cached returns the plan's table without fetching.
func (c *Cache) Cached(project, plan string) (*testrun.Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.runs[Key{Project: project, Plan: plan}]
	if !ok {
		return nil, false
	}
	return e.table, true
}

// Invalidate drops every cached item of a plan.
func (c *Cache) Invalidate(project, plan string) {
	key := Key{Project: project, Plan: plan}
	c.mu.Lock()
	delete(c.runs, key)
	delete(c.cycles, key)
	c.mu.Unlock()
	log.Debug().Str("plan", key.String()).Msg("Cache entry invalidated")
}

// Keys lists the plans holding a cached table, sorted.
func (c *Cache) Keys() []Key {
	c.mu.RLock()
	keys := make([]Key, 0, len(c.runs))
	for k := range c.runs {
		keys = append(keys, k)
	}
	c.mu.RUnlock()

	sortKeys(keys)
	return keys
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Project != keys[j].Project {
			return keys[i].Project < keys[j].Project
		}
		return keys[i].Plan < keys[j].Plan
	})
}

// install resolves planned weeks once and swaps the new entry in.
func (c *Cache) install(key Key, records []testrun.Record, fetchedAt time.Time) *entry {
	resolved := make([]testrun.Record, len(records))
	for i, r := range records {
		resolved[i] = r.ResolveWeek(fetchedAt)
	}
	e := newEntry(testrun.NewTable(key.Project, key.Plan, resolved, fetchedAt))

	c.mu.Lock()
	c.runs[key] = e
	c.mu.Unlock()

	log.Debug().Str("plan", key.String()).Int("records", len(resolved)).Msg("Test run table cached")
	return e
}

func missOrRefresh(update bool) string {
	if update {
		return resultRefresh
	}
	return resultMiss
}
