package engine

import (
	"fmt"
	"math/rand"
	"time"

	"jama-reports/internal/cache"
	"jama-reports/internal/sprint"
	"jama-reports/internal/testrun"
)

type GeneratorConfig struct {
	Scenario string // "steady", "late" or "blocked"
	Project  string
	Plan     string
	Count    int
	Cycles   int
	Weeks    int
	Now      time.Time
	Seed     int64
}

var (
	groups     = []string{"Core", "Roaming", "Voice", "Data", "Messaging"}
	networks   = []string{"LTE", "5G NSA", "5G SA"}
	assignees  = []string{"Ana Lima", "Ben Ortiz", "Chen Wu", "Dara Kim"}
	priorities = []string{"High", "Medium", "Low"}
)

// Generate produces a synthetic test plan: Count runs spread over Cycles
// cycles and Weeks planned weeks centred on Now.
func Generate(cfg GeneratorConfig) ([]testrun.Record, []testrun.Cycle) {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	if cfg.Cycles <= 0 {
		cfg.Cycles = 1
	}
	if cfg.Weeks <= 0 {
		cfg.Weeks = 1
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	cycles := make([]testrun.Cycle, cfg.Cycles)
	for i := range cycles {
		cycles[i] = testrun.Cycle{ID: 1000 + i, Name: fmt.Sprintf("Cycle %d", i+1)}
	}

	// The current week sits in the middle of the plan.
	today := sprint.Day(cfg.Now)
	monday := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
	firstWeek := monday.AddDate(0, 0, -7*(cfg.Weeks/2))
	weeks := make([]string, cfg.Weeks)
	for i := range weeks {
		weeks[i] = weekLabel(i+1, firstWeek.AddDate(0, 0, 7*i))
	}

	records := make([]testrun.Record, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		r := testrun.Record{
			ID:              10000 + i,
			Project:         cfg.Project,
			TestPlan:        cfg.Plan,
			TestCycle:       cycles[i%len(cycles)].Name,
			TestGroup:       groups[rng.Intn(len(groups))],
			TestRun:         fmt.Sprintf("TR-%04d", i+1),
			Priority:        priorities[rng.Intn(len(priorities))],
			NetworkType:     "Commercial",
			TestNetwork:     networks[rng.Intn(len(networks))],
			ExecutionMethod: "Manual",
			Status:          testrun.StatusNotRun,
		}
		r.Created = firstWeek.AddDate(0, 0, -rng.Intn(5)-1).Add(time.Duration(8+rng.Intn(9)) * time.Hour)
		r.Modified = r.Created

		// Roughly one run in ten is not scheduled.
		week := -1
		if rng.Float64() >= 0.1 {
			week = i % cfg.Weeks
			r.PlannedWeek = weeks[week]
			r.AssignedTo = assignees[rng.Intn(len(assignees))]
		}

		weekStart := firstWeek
		if week >= 0 {
			weekStart = firstWeek.AddDate(0, 0, 7*week)
		}
		executed := weekStart.AddDate(0, 0, rng.Intn(5)).Add(time.Duration(8+rng.Intn(10)) * time.Hour)
		if executed.After(cfg.Now) || rng.Float64() >= executionRate(cfg.Scenario, week, cfg.Weeks) {
			records = append(records, r)
			continue
		}

		r.Status = pickStatus(rng, cfg.Scenario)
		r.Modified = executed
		if r.Status == testrun.StatusPassed || r.Status == testrun.StatusFailed {
			at := executed
			r.ExecutionDate = &at
		}
		if r.Status == testrun.StatusFailed {
			r.BugID = fmt.Sprintf("BUG-%d", 500+rng.Intn(400))
		}
		records = append(records, r)
	}
	return records, cycles
}

func executionRate(scenario string, week, weeks int) float64 {
	switch scenario {
	case "late":
		// Execution only picks up in the second half of the plan.
		if week >= 0 && week < weeks/2 {
			return 0.2
		}
		return 0.6
	case "blocked":
		return 0.85
	default:
		return 0.9
	}
}

func pickStatus(rng *rand.Rand, scenario string) testrun.Status {
	blocked := 0.05
	if scenario == "blocked" {
		blocked = 0.3
	}
	switch p := rng.Float64(); {
	case p < blocked:
		return testrun.StatusBlocked
	case p < blocked+0.05:
		return testrun.StatusInProgress
	case p < blocked+0.2:
		return testrun.StatusFailed
	default:
		return testrun.StatusPassed
	}
}

// weekLabel renders labels the way planners type them, e.g. "Sprint3_Feb17-21".
func weekLabel(n int, start time.Time) string {
	end := start.AddDate(0, 0, 4)
	endFmt := "2"
	if end.Month() != start.Month() {
		endFmt = "Jan2"
	}
	return fmt.Sprintf("Sprint%d_%s-%s", n, start.Format("Jan2"), end.Format(endFmt))
}

// Save writes the plan to outDir in the cache layout, so that a process
// started with that cache directory serves it without talking to Jama.
func Save(outDir string, cfg GeneratorConfig, records []testrun.Record, cycles []testrun.Cycle) error {
	c := cache.New(nil)
	if err := c.Load(outDir); err != nil {
		return err
	}
	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	c.Put(cfg.Project, cfg.Plan, records, cycles, now)
	return c.Save(outDir)
}
