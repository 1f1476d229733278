package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"jama-reports/cmd/mockgen/engine"
)

func main() {
	scenario := flag.String("scenario", "steady", "Scenario to generate: steady, late, blocked")
	project := flag.String("project", "MOCK", "Project id to file the runs under")
	plan := flag.String("plan", "Mock Release", "Test plan name")
	outDir := flag.String("out", "./cache", "Cache directory to write to")
	count := flag.Int("count", 400, "Number of test runs to generate")
	cycles := flag.Int("cycles", 3, "Number of test cycles")
	weeks := flag.Int("weeks", 8, "Number of planned weeks")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Scenario: *scenario,
		Project:  *project,
		Plan:     *plan,
		Count:    *count,
		Cycles:   *cycles,
		Weeks:    *weeks,
		Now:      time.Now(),
		Seed:     *seed,
	}

	fmt.Printf("Generating scenario '%s' (%d runs, %d cycles, %d weeks) to %s...\n", cfg.Scenario, cfg.Count, cfg.Cycles, cfg.Weeks, *outDir)

	records, cycleList := engine.Generate(cfg)
	if err := engine.Save(*outDir, cfg, records, cycleList); err != nil {
		fmt.Printf("Failed to save mock data: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Done.")
}
