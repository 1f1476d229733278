package cache

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"jama-reports/internal/testrun"
)

const (
	runsFile   = "testruns.jsonl"
	cyclesFile = "testcycles.json"
	plansFile  = "testplans.json"
)

type cycleList struct {
	Key
	Cycles []testrun.Cycle `json:"cycles"`
}

// Save writes every cached table to dir as JSONL, one record per line, plus
// the cycle lists and the cached plan keys as JSON documents. The key list
// keeps plans with an empty table cached across restarts. Files are replaced
// atomically.
func (c *Cache) Save(dir string) error {
	c.mu.RLock()
	keys := c.keysLocked()
	var records []testrun.Record
	for _, k := range keys {
		records = append(records, c.runs[k].table.Records()...)
	}
	lists := make([]cycleList, 0, len(c.cycles))
	for k, v := range c.cycles {
		lists = append(lists, cycleList{Key: k, Cycles: v})
	}
	c.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	if err := writeAtomic(filepath.Join(dir, runsFile), func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("failed to encode test run %d: %w", r.ID, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if err := writeAtomic(filepath.Join(dir, cyclesFile), func(w *bufio.Writer) error {
		return json.NewEncoder(w).Encode(lists)
	}); err != nil {
		return err
	}

	if err := writeAtomic(filepath.Join(dir, plansFile), func(w *bufio.Writer) error {
		return json.NewEncoder(w).Encode(keys)
	}); err != nil {
		return err
	}

	log.Info().Str("dir", dir).Int("count", len(records)).Msg("Test runs saved to cache")
	return nil
}

// Load installs the tables found in dir. A missing cache is not an error.
// Invalid lines are skipped.
func (c *Cache) Load(dir string) error {
	path := filepath.Join(dir, runsFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat cache: %w", err)
	}

	var order []Key
	grouped := make(map[Key][]testrun.Record)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var r testrun.Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			log.Warn().Err(err).Msg("Skipping invalid JSON line in cache")
			continue
		}
		if !r.Status.Valid() {
			log.Warn().Int("id", r.ID).Str("status", string(r.Status)).Msg("Skipping cached test run with unknown status")
			continue
		}
		k := Key{Project: r.Project, Plan: r.TestPlan}
		if _, ok := grouped[k]; !ok {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], r)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading cache: %w", err)
	}

	if data, err := os.ReadFile(filepath.Join(dir, plansFile)); err == nil {
		var keys []Key
		if err := json.Unmarshal(data, &keys); err != nil {
			log.Warn().Err(err).Msg("Ignoring unreadable plan list")
		}
		for _, k := range keys {
			if _, ok := grouped[k]; !ok {
				grouped[k] = nil
				order = append(order, k)
			}
		}
	}

	for _, k := range order {
		c.install(k, grouped[k], info.ModTime())
	}

	if data, err := os.ReadFile(filepath.Join(dir, cyclesFile)); err == nil {
		var lists []cycleList
		if err := json.Unmarshal(data, &lists); err != nil {
			log.Warn().Err(err).Msg("Ignoring unreadable cycle cache")
		} else {
			c.mu.Lock()
			for _, l := range lists {
				c.cycles[l.Key] = l.Cycles
			}
			c.mu.Unlock()
		}
	}

	log.Info().Str("dir", dir).Int("plans", len(order)).Msg("Loaded test runs from cache")
	return nil
}

func (c *Cache) keysLocked() []Key {
	keys := make([]Key, 0, len(c.runs))
	for k := range c.runs {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func writeAtomic(path string, fill func(*bufio.Writer) error) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}

	writer := bufio.NewWriter(file)
	if err := fill(writer); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}
