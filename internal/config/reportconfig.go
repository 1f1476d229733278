package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/rs/zerolog/log"

	"jama-reports/internal/testrun"
)

// ReportConfigFileName is searched in $HOME, then in the working directory.
const ReportConfigFileName = "jama-report-config.json"

var ErrNoReportConfig = errors.New("report config not found")

// TestPlanRef names a tracked test plan.
type TestPlanRef struct {
	DisplayName string `json:"displayName"`
	Project     string `json:"project"`
	Name        string `json:"name"`
}

// ChartSettings holds chart-wide defaults.
type ChartSettings struct {
	Colormap     map[string]string `json:"colormap,omitempty"`
	TestStart    string            `json:"testStart,omitempty"`
	TestDeadline string            `json:"testDeadline,omitempty"`
}

// ReportConfig is the decoded jama-report-config.json.
type ReportConfig struct {
	TestPlans     []TestPlanRef `json:"testplans"`
	ChartSettings ChartSettings `json:"chartSettings"`

	path string
}

// DefaultColormap assigns a fixed color to every status.
var DefaultColormap = map[testrun.Status]string{
	testrun.StatusNotRun:     "darkslategray",
	testrun.StatusPassed:     "green",
	testrun.StatusFailed:     "firebrick",
	testrun.StatusBlocked:    "royalblue",
	testrun.StatusInProgress: "darkorange",
}

var reportSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"testplans"},
	Properties: map[string]*jsonschema.Schema{
		"testplans": {
			Type: "array",
			Items: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"displayName": {Type: "string"},
					"project":     {Types: []string{"string", "integer"}},
					"name":        {Type: "string"},
				},
			},
		},
		"chartSettings": {
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"colormap": {
					Type:                 "object",
					AdditionalProperties: &jsonschema.Schema{Type: "string"},
				},
				"testStart":    {Type: "string"},
				"testDeadline": {Type: "string"},
			},
		},
	},
}

// LoadReportConfig reads the report config from path, or searches the default
// locations when path is empty.
func LoadReportConfig(path string) (*ReportConfig, error) {
	if path == "" {
		var err error
		if path, err = findReportConfig(); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report config: %w", err)
	}
	cfg, err := ParseReportConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.path = path
	log.Info().Str("path", path).Int("testplans", len(cfg.TestPlans)).Msg("Report config loaded")
	return cfg, nil
}

func findReportConfig() (string, error) {
	var dirs []string
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}
	dirs = append(dirs, ".")
	for _, dir := range dirs {
		p := filepath.Join(dir, ReportConfigFileName)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s in %s", ErrNoReportConfig, ReportConfigFileName, strings.Join(dirs, ", "))
}

// ParseReportConfig validates data against the config schema and decodes it.
// Plans missing a project or name are skipped.
func ParseReportConfig(data []byte) (*ReportConfig, error) {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	resolved, err := reportSchema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("invalid report schema: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return nil, fmt.Errorf("invalid report config: %w", err)
	}

	var raw struct {
		TestPlans []struct {
			DisplayName string          `json:"displayName"`
			Project     json.RawMessage `json:"project"`
			Name        string          `json:"name"`
		} `json:"testplans"`
		ChartSettings ChartSettings `json:"chartSettings"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid report config: %w", err)
	}

	cfg := &ReportConfig{ChartSettings: raw.ChartSettings}
	for _, p := range raw.TestPlans {
		project := string(bytes.Trim(bytes.TrimSpace(p.Project), `"`))
		if project == "" || project == "null" || p.Name == "" {
			log.Warn().Str("displayName", p.DisplayName).Msg("Missing project or test plan in report config, skipping")
			continue
		}
		ref := TestPlanRef{DisplayName: p.DisplayName, Project: project, Name: p.Name}
		if ref.DisplayName == "" {
			ref.DisplayName = project + ":" + p.Name
		}
		cfg.TestPlans = append(cfg.TestPlans, ref)
	}

	for _, field := range []string{cfg.ChartSettings.TestStart, cfg.ChartSettings.TestDeadline} {
		if field == "" {
			continue
		}
		if _, err := parseConfigDate(field); err != nil {
			return nil, fmt.Errorf("invalid chart date %q: %w", field, err)
		}
	}
	return cfg, nil
}

// Path returns the file the config was loaded from.
func (c *ReportConfig) Path() string { return c.path }

// Plan finds a plan by display name or by "project:name".
func (c *ReportConfig) Plan(key string) (TestPlanRef, bool) {
	for _, p := range c.TestPlans {
		if p.DisplayName == key || p.Project+":"+p.Name == key {
			return p, true
		}
	}
	return TestPlanRef{}, false
}

// Colormap returns the default colors overridden by chartSettings.colormap.
func (c *ReportConfig) Colormap() map[testrun.Status]string {
	out := make(map[testrun.Status]string, len(DefaultColormap))
	for k, v := range DefaultColormap {
		out[k] = v
	}
	if c == nil {
		return out
	}
	for k, v := range c.ChartSettings.Colormap {
		s, err := testrun.ParseStatus(k)
		if err != nil {
			log.Warn().Str("status", k).Msg("Ignoring colormap entry for unknown status")
			continue
		}
		out[s] = v
	}
	return out
}

// TestStart returns chartSettings.testStart, or zero when unset.
func (c *ReportConfig) TestStart() time.Time {
	if c == nil {
		return time.Time{}
	}
	t, _ := parseConfigDate(c.ChartSettings.TestStart)
	return t
}

// TestDeadline returns chartSettings.testDeadline, or zero when unset.
func (c *ReportConfig) TestDeadline() time.Time {
	if c == nil {
		return time.Time{}
	}
	t, _ := parseConfigDate(c.ChartSettings.TestDeadline)
	return t
}

func parseConfigDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
