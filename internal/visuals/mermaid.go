package visuals

import (
	"fmt"
	"math"
	"strings"

	"jama-reports/internal/stats"
	"jama-reports/internal/testrun"
)

// maxPoints is where xychart labels start to overlap.
const maxPoints = 60

// Colormap maps a status to a CSS color name or hex value.
type Colormap map[testrun.Status]string

func (c Colormap) palette(statuses []testrun.Status) string {
	colors := make([]string, len(statuses))
	for i, s := range statuses {
		colors[i] = c[s]
		if colors[i] == "" {
			colors[i] = "gray"
		}
	}
	return strings.Join(colors, ", ")
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `'`) + `"`
}

func axisMax(v int) int {
	return v + int(math.Max(1, math.Ceil(float64(v)*0.1)))
}

// HistoricalChart creates a Mermaid line chart with one line per visible
// status. A burn line, when given, is summarized in the title.
func HistoricalChart(series stats.HistoricalSeries, burn *stats.BurnLine, colors Colormap, title string) string {
	if len(series.Points) == 0 {
		return ""
	}
	if burn != nil {
		title = fmt.Sprintf("%s (required burn rate %.1f/day until %s)", title, burn.PerDay, burn.To.Format("Jan 02"))
	}

	step := 1
	if len(series.Points) > maxPoints {
		step = int(math.Ceil(float64(len(series.Points)) / maxPoints))
	}

	var labels []string
	lines := make([][]string, len(series.Statuses))
	maxVal := 0
	for i, p := range series.Points {
		if i%step != 0 && i != len(series.Points)-1 {
			continue
		}
		labels = append(labels, quote(p.Date.Format("Jan02")))
		for j, s := range series.Statuses {
			lines[j] = append(lines[j], fmt.Sprintf("%d", p.Counts[s]))
		}
		if p.Total > maxVal {
			maxVal = p.Total
		}
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString(fmt.Sprintf("%%%%{init: {\"themeVariables\": {\"xyChart\": {\"plotColorPalette\": \"%s\"}}}}%%%%\n", colors.palette(series.Statuses)))
	sb.WriteString("xychart-beta\n")
	sb.WriteString(fmt.Sprintf("    title %s\n", quote(title)))
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Test Runs\" 0 --> %d\n", axisMax(maxVal)))
	for _, l := range lines {
		sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(l, ", ")))
	}
	sb.WriteString("```")
	return sb.String()
}

// stackedBars draws cumulative bars from the largest to the smallest so later
// bars cover earlier ones and the result reads as a stacked chart.
func stackedBars(title, yLabel string, labels []string, counts []stats.StatusCounts, statuses []testrun.Status, colors Colormap) string {
	if len(labels) == 0 {
		return ""
	}

	bars := make([][]string, len(statuses))
	maxVal := 0
	for _, c := range counts {
		cum := 0
		for j := len(statuses) - 1; j >= 0; j-- {
			cum += c[statuses[j]]
			bars[j] = append(bars[j], fmt.Sprintf("%d", cum))
		}
		if cum > maxVal {
			maxVal = cum
		}
	}

	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = quote(l)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString(fmt.Sprintf("%%%%{init: {\"themeVariables\": {\"xyChart\": {\"plotColorPalette\": \"%s\"}}}}%%%%\n", colors.palette(statuses)))
	sb.WriteString("xychart-beta\n")
	sb.WriteString(fmt.Sprintf("    title %s\n", quote(title)))
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(quoted, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis %s 0 --> %d\n", quote(yLabel), axisMax(maxVal)))
	for _, b := range bars {
		sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(b, ", ")))
	}
	sb.WriteString("```")
	return sb.String()
}

// WeeklyChart creates a stacked bar chart of runs per planned week.
func WeeklyChart(buckets []stats.WeekBucket, statuses []testrun.Status, colors Colormap, title string) string {
	labels := make([]string, len(buckets))
	counts := make([]stats.StatusCounts, len(buckets))
	for i, b := range buckets {
		labels[i] = b.Display
		counts[i] = b.Counts
	}
	return stackedBars(title, "Test Runs", labels, counts, statuses, colors)
}

// BreakdownChart creates a stacked bar chart of a status breakdown.
func BreakdownChart(rows []stats.BreakdownRow, statuses []testrun.Status, colors Colormap, title string) string {
	labels := make([]string, len(rows))
	counts := make([]stats.StatusCounts, len(rows))
	for i, r := range rows {
		labels[i] = r.Display
		counts[i] = r.Counts
	}
	return stackedBars(title, "Test Runs", labels, counts, statuses, colors)
}

// StatusPie creates a Mermaid pie chart of the current status distribution.
// Empty slices are left out.
func StatusPie(counts stats.StatusCounts, colors Colormap, title string) string {
	if counts.Total() == 0 {
		return ""
	}

	var shown []testrun.Status
	for _, s := range counts.Ordered() {
		if counts[s] > 0 {
			shown = append(shown, s)
		}
	}

	vars := make([]string, len(shown))
	for i, s := range shown {
		c := colors[s]
		if c == "" {
			c = "gray"
		}
		vars[i] = fmt.Sprintf("\"pie%d\": \"%s\"", i+1, c)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString(fmt.Sprintf("%%%%{init: {\"themeVariables\": {%s}}}%%%%\n", strings.Join(vars, ", ")))
	sb.WriteString(fmt.Sprintf("pie title %s\n", title))
	for _, s := range shown {
		sb.WriteString(fmt.Sprintf("    \"%s\" : %d\n", s, counts[s]))
	}
	sb.WriteString("```")
	return sb.String()
}
