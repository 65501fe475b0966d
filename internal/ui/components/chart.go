// Package components provides text rendering helpers for CLI output.
package components

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/tokenwatch/internal/services/monitor"
	"github.com/j-veylop/tokenwatch/internal/ui/styles"
)

// Latency chart series colors. They match the ANSI colors asciigraph draws
// the two series with.
var (
	ChartResponseColor = lipgloss.Color("4")
	ChartTailColor     = lipgloss.Color("1")
)

// tailWindow is the number of trailing samples behind each p95 point.
const tailWindow = 20

const noData = "No data available"

func clampChartSize(width, height int) (int, int) {
	return max(width, 20), max(height, 3)
}

// RenderLineChart creates a single-series ASCII line chart.
func RenderLineChart(data []float64, width, height int, caption string) string {
	if len(data) == 0 {
		return styles.HelpStyle.Render(noData)
	}
	width, height = clampChartSize(width, height)

	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// RenderLatencyChart plots per-request response times against a trailing
// p95 line so tail growth stands out. With no tail it plots the response
// times alone.
func RenderLatencyChart(responseTimes, p95 []float64, width, height int, caption string) string {
	if len(p95) == 0 {
		return RenderLineChart(responseTimes, width, height, caption)
	}
	width, height = clampChartSize(width, height)

	// Pad the shorter series with zeros.
	n := max(len(responseTimes), len(p95))
	series := make([]float64, n)
	tail := make([]float64, n)
	copy(series, responseTimes)
	copy(tail, p95)

	return asciigraph.PlotMany([][]float64{series, tail},
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red),
	)
}

// TrailingPercentile returns, for each value, the nearest-rank p-th
// percentile of the window values ending at it.
func TrailingPercentile(values []float64, window, p int) []float64 {
	if len(values) == 0 || window <= 0 {
		return nil
	}
	out := make([]float64, len(values))
	for i := range values {
		sorted := slices.Clone(values[max(0, i+1-window) : i+1])
		slices.Sort(sorted)
		out[i] = monitor.Percentile(sorted, p)
	}
	return out
}

// RenderCostChart plots cumulative daily spend against a straight budget
// line from zero to limit. A limit of zero or less plots spend alone.
func RenderCostChart(daily []float64, limit float64, width, height int) string {
	if len(daily) == 0 {
		return styles.HelpStyle.Render(noData)
	}
	width, height = clampChartSize(width, height)

	cumulative := make([]float64, len(daily))
	total := 0.0
	for i, v := range daily {
		total += v
		cumulative[i] = total
	}

	opts := []asciigraph.Option{
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(2),
	}
	if limit <= 0 {
		opts = append(opts, asciigraph.Caption("Cumulative spend (USD)"))
		return asciigraph.Plot(cumulative, opts...)
	}

	budget := make([]float64, len(daily))
	for i := range budget {
		budget[i] = limit * float64(i+1) / float64(len(daily))
	}
	opts = append(opts,
		asciigraph.Caption(fmt.Sprintf("Cumulative spend vs $%.2f budget", limit)),
		asciigraph.SeriesColors(asciigraph.Green, asciigraph.Red),
	)
	return asciigraph.PlotMany([][]float64{cumulative, budget}, opts...)
}

// RenderBarChart creates a simple horizontal bar chart.
func RenderBarChart(values []float64, labels []string, width int, format string) string {
	if len(values) == 0 {
		return ""
	}
	if format == "" {
		format = "%.1f"
	}

	maxVal := 0.0
	for _, v := range values {
		maxVal = max(maxVal, v)
	}
	if maxVal == 0 {
		maxVal = 1
	}

	maxLabelLen := 0
	for _, l := range labels {
		maxLabelLen = max(maxLabelLen, len(l))
	}

	barWidth := max(width-maxLabelLen-12, 10)

	lines := make([]string, 0, len(values))
	for i, v := range values {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}

		barLen := max(int((v/maxVal)*float64(barWidth)), 0)
		lines = append(lines, fmt.Sprintf("%*s │%s "+format, maxLabelLen, label, strings.Repeat("█", barLen), v))
	}

	return strings.Join(lines, "\n")
}

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RenderSparkline creates a compact inline sparkline, sampling values to
// fit width.
func RenderSparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}

	maxVal := 0.0
	for _, v := range values {
		maxVal = max(maxVal, v)
	}
	if maxVal == 0 {
		maxVal = 1
	}

	step := max(float64(len(values))/float64(width), 1)

	var result strings.Builder
	for i := 0; i < width && int(float64(i)*step) < len(values); i++ {
		val := values[int(float64(i)*step)]
		normalized := int((val / maxVal) * float64(len(sparkChars)-1))
		normalized = min(max(normalized, 0), len(sparkChars)-1)
		result.WriteRune(sparkChars[normalized])
	}

	return result.String()
}

// LegendItem names one chart series and its color.
type LegendItem struct {
	Label string
	Color lipgloss.Color
}

// RenderLegend renders a one-line caption of colored series markers.
func RenderLegend(items ...LegendItem) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString("   ")
		}
		b.WriteString(lipgloss.NewStyle().Foreground(item.Color).Render("──"))
		b.WriteString(" ")
		b.WriteString(styles.HelpStyle.Render(item.Label))
	}
	return b.String()
}
