package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/tokenwatch/internal/models"
	"github.com/j-veylop/tokenwatch/internal/ui/styles"
)

func kv(label, value string) string {
	return styles.LabelStyle.Render(label) + styles.ValueStyle.Render(value)
}

func section(title string, lines ...string) string {
	body := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return styles.CardStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left, styles.SubTitleStyle.Render(title), body))
}

// RenderStatus renders a system status snapshot. responseTimes, when given,
// are plotted with their trailing p95 under the performance section.
func RenderStatus(s models.SystemStatus, responseTimes []float64, width int) string {
	perf := s.Performance
	perfLines := []string{
		kv("Samples (1h)", fmt.Sprintf("%d", perf.SampleCount)),
		kv("Response time", fmt.Sprintf("avg %.0fms  p95 %.0fms  p99 %.0fms",
			perf.AverageResponseTime, perf.P95ResponseTime, perf.P99ResponseTime)),
		kv("Throughput", fmt.Sprintf("%.2f req/s", perf.AverageThroughput)),
		kv("Error rate", fmt.Sprintf("%.1f%%", perf.CurrentErrorRate*100)),
		kv("Trends", renderTrends(s.Trends)),
	}
	if len(responseTimes) > 0 {
		perfLines = append(perfLines, "",
			RenderLatencyChart(responseTimes, TrailingPercentile(responseTimes, tailWindow, 95), width-10, 6, "Response time (ms)"),
			RenderLegend(
				LegendItem{Label: "per request", Color: ChartResponseColor},
				LegendItem{Label: fmt.Sprintf("trailing p95 (%d)", tailWindow), Color: ChartTailColor},
			))
	}

	opt := s.Optimization
	sections := []string{
		styles.TitleStyle.Render("tokenwatch status"),
		section("Cost (24h)",
			kv("Spend", fmt.Sprintf("$%.4f", s.Cost.TotalCost)),
			kv("Requests", fmt.Sprintf("%d", s.Cost.RequestCount)),
			kv("Tokens", fmt.Sprintf("%d", s.Cost.TotalTokens)),
			kv("Per 1K tokens", fmt.Sprintf("$%.4f", s.Cost.TokenEfficiency)),
			RenderBudgetBar("Month to date", s.Budget.CurrentCost, s.Budget.BudgetLimit, width),
		),
		section("Performance", perfLines...),
		section("Optimization",
			kv("Cache", fmt.Sprintf("%d hits / %d misses (%.0f%%)", opt.CacheHits, opt.CacheMisses, opt.CacheHitRate*100)),
			kv("Cache entries", fmt.Sprintf("%d", opt.TotalCacheEntries)),
			kv("Compressions", fmt.Sprintf("%d", opt.CompressionUses)),
			kv("Saved", fmt.Sprintf("%d tokens, $%.4f", opt.TotalTokensSaved, opt.TotalCostSaved)),
		),
	}

	if len(s.ActiveAlerts) > 0 {
		lines := make([]string, 0, len(s.ActiveAlerts))
		for _, a := range s.ActiveAlerts {
			sev := styles.GetSeverityStyle(a.Severity).Render(fmt.Sprintf("%-8s", strings.ToUpper(string(a.Severity))))
			lines = append(lines, sev+" "+a.Message)
		}
		sections = append(sections, section("Active alerts", lines...))
	}

	if len(s.Recommendations) > 0 {
		sections = append(sections, section("Recommendations", bullets(s.Recommendations)...))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderTrends(t models.PerformanceTrends) string {
	part := func(name string, trend models.Trend) string {
		return name + " " + styles.GetTrendStyle(trend).Render(string(trend))
	}
	return strings.Join([]string{
		part("latency", t.ResponseTime),
		part("throughput", t.Throughput),
		part("errors", t.ErrorRate),
	}, "  ")
}

func bullets(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = "• " + s
	}
	return out
}

// RenderForecast renders a monthly budget forecast with the daily spend
// history, oldest day first.
func RenderForecast(f models.BudgetForecast, daily []float64, width int) string {
	status := styles.GetBudgetStyle(f.BudgetStatus).Render(strings.ToUpper(string(f.BudgetStatus)))

	lines := []string{
		kv("Status", status),
		kv("Month to date", fmt.Sprintf("$%.2f over %d of %d days", f.CurrentCost, f.DaysElapsed, f.DaysInMonth)),
		kv("Daily average", fmt.Sprintf("$%.2f", f.DailyAverage)),
		kv("Projected", fmt.Sprintf("$%.2f", f.ProjectedCost)),
	}
	if f.BudgetLimit > 0 {
		lines = append(lines,
			RenderBudgetBar("Projected vs budget", f.ProjectedCost, f.BudgetLimit, width))
	}
	if f.RecommendedDailyLimit > 0 {
		lines = append(lines, kv("Suggested daily cap", fmt.Sprintf("$%.2f for %d days", f.RecommendedDailyLimit, f.DaysRemaining)))
	}
	if len(daily) > 0 {
		lines = append(lines,
			kv("Daily spend", RenderSparkline(daily, min(len(daily), 60))),
			"",
			RenderCostChart(daily, f.BudgetLimit, width-10, 8))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		styles.TitleStyle.Render("Monthly budget forecast"),
		section("Forecast", lines...))
}

// RenderSuite renders a benchmark suite as a table plus summary.
func RenderSuite(suite *models.BenchmarkSuite, width int) string {
	if suite == nil {
		return styles.HelpStyle.Render(noData)
	}

	header := fmt.Sprintf("%-28s %-17s %8s %10s %10s %9s %10s",
		"Scenario", "Category", "Requests", "Avg (ms)", "P95 (ms)", "Success", "Cost")
	rows := []string{styles.TableHeaderStyle.Render(header)}

	names := make([]string, 0, len(suite.Results))
	avgs := make([]float64, 0, len(suite.Results))
	for _, r := range suite.Results {
		success := fmt.Sprintf("%8.1f%%", r.SuccessRate*100)
		if r.SuccessRate < 1 {
			success = styles.WarningTextStyle.Render(success)
		}
		rows = append(rows, styles.TableCellStyle.Render(fmt.Sprintf("%-28s %-17s %8d %10.0f %10.0f %s %10s",
			truncate(r.Scenario, 28), r.Category, r.Requests,
			r.AverageResponseTime, r.P95ResponseTime, success, fmt.Sprintf("$%.4f", r.TotalCost))))

		names = append(names, truncate(r.Scenario, 20))
		avgs = append(avgs, r.AverageResponseTime)
	}

	sum := suite.Summary
	summary := section("Summary",
		kv("Requests", fmt.Sprintf("%d", sum.TotalRequests)),
		kv("Success rate", fmt.Sprintf("%.1f%%", sum.OverallSuccessRate*100)),
		kv("Total cost", fmt.Sprintf("$%.4f", sum.TotalCost)),
		kv("Avg response", fmt.Sprintf("%.0fms", sum.AverageResponseTime)),
	)

	parts := []string{
		styles.TitleStyle.Render(suite.Name),
		lipgloss.JoinVertical(lipgloss.Left, rows...),
		"",
		RenderBarChart(avgs, names, width, "%.0fms"),
		"",
		summary,
	}
	if len(sum.Recommendations) > 0 {
		parts = append(parts, section("Recommendations", bullets(sum.Recommendations)...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
