package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/tokenwatch/internal/ui/styles"
)

// Gradient endpoints for the filled part of a budget bar.
const (
	budgetBarLow  = "#51cf66"
	budgetBarHigh = "#ff6b6b"
)

// RenderBudgetBarChars renders just the bar: filled cells shade from green
// to red, the rest are light blocks. percent is clamped to [0, 100].
func RenderBudgetBarChars(percent float64, width int) string {
	if width < 1 {
		return ""
	}

	filled := int(float64(width) * min(max(percent, 0), 100) / 100)

	var b strings.Builder
	for i := range width {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(interpolateColor(budgetBarLow, budgetBarHigh, t)))
			b.WriteString(style.Render("█"))
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Subtle).Render("░"))
		}
	}
	return b.String()
}

// RenderBudgetBar renders a labelled utilization bar. Spend past the limit
// fills the bar and shows the real percentage.
func RenderBudgetBar(label string, spent, limit float64, width int) string {
	labelStr := styles.LabelStyle.Render(label)
	if limit <= 0 {
		return lipgloss.JoinHorizontal(lipgloss.Center,
			labelStr, styles.HelpStyle.Render(fmt.Sprintf("$%.2f (no budget set)", spent)))
	}

	percent := spent / limit * 100
	bar := RenderBudgetBarChars(percent, max(width-40, 10))
	pct := styles.GetUtilizationStyle(percent).
		Width(6).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%.0f%%", percent))
	amounts := styles.HelpStyle.Render(fmt.Sprintf(" $%.2f / $%.2f", spent, limit))

	return lipgloss.JoinHorizontal(lipgloss.Center, labelStr, bar, " ", pct, amounts)
}

// interpolateColor blends two #rrggbb colors, t in [0, 1].
func interpolateColor(from, to string, t float64) string {
	var r1, g1, b1, r2, g2, b2 int
	fmt.Sscanf(from, "#%02x%02x%02x", &r1, &g1, &b1)
	fmt.Sscanf(to, "#%02x%02x%02x", &r2, &g2, &b2)

	lerp := func(a, b int) int {
		return a + int(float64(b-a)*t)
	}
	return fmt.Sprintf("#%02x%02x%02x", lerp(r1, r2), lerp(g1, g2), lerp(b1, b2))
}
