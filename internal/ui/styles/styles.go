// Package styles defines the visual styling for CLI output.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/tokenwatch/internal/models"
)

// Color definitions for the tokenwatch theme.
var (
	// Primary colors
	Primary   = lipgloss.Color("205") // Pink
	Secondary = lipgloss.Color("63")  // Purple
	Subtle    = lipgloss.Color("240") // Gray

	// Status colors
	Success = lipgloss.Color("42")  // Green
	Error   = lipgloss.Color("196") // Red
	Warning = lipgloss.Color("220") // Yellow
	Info    = lipgloss.Color("39")  // Blue

	// Text colors
	TextPrimary   = lipgloss.Color("252")
	TextSecondary = lipgloss.Color("245")
	TextMuted     = lipgloss.Color("240")
)

// TitleStyle is used for main headings.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	MarginBottom(1)

// SubTitleStyle is used for section headings.
var SubTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Secondary)

// CardStyle frames a block of related output.
var CardStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Secondary).
	Padding(0, 1).
	MarginBottom(1)

// LabelStyle styles the left column of key/value lines.
var LabelStyle = lipgloss.NewStyle().
	Foreground(TextSecondary).
	Width(22)

// ValueStyle styles the right column of key/value lines.
var ValueStyle = lipgloss.NewStyle().
	Foreground(TextPrimary)

// HelpStyle is the base style for secondary text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(TextMuted)

// TableHeaderStyle styles table headers.
var TableHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	BorderStyle(lipgloss.NormalBorder()).
	BorderBottom(true).
	BorderForeground(Subtle)

// TableCellStyle styles table cells.
var TableCellStyle = lipgloss.NewStyle().
	Padding(0, 1)

// ErrorTextStyle for error messages.
var ErrorTextStyle = lipgloss.NewStyle().
	Foreground(Error)

// SuccessTextStyle for success messages.
var SuccessTextStyle = lipgloss.NewStyle().
	Foreground(Success)

// WarningTextStyle for warning messages.
var WarningTextStyle = lipgloss.NewStyle().
	Foreground(Warning)

// InfoTextStyle for info messages.
var InfoTextStyle = lipgloss.NewStyle().
	Foreground(Info)

var BudgetUnderStyle = lipgloss.NewStyle().
	Foreground(Success)

var BudgetApproachingStyle = lipgloss.NewStyle().
	Foreground(Warning).
	Bold(true)

var BudgetOverStyle = lipgloss.NewStyle().
	Foreground(Error).
	Bold(true)

var BudgetUnknownStyle = lipgloss.NewStyle().
	Foreground(Subtle)

// GetBudgetStyle returns the style for a forecast status.
func GetBudgetStyle(status models.BudgetStatus) lipgloss.Style {
	switch status {
	case models.BudgetUnder:
		return BudgetUnderStyle
	case models.BudgetApproaching:
		return BudgetApproachingStyle
	case models.BudgetOver:
		return BudgetOverStyle
	default:
		return BudgetUnknownStyle
	}
}

// GetUtilizationStyle returns the style for a budget utilization percentage.
func GetUtilizationStyle(percent float64) lipgloss.Style {
	switch {
	case percent >= 100:
		return BudgetOverStyle
	case percent >= 80:
		return BudgetApproachingStyle
	default:
		return BudgetUnderStyle
	}
}

// GetSeverityStyle returns the style for an alert severity.
func GetSeverityStyle(s models.Severity) lipgloss.Style {
	switch s {
	case models.SeverityCritical:
		return lipgloss.NewStyle().Foreground(Error).Bold(true)
	case models.SeverityHigh:
		return ErrorTextStyle
	case models.SeverityMedium:
		return WarningTextStyle
	default:
		return InfoTextStyle
	}
}

// GetTrendStyle returns the style for a metric trend.
func GetTrendStyle(t models.Trend) lipgloss.Style {
	switch t {
	case models.TrendImproving:
		return SuccessTextStyle
	case models.TrendDegrading:
		return ErrorTextStyle
	default:
		return HelpStyle
	}
}

// CenterHorizontal centers content horizontally within a given width.
func CenterHorizontal(content string, width int) string {
	return lipgloss.NewStyle().Width(width).Align(lipgloss.Center).Render(content)
}
