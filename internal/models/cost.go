// Package models defines data structures and domain types.
package models

import "time"

// CostWindow selects the ledger span used for cost metrics.
type CostWindow string

const (
	// CostWindowDay covers the last 24 hours.
	CostWindowDay CostWindow = "day"
	// CostWindowWeek covers the last 7 days.
	CostWindowWeek CostWindow = "week"
	// CostWindowMonth covers the last 30 days.
	CostWindowMonth CostWindow = "month"
)

// Days returns the number of days in the window. Unknown windows count as a day.
func (w CostWindow) Days() int {
	switch w {
	case CostWindowWeek:
		return 7
	case CostWindowMonth:
		return 30
	default:
		return 1
	}
}

// Duration returns the window length.
func (w CostWindow) Duration() time.Duration {
	return time.Duration(w.Days()) * 24 * time.Hour
}

// TokenUsageRecord is a single entry in the cost ledger.
type TokenUsageRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Model        string    `json:"model"`
	Context      string    `json:"context,omitempty"`
	InputTokens  int       `json:"inputTokens"`
	OutputTokens int       `json:"outputTokens"`
	TotalTokens  int       `json:"totalTokens"`
	Cost         float64   `json:"cost"`
}

// CostMetrics summarizes ledger spend over a window.
type CostMetrics struct {
	Window                CostWindow `json:"window"`
	TotalCost             float64    `json:"totalCost"`
	DailyCost             float64    `json:"dailyCost"`
	WeeklyCost            float64    `json:"weeklyCost"`
	MonthlyCost           float64    `json:"monthlyCost"`
	AverageCostPerRequest float64    `json:"averageCostPerRequest"`
	TokenEfficiency       float64    `json:"tokenEfficiency"` // cost per 1,000 tokens
	BudgetUtilization     float64    `json:"budgetUtilization"`
	RequestCount          int        `json:"requestCount"`
	TotalTokens           int        `json:"totalTokens"`
}

// ModelCost is the cost of one request shape on a single model.
type ModelCost struct {
	Model string  `json:"model"`
	Cost  float64 `json:"cost"`
}

// BudgetStatus classifies a monthly forecast against its limit.
type BudgetStatus string

const (
	BudgetUnder       BudgetStatus = "under"
	BudgetApproaching BudgetStatus = "approaching"
	BudgetOver        BudgetStatus = "over"
	BudgetUnknown     BudgetStatus = "unknown"
)

// BudgetForecast is a linear month-end projection of spend.
type BudgetForecast struct {
	DaysElapsed           int          `json:"daysElapsed"`
	DaysInMonth           int          `json:"daysInMonth"`
	DaysRemaining         int          `json:"daysRemaining"`
	CurrentCost           float64      `json:"currentCost"`
	DailyAverage          float64      `json:"dailyAverage"`
	ProjectedCost         float64      `json:"projectedCost"`
	BudgetLimit           float64      `json:"budgetLimit,omitempty"`
	BudgetStatus          BudgetStatus `json:"budgetStatus"`
	RecommendedDailyLimit float64      `json:"recommendedDailyLimit,omitempty"`
}
