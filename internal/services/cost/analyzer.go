// Package cost tracks token spend against per-model pricing and budgets.
package cost

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/j-veylop/tokenwatch/internal/logger"
	"github.com/j-veylop/tokenwatch/internal/models"
	"github.com/j-veylop/tokenwatch/internal/pricing"
)

// Config holds configuration for the cost analyzer.
type Config struct {
	LedgerCapacity int
	BudgetLimit    float64 // monthly USD
	AlertThreshold float64 // percent
	Clock          func() time.Time
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		LedgerCapacity: 10_000,
		AlertThreshold: 80,
	}
}

// Analyzer converts token usage to cost and keeps a bounded usage ledger.
type Analyzer struct {
	pricing *pricing.Registry
	ledger  []models.TokenUsageRecord
	config  Config
	now     func() time.Time
	mu      sync.RWMutex
}

// New creates a cost analyzer. A nil registry uses the default pricing.
func New(registry *pricing.Registry, config Config) *Analyzer {
	defaults := DefaultConfig()
	if config.LedgerCapacity <= 0 {
		config.LedgerCapacity = defaults.LedgerCapacity
	}
	if config.AlertThreshold <= 0 {
		config.AlertThreshold = defaults.AlertThreshold
	}
	if registry == nil {
		registry = pricing.Default()
	}

	now := config.Clock
	if now == nil {
		now = time.Now
	}

	return &Analyzer{
		pricing: registry,
		config:  config,
		now:     now,
	}
}

// CalculateRequestCost returns the USD cost of a request on model.
func (a *Analyzer) CalculateRequestCost(inputTokens, outputTokens int, model string) (float64, error) {
	tier, err := a.pricing.Lookup(model)
	if err != nil {
		return 0, err
	}
	return tier.Cost(inputTokens, outputTokens), nil
}

// LogUsage prices a record and appends it to the ledger, evicting the oldest
// entries past capacity. The stored record is returned.
func (a *Analyzer) LogUsage(record models.TokenUsageRecord) (models.TokenUsageRecord, error) {
	cost, err := a.CalculateRequestCost(record.InputTokens, record.OutputTokens, record.Model)
	if err != nil {
		return models.TokenUsageRecord{}, fmt.Errorf("failed to log usage: %w", err)
	}

	record.TotalTokens = record.InputTokens + record.OutputTokens
	record.Cost = cost
	if record.Timestamp.IsZero() {
		record.Timestamp = a.now()
	}

	a.mu.Lock()
	a.ledger = append(a.ledger, record)
	if overflow := len(a.ledger) - a.config.LedgerCapacity; overflow > 0 {
		a.ledger = slices.Delete(a.ledger, 0, overflow)
	}
	a.mu.Unlock()

	logger.Debug("usage logged", "model", record.Model, "tokens", record.TotalTokens, "cost", cost)
	return record, nil
}

// Records returns a copy of the ledger, oldest first.
func (a *Analyzer) Records() []models.TokenUsageRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.ledger)
}

// Len returns the number of records in the ledger.
func (a *Analyzer) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.ledger)
}

// SetBudgetLimit changes the monthly budget used for utilization.
func (a *Analyzer) SetBudgetLimit(limit float64) {
	a.mu.Lock()
	a.config.BudgetLimit = limit
	a.mu.Unlock()
}

// SetAlertThreshold changes the percent of the budget at which a forecast
// reports approaching. Values of zero or less restore the default.
func (a *Analyzer) SetAlertThreshold(percent float64) {
	if percent <= 0 {
		percent = DefaultConfig().AlertThreshold
	}
	a.mu.Lock()
	a.config.AlertThreshold = percent
	a.mu.Unlock()
}

// AlertThreshold returns the budget alert threshold in percent.
func (a *Analyzer) AlertThreshold() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config.AlertThreshold
}

// BudgetLimit returns the configured monthly budget.
func (a *Analyzer) BudgetLimit() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config.BudgetLimit
}

// since returns ledger records with timestamps in [from, now].
func (a *Analyzer) since(from time.Time) []models.TokenUsageRecord {
	now := a.now()

	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []models.TokenUsageRecord
	for _, r := range a.ledger {
		if r.Timestamp.Before(from) || r.Timestamp.After(now) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// CostMetrics summarizes spend over window and extrapolates it to daily,
// weekly and monthly rates.
func (a *Analyzer) CostMetrics(window models.CostWindow) models.CostMetrics {
	records := a.since(a.now().Add(-window.Duration()))

	metrics := models.CostMetrics{Window: window, RequestCount: len(records)}
	if len(records) == 0 {
		return metrics
	}

	for _, r := range records {
		metrics.TotalCost += r.Cost
		metrics.TotalTokens += r.TotalTokens
	}

	perDay := metrics.TotalCost / float64(window.Days())
	metrics.DailyCost = perDay
	metrics.WeeklyCost = perDay * 7
	metrics.MonthlyCost = perDay * 30
	metrics.AverageCostPerRequest = metrics.TotalCost / float64(len(records))
	if metrics.TotalTokens > 0 {
		metrics.TokenEfficiency = metrics.TotalCost / float64(metrics.TotalTokens) * 1000
	}
	if limit := a.BudgetLimit(); limit > 0 {
		metrics.BudgetUtilization = metrics.MonthlyCost / limit * 100
	}

	return metrics
}

// CompareModelCosts prices the same request on each model, cheapest first.
// Unknown models are skipped with a warning. With no models given every
// registered model is compared.
func (a *Analyzer) CompareModelCosts(inputTokens, outputTokens int, modelIDs ...string) []models.ModelCost {
	if len(modelIDs) == 0 {
		modelIDs = a.pricing.Models()
	}

	result := make([]models.ModelCost, 0, len(modelIDs))
	for _, id := range modelIDs {
		cost, err := a.CalculateRequestCost(inputTokens, outputTokens, id)
		if err != nil {
			logger.Warn("skipping model in cost comparison", "model", id, "error", err)
			continue
		}
		result = append(result, models.ModelCost{Model: id, Cost: cost})
	}

	slices.SortStableFunc(result, func(x, y models.ModelCost) int {
		switch {
		case x.Cost < y.Cost:
			return -1
		case x.Cost > y.Cost:
			return 1
		default:
			return 0
		}
	})
	return result
}

// ForecastMonthlyBudget projects month-to-date spend linearly to month end.
// A budgetLimit of zero or less leaves the status unknown.
func (a *Analyzer) ForecastMonthlyBudget(budgetLimit float64) models.BudgetForecast {
	now := a.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	daysInMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	daysElapsed := now.Day()

	forecast := models.BudgetForecast{
		DaysElapsed:   daysElapsed,
		DaysInMonth:   daysInMonth,
		DaysRemaining: daysInMonth - daysElapsed + 1,
		BudgetStatus:  models.BudgetUnknown,
	}

	for _, r := range a.since(monthStart) {
		forecast.CurrentCost += r.Cost
	}
	forecast.DailyAverage = forecast.CurrentCost / float64(daysElapsed)
	forecast.ProjectedCost = forecast.DailyAverage * float64(daysInMonth)

	if budgetLimit <= 0 {
		return forecast
	}

	forecast.BudgetLimit = budgetLimit
	a.mu.RLock()
	threshold := a.config.AlertThreshold
	a.mu.RUnlock()

	switch {
	case forecast.ProjectedCost > budgetLimit:
		forecast.BudgetStatus = models.BudgetOver
	case forecast.ProjectedCost >= budgetLimit*threshold/100:
		forecast.BudgetStatus = models.BudgetApproaching
	default:
		forecast.BudgetStatus = models.BudgetUnder
	}

	if remaining := budgetLimit - forecast.CurrentCost; remaining > 0 {
		forecast.RecommendedDailyLimit = remaining / float64(forecast.DaysRemaining)
	}

	return forecast
}

// SpendSince returns the total cost logged since from.
func (a *Analyzer) SpendSince(from time.Time) float64 {
	total := 0.0
	for _, r := range a.since(from) {
		total += r.Cost
	}
	return total
}

// DailySpend returns per-day cost totals for the last n days, oldest first.
func (a *Analyzer) DailySpend(days int) []float64 {
	if days <= 0 {
		return nil
	}
	now := a.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	first := today.AddDate(0, 0, -(days - 1))

	totals := make([]float64, days)
	for _, r := range a.since(first) {
		ts := r.Timestamp.In(now.Location())
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, now.Location())
		idx := int(math.Round(day.Sub(first).Hours() / 24))
		if idx >= 0 && idx < days {
			totals[idx] += r.Cost
		}
	}
	return totals
}
