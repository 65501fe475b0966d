package config

import (
	"fmt"
	"strings"
)

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks the configuration for invalid or contradictory values.
func (c *Config) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.CostAnalysis.BudgetLimit < 0 {
		addf("cost_analysis.budget_limit must not be negative")
	}
	if c.CostAnalysis.DailyBudget < 0 {
		addf("cost_analysis.daily_budget must not be negative")
	}
	if c.CostAnalysis.AlertThreshold <= 0 || c.CostAnalysis.AlertThreshold > 100 {
		addf("cost_analysis.alert_threshold must be in (0, 100], got %v", c.CostAnalysis.AlertThreshold)
	}

	m := c.Monitoring
	if m.Interval <= 0 {
		addf("monitoring.interval must be positive")
	}
	if m.RetentionHours <= 0 {
		addf("monitoring.retention_hours must be positive")
	}
	if m.Thresholds.ResponseTime.Warning >= m.Thresholds.ResponseTime.Critical {
		addf("response time warning threshold (%v) must be below critical (%v)",
			m.Thresholds.ResponseTime.Warning, m.Thresholds.ResponseTime.Critical)
	}
	if m.Thresholds.ErrorRate.Warning >= m.Thresholds.ErrorRate.Critical {
		addf("error rate warning threshold (%v) must be below critical (%v)",
			m.Thresholds.ErrorRate.Warning, m.Thresholds.ErrorRate.Critical)
	}
	if !inUnitRange(m.Thresholds.ErrorRate.Warning) || !inUnitRange(m.Thresholds.ErrorRate.Critical) {
		addf("error rate thresholds must be within [0, 1]")
	}

	o := c.Optimization
	if o.MaxCacheSize <= 0 {
		addf("optimization.max_cache_size must be positive")
	}
	if o.CacheTTL <= 0 {
		addf("optimization.cache_ttl must be positive")
	}
	if o.CompressionThreshold <= 0 {
		addf("optimization.compression_threshold must be positive")
	}
	if o.BatchSize <= 0 {
		addf("optimization.batch_size must be positive")
	}
	if o.BatchDelay < 0 {
		addf("optimization.batch_delay must not be negative")
	}
	if !inUnitRange(o.QualityThreshold) {
		addf("optimization.quality_threshold must be within [0, 1]")
	}
	if !inUnitRange(o.RoutingQualityFloor) {
		addf("optimization.routing_quality_floor must be within [0, 1]")
	}
	switch o.CompressionStrategy {
	case StrategySemantic, StrategyStructural, StrategySummarization, StrategyAdaptive:
	default:
		addf("unknown compression strategy %q", o.CompressionStrategy)
	}

	b := c.Benchmarking
	if b.AutoRunEnabled && b.ScheduleIntervalHours <= 0 {
		addf("benchmarking.schedule_interval_hours must be positive when auto run is enabled")
	}
	if b.SimulationSpeedup <= 0 {
		addf("benchmarking.simulation_speedup must be positive")
	}
	if !inUnitRange(b.ErrorRate) {
		addf("benchmarking.error_rate must be within [0, 1]")
	}
	for i, s := range b.CustomScenarios {
		if s.Name == "" {
			addf("benchmarking.custom_scenarios[%d] requires a name", i)
		}
		if s.Iterations <= 0 || s.Concurrency <= 0 {
			addf("benchmarking.custom_scenarios[%d] needs positive iterations and concurrency", i)
		}
	}

	if c.API.RequestsPerMinute < 0 {
		addf("api.requests_per_minute must not be negative")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}
