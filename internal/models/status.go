package models

import "time"

// SystemStatus is a point-in-time snapshot for dashboards and health checks.
type SystemStatus struct {
	Timestamp       time.Time           `json:"timestamp"`
	Initialized     bool                `json:"initialized"`
	Monitoring      bool                `json:"monitoring"`
	Cost            CostMetrics         `json:"cost"`
	Budget          BudgetForecast      `json:"budget"`
	Performance     PerformanceStats    `json:"performance"`
	Trends          PerformanceTrends   `json:"trends"`
	Optimization    OptimizationMetrics `json:"optimization"`
	ActiveAlerts    []PerformanceAlert  `json:"activeAlerts"`
	Recommendations []string            `json:"recommendations"`
}

// ValidationReport bundles a benchmark suite with the status observed after it.
type ValidationReport struct {
	Benchmark       *BenchmarkSuite `json:"benchmark"`
	Status          SystemStatus    `json:"status"`
	Recommendations []string        `json:"recommendations"`
}
