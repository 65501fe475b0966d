package models

import "time"

// StatsWindow selects the sample span used for performance stats.
type StatsWindow string

const (
	StatsWindowMinute StatsWindow = "minute"
	StatsWindowHour   StatsWindow = "hour"
	StatsWindowDay    StatsWindow = "24h"
)

// Duration returns the window length. Unknown windows count as an hour.
func (w StatsWindow) Duration() time.Duration {
	switch w {
	case StatsWindowMinute:
		return time.Minute
	case StatsWindowDay:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// PerformanceSample is one observation of request health.
type PerformanceSample struct {
	Timestamp             time.Time `json:"timestamp"`
	ResponseTime          float64   `json:"responseTime"`          // ms
	Throughput            float64   `json:"throughput"`            // requests/s
	ErrorRate             float64   `json:"errorRate"`             // 0..1
	ContextProcessingTime float64   `json:"contextProcessingTime"` // ms
	TokenProcessingRate   float64   `json:"tokenProcessingRate"`   // tokens/s
	MemoryUsage           float64   `json:"memoryUsage"`           // MB
	CPUUsage              float64   `json:"cpuUsage"`              // percent
}

// Metric names a numeric field of PerformanceSample.
type Metric string

const (
	MetricResponseTime          Metric = "responseTime"
	MetricThroughput            Metric = "throughput"
	MetricErrorRate             Metric = "errorRate"
	MetricContextProcessingTime Metric = "contextProcessingTime"
	MetricTokenProcessingRate   Metric = "tokenProcessingRate"
	MetricMemoryUsage           Metric = "memoryUsage"
	MetricCPUUsage              Metric = "cpuUsage"
)

// Value returns the sample's value for metric m.
func (s PerformanceSample) Value(m Metric) (float64, bool) {
	switch m {
	case MetricResponseTime:
		return s.ResponseTime, true
	case MetricThroughput:
		return s.Throughput, true
	case MetricErrorRate:
		return s.ErrorRate, true
	case MetricContextProcessingTime:
		return s.ContextProcessingTime, true
	case MetricTokenProcessingRate:
		return s.TokenProcessingRate, true
	case MetricMemoryUsage:
		return s.MemoryUsage, true
	case MetricCPUUsage:
		return s.CPUUsage, true
	default:
		return 0, false
	}
}

// Operator compares an observed value to a threshold.
type Operator string

const (
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
)

// Breached reports whether value crosses threshold under the operator.
func (o Operator) Breached(value, threshold float64) bool {
	switch o {
	case OpGreater:
		return value > threshold
	case OpLess:
		return value < threshold
	case OpGreaterEqual:
		return value >= threshold
	case OpLessEqual:
		return value <= threshold
	default:
		return false
	}
}

// Severity ranks alert urgency.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AlertThresholdRule raises an alert when Metric breaches Threshold.
type AlertThresholdRule struct {
	Metric    Metric   `json:"metric"`
	Threshold float64  `json:"threshold"`
	Operator  Operator `json:"operator"`
	Severity  Severity `json:"severity"`
}

// PerformanceAlert is a recorded threshold breach.
type PerformanceAlert struct {
	ID        string    `json:"id"`
	Metric    Metric    `json:"metric"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Resolved  bool      `json:"resolved"`
}

// PerformanceStats aggregates samples over a window.
type PerformanceStats struct {
	Window                       StatsWindow `json:"window"`
	SampleCount                  int         `json:"sampleCount"`
	AverageResponseTime          float64     `json:"averageResponseTime"`
	P95ResponseTime              float64     `json:"p95ResponseTime"`
	P99ResponseTime              float64     `json:"p99ResponseTime"`
	AverageThroughput            float64     `json:"averageThroughput"`
	CurrentErrorRate             float64     `json:"currentErrorRate"`
	AverageContextProcessingTime float64     `json:"averageContextProcessingTime"`
	TokenProcessingEfficiency    float64     `json:"tokenProcessingEfficiency"`
}

// Trend describes the direction a metric is moving.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDegrading Trend = "degrading"
	TrendStable    Trend = "stable"
)

// PerformanceTrends compares the older and newer halves of a window.
type PerformanceTrends struct {
	ResponseTime Trend `json:"responseTime"`
	Throughput   Trend `json:"throughput"`
	ErrorRate    Trend `json:"errorRate"`
}
