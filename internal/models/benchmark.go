package models

import "time"

// ScenarioCategory groups benchmark scenarios by what they stress.
type ScenarioCategory string

const (
	CategoryLatency          ScenarioCategory = "latency"
	CategoryThroughput       ScenarioCategory = "throughput"
	CategoryCapacity         ScenarioCategory = "capacity"
	CategoryCostOptimization ScenarioCategory = "cost-optimization"
	CategoryResilience       ScenarioCategory = "resilience"
)

// BenchmarkScenario describes a synthetic load shape.
type BenchmarkScenario struct {
	Name         string           `json:"name" toml:"name"`
	Description  string           `json:"description" toml:"description"`
	ContextSize  int              `json:"contextSize" toml:"context_size"`   // tokens
	OutputLength int              `json:"outputLength" toml:"output_length"` // tokens
	Concurrency  int              `json:"concurrency" toml:"concurrency"`
	Iterations   int              `json:"iterations" toml:"iterations"`
	Category     ScenarioCategory `json:"category,omitempty" toml:"category"`
}

// ScenarioDetail is the category-specific part of a benchmark result.
// The concrete type always matches the result's category.
type ScenarioDetail interface {
	Category() ScenarioCategory
	isScenarioDetail()
}

type (
	// LatencyDetail records the response time spread of a sequential scenario.
	LatencyDetail struct {
		FastestResponseTime float64 `json:"fastestResponseTime"`
		SlowestResponseTime float64 `json:"slowestResponseTime"`
	}

	// ThroughputDetail records how much work was in flight at once.
	ThroughputDetail struct {
		PeakInFlight      int     `json:"peakInFlight"`
		RequestsPerSecond float64 `json:"requestsPerSecond"`
	}

	// CapacityDetail records how much of the target model's context window was used.
	CapacityDetail struct {
		TargetModel        string  `json:"targetModel"`
		ContextLimit       int     `json:"contextLimit"`
		ContextUtilization float64 `json:"contextUtilization"` // 0..1
	}

	// CostOptimizationDetail records what compression saved during the scenario.
	CostOptimizationDetail struct {
		Technique        string  `json:"technique"`
		TokensSaved      int     `json:"tokensSaved"`
		CostSaved        float64 `json:"costSaved"`
		CompressionRatio float64 `json:"compressionRatio"`
	}

	// ResilienceDetail records failure behavior.
	ResilienceDetail struct {
		Failures             int `json:"failures"`
		LongestFailureStreak int `json:"longestFailureStreak"`
	}
)

func (LatencyDetail) Category() ScenarioCategory          { return CategoryLatency }
func (ThroughputDetail) Category() ScenarioCategory       { return CategoryThroughput }
func (CapacityDetail) Category() ScenarioCategory         { return CategoryCapacity }
func (CostOptimizationDetail) Category() ScenarioCategory { return CategoryCostOptimization }
func (ResilienceDetail) Category() ScenarioCategory       { return CategoryResilience }

func (LatencyDetail) isScenarioDetail()          {}
func (ThroughputDetail) isScenarioDetail()       {}
func (CapacityDetail) isScenarioDetail()         {}
func (CostOptimizationDetail) isScenarioDetail() {}
func (ResilienceDetail) isScenarioDetail()       {}

// BenchmarkResult is the aggregate outcome of one scenario.
type BenchmarkResult struct {
	Scenario              string           `json:"scenario"`
	Category              ScenarioCategory `json:"category"`
	Duration              float64          `json:"duration"` // ms
	Requests              int              `json:"requests"`
	AverageResponseTime   float64          `json:"averageResponseTime"`
	P95ResponseTime       float64          `json:"p95ResponseTime"`
	P99ResponseTime       float64          `json:"p99ResponseTime"`
	TotalCost             float64          `json:"totalCost"`
	CostPerRequest        float64          `json:"costPerRequest"`
	TokenProcessingRate   float64          `json:"tokenProcessingRate"`
	ErrorCount            int              `json:"errorCount"`
	SuccessRate           float64          `json:"successRate"`
	Throughput            float64          `json:"throughput"`
	MemoryUsage           float64          `json:"memoryUsage"`
	ContextProcessingTime float64          `json:"contextProcessingTime"`
	Timestamp             time.Time        `json:"timestamp"`
	Detail                ScenarioDetail   `json:"detail,omitempty"`
}

// BenchmarkSummary aggregates a suite's results.
type BenchmarkSummary struct {
	TotalRequests       int      `json:"totalRequests"`
	OverallSuccessRate  float64  `json:"overallSuccessRate"`
	TotalCost           float64  `json:"totalCost"`
	AverageResponseTime float64  `json:"averageResponseTime"`
	Recommendations     []string `json:"recommendations"`
}

// BenchmarkSuite is an immutable record of a suite run.
type BenchmarkSuite struct {
	Name      string              `json:"name"`
	Scenarios []BenchmarkScenario `json:"scenarios"`
	Results   []BenchmarkResult   `json:"results"`
	Summary   BenchmarkSummary    `json:"summary"`
	StartedAt time.Time           `json:"startedAt"`
	Duration  time.Duration       `json:"duration"`
}
