package benchmark

import (
	"fmt"
	"strings"

	"github.com/j-veylop/tokenwatch/internal/models"
	"github.com/j-veylop/tokenwatch/internal/pricing"
)

// DefaultSuiteName is used when a suite is run without a name.
const DefaultSuiteName = "LLM Performance Validation"

// DefaultScenarios returns the built-in load shapes.
func DefaultScenarios() []models.BenchmarkScenario {
	return []models.BenchmarkScenario{
		{
			Name:         "Small Context - Quick Response",
			Description:  "Small context with short responses",
			ContextSize:  10_000,
			OutputLength: 500,
			Concurrency:  1,
			Iterations:   10,
			Category:     models.CategoryLatency,
		},
		{
			Name:         "Medium Context - Standard Response",
			Description:  "Medium context with standard responses",
			ContextSize:  100_000,
			OutputLength: 2_000,
			Concurrency:  2,
			Iterations:   10,
			Category:     models.CategoryLatency,
		},
		{
			Name:         "Large Context - Long Response",
			Description:  "Large context with long responses",
			ContextSize:  500_000,
			OutputLength: 5_000,
			Concurrency:  1,
			Iterations:   5,
			Category:     models.CategoryCapacity,
		},
		{
			Name:         "Maximum Context - Maximum Response",
			Description:  "Context and output near the model limits",
			ContextSize:  900_000,
			OutputLength: 32_000,
			Concurrency:  1,
			Iterations:   3,
			Category:     models.CategoryCapacity,
		},
		{
			Name:         "High Concurrency - Medium Context",
			Description:  "Concurrent request handling",
			ContextSize:  50_000,
			OutputLength: 1_000,
			Concurrency:  5,
			Iterations:   20,
			Category:     models.CategoryThroughput,
		},
		{
			Name:         "Cost Optimization - Compressed Context",
			Description:  "Context compression before sending",
			ContextSize:  200_000,
			OutputLength: 1_500,
			Concurrency:  2,
			Iterations:   10,
			Category:     models.CategoryCostOptimization,
		},
		{
			Name:         "Error Recovery - High Load",
			Description:  "Failure handling under high load",
			ContextSize:  150_000,
			OutputLength: 3_000,
			Concurrency:  8,
			Iterations:   30,
			Category:     models.CategoryResilience,
		},
	}
}

// Classify returns the scenario's category, inferring one from its shape
// when none or an unknown one is set.
func Classify(s models.BenchmarkScenario) models.ScenarioCategory {
	switch s.Category {
	case models.CategoryLatency, models.CategoryThroughput, models.CategoryCapacity,
		models.CategoryCostOptimization, models.CategoryResilience:
		return s.Category
	}

	switch {
	case s.ContextSize >= 500_000:
		return models.CategoryCapacity
	case s.Concurrency >= 5:
		return models.CategoryThroughput
	default:
		return models.CategoryLatency
	}
}

func normalizeScenario(s models.BenchmarkScenario) models.BenchmarkScenario {
	s.Concurrency = max(s.Concurrency, 1)
	s.Iterations = max(s.Iterations, 1)
	s.ContextSize = max(s.ContextSize, 0)
	s.OutputLength = max(s.OutputLength, 0)
	s.Category = Classify(s)
	return s
}

// synthesizeContext builds roughly tokens worth of reference text in which
// every line appears four times, so deduplicating compression has work to do.
func synthesizeContext(tokens int) string {
	target := tokens * pricing.CharsPerToken
	var b strings.Builder
	b.Grow(target + 64)
	for i := 0; b.Len() < target; i++ {
		fmt.Fprintf(&b, "Reference record %d: shared background material for the request.\n", i/4)
	}
	return b.String()
}
