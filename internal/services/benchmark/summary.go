package benchmark

import (
	"fmt"

	"github.com/j-veylop/tokenwatch/internal/models"
)

// Summarize aggregates results and derives recommendations from them.
func (r *Runner) Summarize(results []models.BenchmarkResult) models.BenchmarkSummary {
	var summary models.BenchmarkSummary
	if len(results) == 0 {
		summary.Recommendations = []string{"No benchmark results to analyze"}
		return summary
	}

	var responseTime, successRate float64
	slow, expensive, fast := 0, 0, 0
	for _, res := range results {
		summary.TotalRequests += res.Requests
		summary.TotalCost += res.TotalCost
		responseTime += res.AverageResponseTime
		successRate += res.SuccessRate

		if res.AverageResponseTime > r.config.SlowResponseTime {
			slow++
		}
		if res.CostPerRequest > r.config.ExpensiveRequestCost {
			expensive++
		}
		if res.Throughput > r.config.HighThroughput {
			fast++
		}
	}
	n := float64(len(results))
	summary.AverageResponseTime = responseTime / n
	summary.OverallSuccessRate = successRate / n

	var recs []string
	if slow > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d scenario(s) averaged over %.0fs per response; compress large contexts before sending",
			slow, r.config.SlowResponseTime/1000))
	}
	if expensive > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d scenario(s) cost more than $%.2f per request; cache responses to repeated queries",
			expensive, r.config.ExpensiveRequestCost))
	}
	if summary.OverallSuccessRate < r.config.MinSuccessRate {
		recs = append(recs, fmt.Sprintf(
			"Success rate is %.1f%%; retry transient failures with backoff",
			summary.OverallSuccessRate*100))
	}
	if fast > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d scenario(s) sustained more than %.0f req/s; raise concurrency for similar workloads",
			fast, r.config.HighThroughput))
	}
	if len(recs) == 0 {
		recs = append(recs, "All performance metrics are within acceptable ranges")
	}
	summary.Recommendations = recs
	return summary
}
