package monitor

import (
	"math"
	"slices"
	"time"

	"github.com/j-veylop/tokenwatch/internal/models"
)

// trendThreshold is the relative change below which a metric counts as stable.
const trendThreshold = 0.05

// PerformanceStats aggregates the samples recorded within window.
// An empty window yields zeros.
func (m *Monitor) PerformanceStats(window models.StatsWindow) models.PerformanceStats {
	samples := m.Samples(window.Duration())
	stats := models.PerformanceStats{Window: window, SampleCount: len(samples)}
	if len(samples) == 0 {
		return stats
	}

	responseTimes := make([]float64, len(samples))
	var throughput, errorRate, contextTime, tokenRate []float64
	for i, s := range samples {
		responseTimes[i] = s.ResponseTime
		throughput = append(throughput, s.Throughput)
		errorRate = append(errorRate, s.ErrorRate)
		contextTime = append(contextTime, s.ContextProcessingTime)
		tokenRate = append(tokenRate, s.TokenProcessingRate)
	}

	stats.AverageResponseTime = mean(responseTimes)
	slices.Sort(responseTimes)
	stats.P95ResponseTime = Percentile(responseTimes, 95)
	stats.P99ResponseTime = Percentile(responseTimes, 99)
	stats.AverageThroughput = mean(throughput)
	stats.CurrentErrorRate = mean(errorRate)
	stats.AverageContextProcessingTime = mean(contextTime)
	stats.TokenProcessingEfficiency = mean(tokenRate)

	return stats
}

// Percentile returns the nearest-rank percentile of sorted (ascending): the
// element at 1-based rank floor(n*p/100), clamped to [1, n].
func Percentile(sorted []float64, p int) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	rank := min(max(n*p/100, 1), n)
	return sorted[rank-1]
}

// PerformanceTrends compares the older and newer halves of the samples from
// the last hours. Fewer than two samples are reported as stable.
func (m *Monitor) PerformanceTrends(hours int) models.PerformanceTrends {
	trends := models.PerformanceTrends{
		ResponseTime: models.TrendStable,
		Throughput:   models.TrendStable,
		ErrorRate:    models.TrendStable,
	}
	if hours <= 0 {
		hours = 1
	}

	samples := m.Samples(time.Duration(hours) * time.Hour)
	if len(samples) < 2 {
		return trends
	}

	mid := len(samples) / 2
	before, after := samples[:mid], samples[mid:]
	field := func(ss []models.PerformanceSample, metric models.Metric) float64 {
		values := make([]float64, 0, len(ss))
		for _, s := range ss {
			v, _ := s.Value(metric)
			values = append(values, v)
		}
		return mean(values)
	}

	trends.ResponseTime = classifyTrend(field(before, models.MetricResponseTime), field(after, models.MetricResponseTime), false)
	trends.Throughput = classifyTrend(field(before, models.MetricThroughput), field(after, models.MetricThroughput), true)
	trends.ErrorRate = classifyTrend(field(before, models.MetricErrorRate), field(after, models.MetricErrorRate), false)
	return trends
}

// classifyTrend compares two means. For metrics where higher is better an
// increase is an improvement; otherwise a decrease is. A zero baseline
// treats any change as a full relative change.
func classifyTrend(before, after float64, higherIsBetter bool) models.Trend {
	var change float64
	switch {
	case before == after:
		return models.TrendStable
	case before == 0:
		change = math.Copysign(1, after)
	default:
		change = (after - before) / math.Abs(before)
	}

	if !isFinite(change) || math.Abs(change) < trendThreshold {
		return models.TrendStable
	}

	improved := change < 0
	if higherIsBetter {
		improved = change > 0
	}
	if improved {
		return models.TrendImproving
	}
	return models.TrendDegrading
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
