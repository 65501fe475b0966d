// Package telemetry exposes system status as Prometheus metrics and JSON
// over HTTP.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/j-veylop/tokenwatch/internal/models"
)

const namespace = "tokenwatch"

// StatusSource provides the snapshot every scrape is built from.
type StatusSource interface {
	GetSystemStatus() models.SystemStatus
}

var severities = []models.Severity{
	models.SeverityLow,
	models.SeverityMedium,
	models.SeverityHigh,
	models.SeverityCritical,
}

var budgetStatuses = []models.BudgetStatus{
	models.BudgetUnder,
	models.BudgetApproaching,
	models.BudgetOver,
	models.BudgetUnknown,
}

// Collector turns a SystemStatus into metrics at scrape time.
type Collector struct {
	source StatusSource

	costDay         *prometheus.Desc
	requestsDay     *prometheus.Desc
	tokensDay       *prometheus.Desc
	budgetProjected *prometheus.Desc
	budgetLimit     *prometheus.Desc
	budgetStatus    *prometheus.Desc
	responseTime    *prometheus.Desc
	throughput      *prometheus.Desc
	errorRate       *prometheus.Desc
	samples         *prometheus.Desc
	cacheHits       *prometheus.Desc
	cacheMisses     *prometheus.Desc
	cacheEntries    *prometheus.Desc
	tokensSaved     *prometheus.Desc
	costSaved       *prometheus.Desc
	activeAlerts    *prometheus.Desc
}

// NewCollector creates a collector reading from source.
func NewCollector(source StatusSource) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}

	return &Collector{
		source:          source,
		costDay:         desc("cost_day_usd", "Spend over the last 24 hours in USD."),
		requestsDay:     desc("requests_day", "Requests logged over the last 24 hours."),
		tokensDay:       desc("tokens_day", "Tokens logged over the last 24 hours."),
		budgetProjected: desc("budget_projected_usd", "Month-end spend projected from month-to-date usage."),
		budgetLimit:     desc("budget_limit_usd", "Configured monthly budget."),
		budgetStatus:    desc("budget_status", "1 for the current budget status, 0 otherwise.", "status"),
		responseTime:    desc("response_time_seconds", "Response time over the last hour.", "stat"),
		throughput:      desc("throughput_rps", "Average throughput over the last hour."),
		errorRate:       desc("error_rate", "Mean error rate over the last hour."),
		samples:         desc("samples_hour", "Performance samples recorded over the last hour."),
		cacheHits:       desc("cache_hits_total", "Response cache hits."),
		cacheMisses:     desc("cache_misses_total", "Response cache misses."),
		cacheEntries:    desc("cache_entries", "Entries in the response cache."),
		tokensSaved:     desc("tokens_saved_total", "Tokens saved by caching and compression."),
		costSaved:       desc("cost_saved_usd_total", "Estimated USD saved by caching and compression."),
		activeAlerts:    desc("active_alerts", "Unresolved performance alerts.", "severity"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.costDay, c.requestsDay, c.tokensDay,
		c.budgetProjected, c.budgetLimit, c.budgetStatus,
		c.responseTime, c.throughput, c.errorRate, c.samples,
		c.cacheHits, c.cacheMisses, c.cacheEntries, c.tokensSaved, c.costSaved,
		c.activeAlerts,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.GetSystemStatus()

	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v)
	}

	gauge(c.costDay, s.Cost.TotalCost)
	gauge(c.requestsDay, float64(s.Cost.RequestCount))
	gauge(c.tokensDay, float64(s.Cost.TotalTokens))

	gauge(c.budgetProjected, s.Budget.ProjectedCost)
	gauge(c.budgetLimit, s.Budget.BudgetLimit)
	for _, status := range budgetStatuses {
		v := 0.0
		if s.Budget.BudgetStatus == status {
			v = 1
		}
		gauge(c.budgetStatus, v, string(status))
	}

	gauge(c.responseTime, s.Performance.AverageResponseTime/1000, "avg")
	gauge(c.responseTime, s.Performance.P95ResponseTime/1000, "p95")
	gauge(c.responseTime, s.Performance.P99ResponseTime/1000, "p99")
	gauge(c.throughput, s.Performance.AverageThroughput)
	gauge(c.errorRate, s.Performance.CurrentErrorRate)
	gauge(c.samples, float64(s.Performance.SampleCount))

	counter(c.cacheHits, float64(s.Optimization.CacheHits))
	counter(c.cacheMisses, float64(s.Optimization.CacheMisses))
	gauge(c.cacheEntries, float64(s.Optimization.TotalCacheEntries))
	counter(c.tokensSaved, float64(s.Optimization.TotalTokensSaved))
	counter(c.costSaved, s.Optimization.TotalCostSaved)

	counts := make(map[models.Severity]int, len(severities))
	for _, a := range s.ActiveAlerts {
		counts[a.Severity]++
	}
	for _, sev := range severities {
		gauge(c.activeAlerts, float64(counts[sev]), string(sev))
	}
}
