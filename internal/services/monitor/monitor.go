// Package monitor records request health samples, computes windowed
// statistics and raises deduplicated threshold alerts.
package monitor

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/j-veylop/tokenwatch/internal/logger"
	"github.com/j-veylop/tokenwatch/internal/models"
	"github.com/j-veylop/tokenwatch/internal/services/schedule"
)

// AlertHandler is called for every newly raised alert.
type AlertHandler func(models.PerformanceAlert)

// Config holds configuration for the performance monitor.
type Config struct {
	Capacity      int
	Rules         []models.AlertThresholdRule
	AlertsEnabled bool
	Retention     time.Duration
	TickWindow    int // samples averaged on each tick
	Sampler       SystemSampler
	Clock         func() time.Time
}

// DefaultRules returns the built-in alert thresholds.
func DefaultRules() []models.AlertThresholdRule {
	return []models.AlertThresholdRule{
		{Metric: models.MetricResponseTime, Threshold: 30000, Operator: models.OpGreater, Severity: models.SeverityHigh},
		{Metric: models.MetricErrorRate, Threshold: 0.05, Operator: models.OpGreater, Severity: models.SeverityCritical},
		{Metric: models.MetricThroughput, Threshold: 1, Operator: models.OpLess, Severity: models.SeverityMedium},
		{Metric: models.MetricContextProcessingTime, Threshold: 10000, Operator: models.OpGreater, Severity: models.SeverityMedium},
		{Metric: models.MetricTokenProcessingRate, Threshold: 100, Operator: models.OpLess, Severity: models.SeverityLow},
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:      1000,
		Rules:         DefaultRules(),
		AlertsEnabled: true,
		Retention:     24 * time.Hour,
		TickWindow:    5,
	}
}

// Monitor keeps a bounded ring of samples and the alerts they trigger.
type Monitor struct {
	samples  []models.PerformanceSample
	alerts   []models.PerformanceAlert
	rules    []models.AlertThresholdRule
	handlers []AlertHandler
	system   models.PerformanceSample
	task     *schedule.Task
	sampler  SystemSampler
	config   Config
	now      func() time.Time
	mu       sync.RWMutex
}

// New creates a monitor. Zero-valued config fields take their defaults,
// except Rules: an empty non-nil slice disables all rules.
func New(config Config) *Monitor {
	defaults := DefaultConfig()
	if config.Capacity <= 0 {
		config.Capacity = defaults.Capacity
	}
	if config.Retention <= 0 {
		config.Retention = defaults.Retention
	}
	if config.TickWindow <= 0 {
		config.TickWindow = defaults.TickWindow
	}
	if config.Rules == nil {
		config.Rules = defaults.Rules
	}
	if config.Sampler == nil {
		config.Sampler = NewRuntimeSampler()
	}

	now := config.Clock
	if now == nil {
		now = time.Now
	}

	return &Monitor{
		rules:   slices.Clone(config.Rules),
		sampler: config.Sampler,
		config:  config,
		now:     now,
	}
}

// Start begins periodic system sampling, threshold evaluation and pruning.
// Starting a running monitor only logs a warning.
func (m *Monitor) Start(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.task != nil {
		logger.Warn("performance monitoring already running")
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}

	m.task = schedule.Every(interval, m.Tick)
	logger.Info("performance monitoring started", "interval", interval)
}

// Stop cancels periodic monitoring. Stopping a stopped monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	task := m.task
	m.task = nil
	m.mu.Unlock()

	if task == nil {
		return
	}
	task.Stop()
	logger.Info("performance monitoring stopped")
}

// IsRunning reports whether periodic monitoring is active.
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.task != nil
}

// OnAlert registers a handler for newly raised alerts.
func (m *Monitor) OnAlert(h AlertHandler) {
	m.mu.Lock()
	m.handlers = append(m.handlers, h)
	m.mu.Unlock()
}

// SetRules replaces the alert rules.
func (m *Monitor) SetRules(rules []models.AlertThresholdRule) {
	m.mu.Lock()
	m.rules = slices.Clone(rules)
	m.mu.Unlock()
}

// Rules returns the active alert rules.
func (m *Monitor) Rules() []models.AlertThresholdRule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.rules)
}

// RecordMetrics stores a sample and evaluates every rule against it.
// Zero memory or CPU values are filled from the system sampler and a zero
// timestamp becomes the current time.
func (m *Monitor) RecordMetrics(sample models.PerformanceSample) models.PerformanceSample {
	if sample.MemoryUsage == 0 || sample.CPUUsage == 0 {
		mem, cpu := m.sampler.Sample()
		if sample.MemoryUsage == 0 {
			sample.MemoryUsage = mem
		}
		if sample.CPUUsage == 0 {
			sample.CPUUsage = cpu
		}
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = m.now()
	}

	m.mu.Lock()
	m.samples = append(m.samples, sample)
	if overflow := len(m.samples) - m.config.Capacity; overflow > 0 {
		m.samples = slices.Delete(m.samples, 0, overflow)
	}
	raised := m.evaluateLocked(sample)
	handlers := slices.Clone(m.handlers)
	m.mu.Unlock()

	notify(handlers, raised)
	return sample
}

// Tick samples system memory and CPU, evaluates the rules against the mean
// of the most recent samples and prunes expired samples and alerts.
func (m *Monitor) Tick() {
	mem, cpu := m.sampler.Sample()
	now := m.now()

	m.mu.Lock()
	m.system = models.PerformanceSample{Timestamp: now, MemoryUsage: mem, CPUUsage: cpu}

	var raised []models.PerformanceAlert
	if n := len(m.samples); n > 0 {
		recent := m.samples[max(0, n-m.config.TickWindow):]
		raised = m.evaluateLocked(meanSample(recent, now))
	}

	cutoff := now.Add(-m.config.Retention)
	m.samples = slices.DeleteFunc(m.samples, func(s models.PerformanceSample) bool {
		return s.Timestamp.Before(cutoff)
	})
	m.alerts = slices.DeleteFunc(m.alerts, func(a models.PerformanceAlert) bool {
		return a.Timestamp.Before(cutoff)
	})
	handlers := slices.Clone(m.handlers)
	m.mu.Unlock()

	notify(handlers, raised)
}

// SystemSample returns the memory and CPU reading from the last tick.
func (m *Monitor) SystemSample() models.PerformanceSample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.system
}

// evaluateLocked raises an alert for each breached rule whose metric has no
// unresolved alert. Caller must hold m.mu.
func (m *Monitor) evaluateLocked(sample models.PerformanceSample) []models.PerformanceAlert {
	if !m.config.AlertsEnabled {
		return nil
	}

	var raised []models.PerformanceAlert
	for _, rule := range m.rules {
		value, ok := sample.Value(rule.Metric)
		if !ok || !rule.Operator.Breached(value, rule.Threshold) {
			continue
		}
		if m.hasUnresolvedLocked(rule.Metric) {
			continue
		}

		alert := models.PerformanceAlert{
			ID:        uuid.New().String(),
			Metric:    rule.Metric,
			Value:     value,
			Threshold: rule.Threshold,
			Severity:  rule.Severity,
			Message:   fmt.Sprintf("%s is %.2f (threshold %s %.2f)", rule.Metric, value, rule.Operator, rule.Threshold),
			Timestamp: sample.Timestamp,
		}
		m.alerts = append(m.alerts, alert)
		raised = append(raised, alert)

		logger.Warn("performance alert",
			"metric", alert.Metric, "value", alert.Value,
			"threshold", alert.Threshold, "severity", alert.Severity)
	}
	return raised
}

func (m *Monitor) hasUnresolvedLocked(metric models.Metric) bool {
	for _, a := range m.alerts {
		if a.Metric == metric && !a.Resolved {
			return true
		}
	}
	return false
}

func notify(handlers []AlertHandler, alerts []models.PerformanceAlert) {
	for _, a := range alerts {
		for _, h := range handlers {
			h(a)
		}
	}
}

// ActiveAlerts returns unresolved alerts, oldest first.
func (m *Monitor) ActiveAlerts() []models.PerformanceAlert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active := []models.PerformanceAlert{}
	for _, a := range m.alerts {
		if !a.Resolved {
			active = append(active, a)
		}
	}
	return active
}

// Alerts returns every retained alert, resolved or not.
func (m *Monitor) Alerts() []models.PerformanceAlert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.alerts)
}

// ResolveAlert marks the alert resolved. It reports whether the alert exists.
func (m *Monitor) ResolveAlert(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.alerts {
		if m.alerts[i].ID == id {
			m.alerts[i].Resolved = true
			return true
		}
	}
	return false
}

// Samples returns the samples recorded within window, oldest first.
func (m *Monitor) Samples(window time.Duration) []models.PerformanceSample {
	cutoff := m.now().Add(-window)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.PerformanceSample
	for _, s := range m.samples {
		if !s.Timestamp.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of retained samples.
func (m *Monitor) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.samples)
}

func meanSample(samples []models.PerformanceSample, at time.Time) models.PerformanceSample {
	avg := models.PerformanceSample{Timestamp: at}
	if len(samples) == 0 {
		return avg
	}
	n := float64(len(samples))
	for _, s := range samples {
		avg.ResponseTime += s.ResponseTime / n
		avg.Throughput += s.Throughput / n
		avg.ErrorRate += s.ErrorRate / n
		avg.ContextProcessingTime += s.ContextProcessingTime / n
		avg.TokenProcessingRate += s.TokenProcessingRate / n
		avg.MemoryUsage += s.MemoryUsage / n
		avg.CPUUsage += s.CPUUsage / n
	}
	return avg
}
