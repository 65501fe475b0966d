// Package services wires the cost, monitoring, optimization and benchmark
// services into the request pipeline.
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/j-veylop/tokenwatch/internal/config"
	"github.com/j-veylop/tokenwatch/internal/logger"
	"github.com/j-veylop/tokenwatch/internal/models"
	"github.com/j-veylop/tokenwatch/internal/pricing"
	"github.com/j-veylop/tokenwatch/internal/services/benchmark"
	"github.com/j-veylop/tokenwatch/internal/services/cost"
	"github.com/j-veylop/tokenwatch/internal/services/executor"
	"github.com/j-veylop/tokenwatch/internal/services/monitor"
	"github.com/j-veylop/tokenwatch/internal/services/notify"
	"github.com/j-veylop/tokenwatch/internal/services/optimizer"
	"github.com/j-veylop/tokenwatch/internal/services/schedule"
)

// DefaultModel serves requests that do not name a model.
const DefaultModel = "gpt-4.1"

type (
	// AlertEvent is emitted when the monitor raises a new alert.
	AlertEvent struct {
		Alert models.PerformanceAlert
	}

	// BudgetEvent is emitted when a budget check finds spend approaching or over a limit.
	BudgetEvent struct {
		Forecast   models.BudgetForecast
		SpentToday float64
		Messages   []string
	}

	// BenchmarkCompletedEvent is emitted after a scheduled or requested suite finishes.
	BenchmarkCompletedEvent struct {
		Suite *models.BenchmarkSuite
	}

	// ConfigAppliedEvent is emitted after a configuration reload takes effect.
	ConfigAppliedEvent struct {
		Config *config.Config
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Service string
		Error   error
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (AlertEvent) isServiceEvent()              {}
func (BudgetEvent) isServiceEvent()             {}
func (BenchmarkCompletedEvent) isServiceEvent() {}
func (ConfigAppliedEvent) isServiceEvent()      {}
func (ErrorEvent) isServiceEvent()              {}

// ExecutionError wraps a failure of the request executor.
type ExecutionError struct {
	Model string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.Model, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// RequestOptions adjusts a single ProcessRequest call.
type RequestOptions struct {
	Model                   string
	Label                   string // ledger context label
	SkipOptimization        bool
	SkipCostTracking        bool
	SkipPerformanceTracking bool
}

// RequestMetrics describes how a request was served.
type RequestMetrics struct {
	Model               string
	Cost                float64
	ResponseTime        time.Duration
	InputTokens         int
	OutputTokens        int
	TokensUsed          int
	TokensSaved         int
	OptimizationApplied bool
	CompressionUsed     bool
	CacheHit            bool
}

// RequestResult is a response plus its metrics envelope.
type RequestResult struct {
	Response models.Response
	Metrics  RequestMetrics
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithNotifier replaces the notifier built from the configuration.
func WithNotifier(n notify.Notifier) ManagerOption {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithClock sets the time source shared by every service.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithSampler sets the memory/CPU sampler.
func WithSampler(s monitor.SystemSampler) ManagerOption {
	return func(m *Manager) {
		if s != nil {
			m.sampler = s
		}
	}
}

// WithBenchmarkSleeper sets how benchmark delays are waited out.
func WithBenchmarkSleeper(s benchmark.Sleeper) ManagerOption {
	return func(m *Manager) {
		m.sleeper = s
	}
}

// WithPricing replaces the default pricing registry.
func WithPricing(r *pricing.Registry) ManagerOption {
	return func(m *Manager) {
		if r != nil {
			m.pricing = r
		}
	}
}

// WithBudgetInterval changes how often the budget is checked.
func WithBudgetInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.budgetInterval = d
		}
	}
}

// Manager owns the services and runs the per-request pipeline.
type Manager struct {
	mu             sync.RWMutex
	cfg            *config.Config
	pricing        *pricing.Registry
	cost           *cost.Analyzer
	monitor        *monitor.Monitor
	optimizer      *optimizer.Engine
	bench          *benchmark.Runner
	executor       executor.Executor
	notifier       notify.Notifier
	limiter        *rate.Limiter
	sampler        monitor.SystemSampler
	sleeper        benchmark.Sleeper
	budgetTask     *schedule.Task
	benchTask      *schedule.Task
	budgetInterval time.Duration
	subscribers    []chan ServiceEvent
	ctx            context.Context
	cancel         context.CancelFunc
	now            func() time.Time
	initialized    bool
	closed         bool
}

// NewManager validates cfg and builds every service. A nil executor uses
// the simulator.
func NewManager(cfg *config.Config, exec executor.Executor, opts ...ManagerOption) (*Manager, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:            cfg,
		pricing:        pricing.Default(),
		executor:       exec,
		notifier:       notify.New(cfg.Notifications.DesktopEnabled),
		budgetInterval: time.Hour,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.sampler == nil {
		m.sampler = monitor.NewRuntimeSampler()
	}
	if m.executor == nil {
		m.executor = executor.NewSimulator(executor.SimulatorConfig{Seed: cfg.Benchmarking.Seed})
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.cost = cost.New(m.pricing, cost.Config{
		BudgetLimit:    cfg.CostAnalysis.BudgetLimit,
		AlertThreshold: cfg.CostAnalysis.AlertThreshold,
		Clock:          m.now,
	})

	m.monitor = monitor.New(monitor.Config{
		Rules:         cfg.Monitoring.Thresholds.AlertRules(),
		AlertsEnabled: cfg.Monitoring.AlertsEnabled,
		Retention:     time.Duration(cfg.Monitoring.RetentionHours) * time.Hour,
		Sampler:       m.sampler,
		Clock:         m.now,
	})
	m.monitor.OnAlert(m.handleAlert)

	opt := cfg.Optimization
	m.optimizer = optimizer.New(m.pricing, optimizer.Config{
		CachingEnabled:       opt.CachingEnabled,
		CompressionEnabled:   opt.CompressionEnabled,
		Strategy:             opt.CompressionStrategy,
		CompressionThreshold: opt.CompressionThreshold,
		QualityThreshold:     opt.QualityThreshold,
		MaxCacheSize:         opt.MaxCacheSize,
		CacheTTL:             opt.CacheTTL,
		BatchSize:            opt.BatchSize,
		BatchDelay:           opt.BatchDelay,
		RoutingQualityFloor:  opt.RoutingQualityFloor,
		Clock:                m.now,
	})

	bench := benchmark.DefaultConfig()
	bench.CompressionStrategy = opt.CompressionStrategy
	bench.SimulationSpeedup = cfg.Benchmarking.SimulationSpeedup
	bench.ErrorRate = cfg.Benchmarking.ErrorRate
	bench.Seed = cfg.Benchmarking.Seed
	bench.SlowResponseTime = cfg.Monitoring.Thresholds.ResponseTime.Warning
	bench.MinSuccessRate = 1 - cfg.Monitoring.Thresholds.ErrorRate.Warning
	bench.Pricing = m.pricing
	bench.Sampler = m.sampler
	bench.Sleep = m.sleeper
	bench.Clock = m.now
	m.bench = benchmark.New(m.cost, m.monitor, m.optimizer, bench)

	if rpm := cfg.API.RequestsPerMinute; rpm > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60), max(1, rpm/60))
	}

	return m, nil
}

// Initialize starts monitoring and the budget and benchmark schedules.
// Calling it again, or after Shutdown, does nothing.
func (m *Manager) Initialize() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized || m.closed {
		return
	}
	cfg := m.cfg

	if cfg.Monitoring.Enabled {
		m.monitor.Start(cfg.Monitoring.Interval)
	}
	m.budgetTask = schedule.Every(m.budgetInterval, func() { m.CheckBudget() })
	if cfg.Benchmarking.AutoRunEnabled && cfg.Benchmarking.ScheduleIntervalHours > 0 {
		interval := time.Duration(cfg.Benchmarking.ScheduleIntervalHours) * time.Hour
		m.benchTask = schedule.Every(interval, m.runScheduledBenchmark)
	}
	m.initialized = true

	logger.Info("performance validation system initialized",
		"environment", cfg.Environment,
		"monitoring", cfg.Monitoring.Enabled,
		"autoBenchmark", cfg.Benchmarking.AutoRunEnabled)
}

// ProcessRequest optimizes, executes, measures and prices one request.
// A cache hit is served without calling the executor or logging cost.
// When the executor fails a 100% error-rate sample is recorded and an
// *ExecutionError is returned.
func (m *Manager) ProcessRequest(ctx context.Context, contextText, prompt string, opts RequestOptions) (*RequestResult, error) {
	cfg := m.Config()
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	trackPerformance := cfg.Monitoring.Enabled && !opts.SkipPerformanceTracking

	start := m.now()
	sendContext, sendPrompt := contextText, prompt
	var opt models.OptimizedRequest
	if !opts.SkipOptimization {
		opt = m.optimizer.OptimizeRequest(contextText, prompt, optimizer.Options{})
		if !opt.CacheHit {
			sendContext, sendPrompt = opt.OptimizedContext, opt.OptimizedPrompt
		}
	}

	var resp models.Response
	if opt.CacheHit {
		resp = *opt.Cached
	} else {
		if m.limiter != nil {
			if err := m.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		var err error
		resp, err = m.executor.Execute(ctx, sendContext, sendPrompt, model)
		if err != nil {
			elapsed := m.now().Sub(start)
			if trackPerformance {
				m.monitor.RecordMetrics(models.PerformanceSample{
					ResponseTime: float64(elapsed.Milliseconds()),
					Throughput:   0,
					ErrorRate:    1,
				})
			}
			logger.Error("request execution failed", "model", model, "error", err)
			return nil, &ExecutionError{Model: model, Err: err}
		}
	}

	elapsed := m.now().Sub(start)
	metrics := RequestMetrics{
		Model:               model,
		ResponseTime:        elapsed,
		OptimizationApplied: !opts.SkipOptimization,
		CompressionUsed:     opt.CompressionUsed,
		CacheHit:            opt.CacheHit,
		TokensSaved:         opt.TokensSaved,
	}

	if !opt.CacheHit {
		if u := resp.TokenUsage; u != nil {
			metrics.InputTokens, metrics.OutputTokens = u.InputTokens, u.OutputTokens
		} else {
			metrics.InputTokens = pricing.EstimateTokens(sendContext) + pricing.EstimateTokens(sendPrompt)
			metrics.OutputTokens = pricing.EstimateTokens(resp.Content)
		}
		metrics.TokensUsed = metrics.InputTokens + metrics.OutputTokens

		if cfg.CostAnalysis.TrackingEnabled && !opts.SkipCostTracking {
			rec, err := m.cost.LogUsage(models.TokenUsageRecord{
				Timestamp:    m.now(),
				Model:        model,
				Context:      opts.Label,
				InputTokens:  metrics.InputTokens,
				OutputTokens: metrics.OutputTokens,
			})
			if err != nil {
				logger.Warn("cost tracking skipped", "model", model, "error", err)
				m.broadcast(ErrorEvent{Service: "cost", Error: err})
			}
			metrics.Cost = rec.Cost
		} else if c, err := m.cost.CalculateRequestCost(metrics.InputTokens, metrics.OutputTokens, model); err == nil {
			metrics.Cost = c
		}
	}

	if trackPerformance {
		// A hit serves the cached tokens, so rate it on those.
		served := metrics.TokensUsed
		if opt.CacheHit {
			served = opt.TokensSaved
		}
		seconds := max(elapsed, time.Millisecond).Seconds()
		m.monitor.RecordMetrics(models.PerformanceSample{
			ResponseTime:        float64(elapsed.Milliseconds()),
			Throughput:          1 / seconds,
			ErrorRate:           0,
			TokenProcessingRate: float64(served) / seconds,
		})
	}

	if !opts.SkipOptimization && !opt.CacheHit && cfg.Optimization.CachingEnabled {
		m.optimizer.CacheResponse(opt.CacheKey, resp, optimizer.ContentHash(resp.Content), metrics.TokensUsed, metrics.Cost)
	}

	return &RequestResult{Response: resp, Metrics: metrics}, nil
}

// CheckBudget forecasts monthly spend and checks today's spend against the
// daily budget. Warnings are logged, sent to the notifier and broadcast.
func (m *Manager) CheckBudget() BudgetEvent {
	cfg := m.Config()
	ev := BudgetEvent{Forecast: m.cost.ForecastMonthlyBudget(cfg.CostAnalysis.BudgetLimit)}

	f := ev.Forecast
	switch f.BudgetStatus {
	case models.BudgetOver:
		ev.Messages = append(ev.Messages, fmt.Sprintf(
			"Projected monthly spend $%.2f exceeds the $%.2f budget", f.ProjectedCost, f.BudgetLimit))
	case models.BudgetApproaching:
		ev.Messages = append(ev.Messages, fmt.Sprintf(
			"Projected monthly spend $%.2f is approaching the $%.2f budget", f.ProjectedCost, f.BudgetLimit))
	}

	if daily := cfg.CostAnalysis.DailyBudget; daily > 0 {
		now := m.now()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		ev.SpentToday = m.cost.SpendSince(today)

		switch {
		case ev.SpentToday >= daily:
			ev.Messages = append(ev.Messages, fmt.Sprintf(
				"Spent $%.2f today, over the $%.2f daily budget", ev.SpentToday, daily))
		case ev.SpentToday >= daily*cfg.CostAnalysis.AlertThreshold/100:
			ev.Messages = append(ev.Messages, fmt.Sprintf(
				"Spent $%.2f today, approaching the $%.2f daily budget", ev.SpentToday, daily))
		}
	}

	for _, msg := range ev.Messages {
		logger.Warn("budget warning", "message", msg)
		if err := m.notifier.Notify("Budget warning", msg); err != nil {
			logger.Debug("budget notification failed", "error", err)
		}
	}
	if len(ev.Messages) > 0 {
		m.broadcast(ev)
	}
	return ev
}

func (m *Manager) runScheduledBenchmark() {
	if _, err := m.RunBenchmark(m.ctx); err != nil && !errors.Is(err, benchmark.ErrSuiteRunning) {
		logger.Error("scheduled benchmark failed", "error", err)
	}
}

// RunBenchmark runs the configured scenarios, or the defaults when none are
// configured, and broadcasts the finished suite.
func (m *Manager) RunBenchmark(ctx context.Context) (*models.BenchmarkSuite, error) {
	cfg := m.Config()
	suite, err := m.bench.RunBenchmarkSuite(ctx, "", cfg.Benchmarking.CustomScenarios)
	if err != nil {
		if !errors.Is(err, benchmark.ErrSuiteRunning) {
			m.broadcast(ErrorEvent{Service: "benchmark", Error: err})
		}
		return nil, err
	}
	m.broadcast(BenchmarkCompletedEvent{Suite: suite})
	return suite, nil
}

func (m *Manager) handleAlert(a models.PerformanceAlert) {
	title := fmt.Sprintf("%s alert: %s", a.Severity, a.Metric)
	if err := m.notifier.Notify(title, a.Message); err != nil {
		logger.Debug("alert notification failed", "error", err)
	}
	m.broadcast(AlertEvent{Alert: a})
}

// GetSystemStatus returns a snapshot of every service.
func (m *Manager) GetSystemStatus() models.SystemStatus {
	cfg := m.Config()

	m.mu.RLock()
	initialized := m.initialized
	m.mu.RUnlock()

	return models.SystemStatus{
		Timestamp:       m.now(),
		Initialized:     initialized,
		Monitoring:      m.monitor.IsRunning(),
		Cost:            m.cost.CostMetrics(models.CostWindowDay),
		Budget:          m.cost.ForecastMonthlyBudget(cfg.CostAnalysis.BudgetLimit),
		Performance:     m.monitor.PerformanceStats(models.StatsWindowHour),
		Trends:          m.monitor.PerformanceTrends(1),
		Optimization:    m.optimizer.OptimizationMetrics(),
		ActiveAlerts:    m.monitor.ActiveAlerts(),
		Recommendations: m.recommendations(),
	}
}

// recommendations merges cost advice with the optimizer's strategies.
func (m *Manager) recommendations() []string {
	recs := m.cost.OptimizationRecommendations()
	for _, s := range m.optimizer.OptimizationRecommendations().Strategies {
		recs = append(recs, fmt.Sprintf("[%s] %s: %s (~%.0f%% savings)", s.Priority, s.Name, s.Description, s.ExpectedSavings))
	}
	if recs == nil {
		recs = []string{}
	}
	return recs
}

// RunValidation runs a benchmark suite and bundles it with the resulting
// system status and the merged recommendations.
func (m *Manager) RunValidation(ctx context.Context) (*models.ValidationReport, error) {
	suite, err := m.RunBenchmark(ctx)
	if err != nil {
		return nil, fmt.Errorf("validation benchmark: %w", err)
	}

	status := m.GetSystemStatus()
	recs := slices.Clone(suite.Summary.Recommendations)
	for _, r := range status.Recommendations {
		if !slices.Contains(recs, r) {
			recs = append(recs, r)
		}
	}

	return &models.ValidationReport{
		Benchmark:       suite,
		Status:          status,
		Recommendations: recs,
	}, nil
}

// ApplyConfig validates cfg and swaps in its alert rules, budget and
// budget alert threshold.
// Other settings take effect on the next start.
func (m *Manager) ApplyConfig(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.monitor.SetRules(cfg.Monitoring.Thresholds.AlertRules())
	m.cost.SetBudgetLimit(cfg.CostAnalysis.BudgetLimit)
	m.cost.SetAlertThreshold(cfg.CostAnalysis.AlertThreshold)

	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()

	logger.Info("configuration applied", "environment", cfg.Environment)
	m.broadcast(ConfigAppliedEvent{Config: cfg})
	return nil
}

// ResolveAlert marks a monitor alert resolved.
func (m *Manager) ResolveAlert(id string) bool {
	return m.monitor.ResolveAlert(id)
}

// Config returns the active configuration.
func (m *Manager) Config() *config.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Cost returns the cost analyzer.
func (m *Manager) Cost() *cost.Analyzer {
	return m.cost
}

// Monitor returns the performance monitor.
func (m *Manager) Monitor() *monitor.Monitor {
	return m.monitor
}

// Optimizer returns the optimization engine.
func (m *Manager) Optimizer() *optimizer.Engine {
	return m.optimizer
}

// Benchmark returns the benchmark runner.
func (m *Manager) Benchmark() *benchmark.Runner {
	return m.bench
}

// broadcast sends an event to every subscriber without blocking.
func (m *Manager) broadcast(event ServiceEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
func (m *Manager) Subscribe() <-chan ServiceEvent {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		close(ch)
		return ch
	}
	m.subscribers = append(m.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (m *Manager) Unsubscribe(ch <-chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = slices.Delete(m.subscribers, i, i+1)
			close(sub)
			break
		}
	}
}

// Shutdown stops every background task and clears the response cache.
// In-flight requests run to completion. Calling it again does nothing.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	budgetTask, benchTask := m.budgetTask, m.benchTask
	m.budgetTask, m.benchTask = nil, nil
	m.mu.Unlock()

	m.cancel()
	m.monitor.Stop()
	budgetTask.Stop()
	benchTask.Stop()
	m.optimizer.ClearCache()

	m.mu.Lock()
	for _, sub := range m.subscribers {
		close(sub)
	}
	m.subscribers = nil
	m.mu.Unlock()

	logger.Info("performance validation system shut down")
}
