// Package benchmark runs synthetic load scenarios against the cost,
// monitoring and optimization services and exports the results.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/j-veylop/tokenwatch/internal/logger"
	"github.com/j-veylop/tokenwatch/internal/models"
	"github.com/j-veylop/tokenwatch/internal/pricing"
	"github.com/j-veylop/tokenwatch/internal/services/monitor"
)

// ErrSuiteRunning is returned when a suite is started while another runs.
var ErrSuiteRunning = errors.New("benchmark suite already running")

// CostCalculator prices a request.
type CostCalculator interface {
	CalculateRequestCost(inputTokens, outputTokens int, model string) (float64, error)
}

// MetricsRecorder receives one aggregate sample per scenario.
type MetricsRecorder interface {
	RecordMetrics(sample models.PerformanceSample) models.PerformanceSample
}

// Compressor compresses synthesized context for cost-optimization scenarios.
type Compressor interface {
	Compress(text, strategy string) (string, models.CompressionResult, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Config holds configuration for the benchmark runner.
type Config struct {
	Model               string
	CompressionStrategy string
	// SimulationSpeedup divides every simulated delay before sleeping.
	// Reported times stay in simulated milliseconds.
	SimulationSpeedup float64
	ErrorRate         float64 // 0..1
	Seed              uint64
	ScenarioPause     time.Duration

	// Summary thresholds.
	SlowResponseTime     float64 // ms
	ExpensiveRequestCost float64 // USD
	MinSuccessRate       float64
	HighThroughput       float64 // requests/s

	Pricing *pricing.Registry
	Sampler monitor.SystemSampler
	Sleep   Sleeper
	Clock   func() time.Time
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Model:                "gpt-4.1",
		CompressionStrategy:  "semantic",
		SimulationSpeedup:    1000,
		ErrorRate:            0.02,
		ScenarioPause:        2 * time.Second,
		SlowResponseTime:     15_000,
		ExpensiveRequestCost: 0.10,
		MinSuccessRate:       0.98,
		HighThroughput:       2,
	}
}

// Runner drives scenarios through the injected services.
type Runner struct {
	cost       CostCalculator
	metrics    MetricsRecorder
	compressor Compressor
	rng        *rand.Rand
	rngMu      sync.Mutex
	running    atomic.Bool
	config     Config
	now        func() time.Time
}

// New creates a runner. metrics and compressor may be nil.
func New(cost CostCalculator, metrics MetricsRecorder, compressor Compressor, config Config) *Runner {
	defaults := DefaultConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.CompressionStrategy == "" {
		config.CompressionStrategy = defaults.CompressionStrategy
	}
	if config.SimulationSpeedup <= 0 {
		config.SimulationSpeedup = 1
	}
	if config.SlowResponseTime <= 0 {
		config.SlowResponseTime = defaults.SlowResponseTime
	}
	if config.ExpensiveRequestCost <= 0 {
		config.ExpensiveRequestCost = defaults.ExpensiveRequestCost
	}
	if config.MinSuccessRate <= 0 {
		config.MinSuccessRate = defaults.MinSuccessRate
	}
	if config.HighThroughput <= 0 {
		config.HighThroughput = defaults.HighThroughput
	}
	if config.Pricing == nil {
		config.Pricing = pricing.Default()
	}
	if config.Sampler == nil {
		config.Sampler = monitor.NewRuntimeSampler()
	}
	if config.Sleep == nil {
		config.Sleep = sleepCtx
	}

	now := config.Clock
	if now == nil {
		now = time.Now
	}

	return &Runner{
		cost:       cost,
		metrics:    metrics,
		compressor: compressor,
		rng:        rand.New(rand.NewPCG(config.Seed, config.Seed^0x5851f42d4c957f2d)),
		config:     config,
		now:        now,
	}
}

// IsRunning reports whether a suite is in progress.
func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// RunBenchmarkSuite runs scenarios sequentially with a pause between them.
// An empty name or scenario list uses the defaults.
func (r *Runner) RunBenchmarkSuite(ctx context.Context, name string, scenarios []models.BenchmarkScenario) (*models.BenchmarkSuite, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrSuiteRunning
	}
	defer r.running.Store(false)

	if name == "" {
		name = DefaultSuiteName
	}
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios()
	}

	logger.Info("benchmark suite started", "suite", name, "scenarios", len(scenarios))
	start := r.now()

	results := make([]models.BenchmarkResult, 0, len(scenarios))
	for i, s := range scenarios {
		result, err := r.RunScenario(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("benchmark suite %q: %w", name, err)
		}
		results = append(results, result)

		if i < len(scenarios)-1 {
			if err := r.config.Sleep(ctx, r.scaled(float64(r.config.ScenarioPause.Milliseconds()))); err != nil {
				return nil, err
			}
		}
	}

	suite := &models.BenchmarkSuite{
		Name:      name,
		Scenarios: slices.Clone(scenarios),
		Results:   results,
		Summary:   r.Summarize(results),
		StartedAt: start,
		Duration:  r.now().Sub(start),
	}

	logger.Info("benchmark suite completed",
		"suite", name,
		"requests", suite.Summary.TotalRequests,
		"successRate", suite.Summary.OverallSuccessRate,
		"totalCost", suite.Summary.TotalCost,
		"avgResponseTime", suite.Summary.AverageResponseTime)
	return suite, nil
}

type outcome struct {
	responseTime float64 // ms
	contextTime  float64 // ms
	cost         float64
	tokens       int
	failed       bool
}

type draw struct {
	jitter float64 // ms
	fail   bool
}

// RunScenario runs the scenario's iterations in chunks of at most
// Concurrency concurrent requests and aggregates the outcome. Durations are
// simulated: each chunk takes as long as its slowest request.
func (r *Runner) RunScenario(ctx context.Context, s models.BenchmarkScenario) (models.BenchmarkResult, error) {
	s = normalizeScenario(s)
	logger.Debug("benchmark scenario started",
		"scenario", s.Name, "iterations", s.Iterations, "concurrency", s.Concurrency)

	inputTokens := s.ContextSize
	var compression *models.CompressionResult
	if s.Category == models.CategoryCostOptimization && r.compressor != nil {
		compressed, res, err := r.compressor.Compress(synthesizeContext(s.ContextSize), r.config.CompressionStrategy)
		if err != nil {
			logger.Warn("benchmark compression skipped", "scenario", s.Name, "error", err)
		} else {
			inputTokens = min(pricing.EstimateTokens(compressed), s.ContextSize)
			compression = &res
		}
	}

	outcomes := make([]outcome, 0, s.Iterations)
	var elapsed float64
	peak := 0
	for start := 0; start < s.Iterations; start += s.Concurrency {
		n := min(s.Concurrency, s.Iterations-start)
		peak = max(peak, n)
		draws := r.drawN(n)

		chunk := make([]outcome, n)
		g, gctx := errgroup.WithContext(ctx)
		for i := range chunk {
			g.Go(func() error {
				o, err := r.simulateRequest(gctx, s, inputTokens, draws[i])
				chunk[i] = o
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return models.BenchmarkResult{}, fmt.Errorf("scenario %q: %w", s.Name, err)
		}

		slowest := 0.0
		for _, o := range chunk {
			slowest = max(slowest, o.responseTime)
		}
		elapsed += slowest
		outcomes = append(outcomes, chunk...)
	}

	result := r.aggregate(s, outcomes, elapsed)
	result.Detail = r.detail(s, outcomes, result, peak, inputTokens, compression)

	if r.metrics != nil {
		r.metrics.RecordMetrics(models.PerformanceSample{
			ResponseTime:          result.AverageResponseTime,
			Throughput:            result.Throughput,
			ErrorRate:             1 - result.SuccessRate,
			ContextProcessingTime: result.ContextProcessingTime,
			TokenProcessingRate:   result.TokenProcessingRate,
			MemoryUsage:           result.MemoryUsage,
		})
	}

	logger.Info("benchmark scenario completed",
		"scenario", s.Name,
		"avgResponseTime", result.AverageResponseTime,
		"successRate", result.SuccessRate,
		"costPerRequest", result.CostPerRequest)
	return result, nil
}

func (r *Runner) drawN(n int) []draw {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()

	draws := make([]draw, n)
	for i := range draws {
		draws[i].jitter = r.rng.Float64() * 1000
		draws[i].fail = r.config.ErrorRate > 0 && r.rng.Float64() < r.config.ErrorRate
	}
	return draws
}

// simulateRequest models context ingestion at 100k tokens/s (at least
// 100ms), generation at 50 tokens/s (at least 50ms) and 0-1s of jitter.
func (r *Runner) simulateRequest(ctx context.Context, s models.BenchmarkScenario, inputTokens int, d draw) (outcome, error) {
	contextTime := max(100, float64(inputTokens)/100_000*1000)
	generationTime := max(50, float64(s.OutputLength)/50*1000)
	responseTime := contextTime + generationTime + d.jitter

	if err := r.config.Sleep(ctx, r.scaled(responseTime)); err != nil {
		return outcome{}, err
	}
	if d.fail {
		return outcome{responseTime: responseTime, failed: true}, nil
	}

	cost, err := r.cost.CalculateRequestCost(inputTokens, s.OutputLength, r.config.Model)
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		responseTime: responseTime,
		contextTime:  contextTime,
		cost:         cost,
		tokens:       inputTokens + s.OutputLength,
	}, nil
}

func (r *Runner) aggregate(s models.BenchmarkScenario, outcomes []outcome, elapsed float64) models.BenchmarkResult {
	result := models.BenchmarkResult{
		Scenario:  s.Name,
		Category:  s.Category,
		Duration:  elapsed,
		Requests:  len(outcomes),
		Timestamp: r.now(),
	}
	result.MemoryUsage, _ = r.config.Sampler.Sample()

	var responseTimes []float64
	var contextTime float64
	tokens := 0
	for _, o := range outcomes {
		if o.failed {
			result.ErrorCount++
			continue
		}
		responseTimes = append(responseTimes, o.responseTime)
		result.TotalCost += o.cost
		contextTime += o.contextTime
		tokens += o.tokens
	}

	successes := len(responseTimes)
	if len(outcomes) > 0 {
		result.SuccessRate = float64(successes) / float64(len(outcomes))
	}
	if successes > 0 {
		slices.Sort(responseTimes)
		var sum float64
		for _, rt := range responseTimes {
			sum += rt
		}
		result.AverageResponseTime = sum / float64(successes)
		result.P95ResponseTime = monitor.Percentile(responseTimes, 95)
		result.P99ResponseTime = monitor.Percentile(responseTimes, 99)
		result.CostPerRequest = result.TotalCost / float64(successes)
		result.ContextProcessingTime = contextTime / float64(successes)
	}
	if seconds := elapsed / 1000; seconds > 0 {
		result.TokenProcessingRate = float64(tokens) / seconds
		result.Throughput = float64(successes) / seconds
	}
	return result
}

func (r *Runner) detail(s models.BenchmarkScenario, outcomes []outcome, result models.BenchmarkResult, peak, inputTokens int, compression *models.CompressionResult) models.ScenarioDetail {
	switch s.Category {
	case models.CategoryThroughput:
		return models.ThroughputDetail{PeakInFlight: peak, RequestsPerSecond: result.Throughput}

	case models.CategoryCapacity:
		d := models.CapacityDetail{TargetModel: r.config.Model}
		if tier, err := r.config.Pricing.Lookup(r.config.Model); err == nil && tier.ContextLimit > 0 {
			d.ContextLimit = tier.ContextLimit
			d.ContextUtilization = float64(s.ContextSize+s.OutputLength) / float64(tier.ContextLimit)
		}
		return d

	case models.CategoryCostOptimization:
		d := models.CostOptimizationDetail{CompressionRatio: 1}
		if compression != nil {
			successes := result.Requests - result.ErrorCount
			d.Technique = compression.Technique
			d.CompressionRatio = compression.CompressionRatio
			d.TokensSaved = (s.ContextSize - inputTokens) * successes
			d.CostSaved = float64(d.TokensSaved) / 1_000_000 * pricing.ReferenceInputPerMTok
		}
		return d

	case models.CategoryResilience:
		d := models.ResilienceDetail{Failures: result.ErrorCount}
		streak := 0
		for _, o := range outcomes {
			if o.failed {
				streak++
				d.LongestFailureStreak = max(d.LongestFailureStreak, streak)
			} else {
				streak = 0
			}
		}
		return d

	default:
		d := models.LatencyDetail{}
		for _, o := range outcomes {
			if o.failed {
				continue
			}
			if d.FastestResponseTime == 0 || o.responseTime < d.FastestResponseTime {
				d.FastestResponseTime = o.responseTime
			}
			d.SlowestResponseTime = max(d.SlowestResponseTime, o.responseTime)
		}
		return d
	}
}

// scaled converts simulated milliseconds into a real sleep duration.
func (r *Runner) scaled(ms float64) time.Duration {
	return time.Duration(ms / r.config.SimulationSpeedup * float64(time.Millisecond))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
