package benchmark

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/j-veylop/tokenwatch/internal/models"
	"github.com/j-veylop/tokenwatch/internal/pricing"
	"github.com/j-veylop/tokenwatch/internal/services/cost"
	"github.com/j-veylop/tokenwatch/internal/services/monitor"
	"github.com/j-veylop/tokenwatch/internal/services/optimizer"
)

var fixedNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

type recorder struct {
	samples []models.PerformanceSample
	mu      sync.Mutex
}

func (r *recorder) RecordMetrics(s models.PerformanceSample) models.PerformanceSample {
	r.mu.Lock()
	r.samples = append(r.samples, s)
	r.mu.Unlock()
	return s
}

func noSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func newTestRunner(t *testing.T, mutate func(*Config)) (*Runner, *recorder) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ErrorRate = 0
	cfg.Seed = 7
	cfg.Sleep = noSleep
	cfg.Sampler = monitor.StaticSampler{MemoryMB: 128}
	cfg.Clock = func() time.Time { return fixedNow }
	if mutate != nil {
		mutate(&cfg)
	}

	rec := &recorder{}
	analyzer := cost.New(nil, cost.DefaultConfig())
	engine := optimizer.New(nil, optimizer.DefaultConfig())
	return New(analyzer, rec, engine, cfg), rec
}

func TestRunScenarioLatency(t *testing.T) {
	r, rec := newTestRunner(t, nil)
	s := models.BenchmarkScenario{Name: "small", ContextSize: 10_000, OutputLength: 500, Concurrency: 1, Iterations: 10}

	res, err := r.RunScenario(context.Background(), s)
	if err != nil {
		t.Fatalf("RunScenario error: %v", err)
	}

	if res.Requests != 10 || res.ErrorCount != 0 || res.SuccessRate != 1 {
		t.Errorf("requests/errors/success = %d/%d/%v", res.Requests, res.ErrorCount, res.SuccessRate)
	}
	if res.Category != models.CategoryLatency {
		t.Errorf("Category = %s, want latency", res.Category)
	}
	// 10k input tokens at $2/M plus 500 output tokens at $8/M
	if diff := res.CostPerRequest - 0.024; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("CostPerRequest = %v, want 0.024", res.CostPerRequest)
	}
	if res.AverageResponseTime < 10_100 || res.AverageResponseTime >= 11_100 {
		t.Errorf("AverageResponseTime = %v, want in [10100, 11100)", res.AverageResponseTime)
	}
	if res.ContextProcessingTime != 100 {
		t.Errorf("ContextProcessingTime = %v, want 100", res.ContextProcessingTime)
	}
	if res.P95ResponseTime < res.AverageResponseTime*0.9 || res.P99ResponseTime < res.P95ResponseTime {
		t.Errorf("percentiles p95=%v p99=%v", res.P95ResponseTime, res.P99ResponseTime)
	}
	if res.MemoryUsage != 128 {
		t.Errorf("MemoryUsage = %v, want 128", res.MemoryUsage)
	}

	// Sequential requests: the simulated duration is the sum of response times.
	wantDuration := res.AverageResponseTime * 10
	if diff := res.Duration - wantDuration; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("Duration = %v, want %v", res.Duration, wantDuration)
	}
	if got, want := res.Throughput, 10/(res.Duration/1000); got != want {
		t.Errorf("Throughput = %v, want %v", got, want)
	}

	detail, ok := res.Detail.(models.LatencyDetail)
	if !ok {
		t.Fatalf("Detail = %T, want LatencyDetail", res.Detail)
	}
	if detail.FastestResponseTime < 10_100 || detail.SlowestResponseTime < detail.FastestResponseTime {
		t.Errorf("detail = %+v", detail)
	}

	if len(rec.samples) != 1 || rec.samples[0].ErrorRate != 0 {
		t.Errorf("recorded samples = %+v", rec.samples)
	}
}

func TestRunScenarioAllFailures(t *testing.T) {
	r, rec := newTestRunner(t, func(c *Config) { c.ErrorRate = 1 })
	s := models.BenchmarkScenario{Name: "outage", ContextSize: 1000, OutputLength: 100, Concurrency: 4, Iterations: 9, Category: models.CategoryResilience}

	res, err := r.RunScenario(context.Background(), s)
	if err != nil {
		t.Fatalf("RunScenario error: %v", err)
	}
	if res.ErrorCount != 9 || res.SuccessRate != 0 || res.TotalCost != 0 || res.Throughput != 0 {
		t.Errorf("result = %+v", res)
	}

	detail, ok := res.Detail.(models.ResilienceDetail)
	if !ok {
		t.Fatalf("Detail = %T, want ResilienceDetail", res.Detail)
	}
	if detail.Failures != 9 || detail.LongestFailureStreak != 9 {
		t.Errorf("detail = %+v", detail)
	}
	if rec.samples[0].ErrorRate != 1 {
		t.Errorf("recorded error rate = %v, want 1", rec.samples[0].ErrorRate)
	}
}

func TestRunScenarioDeterministic(t *testing.T) {
	s := models.BenchmarkScenario{Name: "flaky", ContextSize: 5000, OutputLength: 200, Concurrency: 3, Iterations: 30}

	run := func() models.BenchmarkResult {
		r, _ := newTestRunner(t, func(c *Config) { c.ErrorRate = 0.3 })
		res, err := r.RunScenario(context.Background(), s)
		if err != nil {
			t.Fatalf("RunScenario error: %v", err)
		}
		return res
	}

	a, b := run(), run()
	if a.AverageResponseTime != b.AverageResponseTime || a.ErrorCount != b.ErrorCount || a.Duration != b.Duration {
		t.Errorf("same seed gave different results: %+v vs %+v", a, b)
	}
}

func TestRunScenarioThroughput(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	s := models.BenchmarkScenario{Name: "burst", ContextSize: 50_000, OutputLength: 1000, Concurrency: 5, Iterations: 20}

	res, err := r.RunScenario(context.Background(), s)
	if err != nil {
		t.Fatalf("RunScenario error: %v", err)
	}

	detail, ok := res.Detail.(models.ThroughputDetail)
	if !ok {
		t.Fatalf("Detail = %T, want ThroughputDetail", res.Detail)
	}
	if detail.PeakInFlight != 5 || detail.RequestsPerSecond != res.Throughput {
		t.Errorf("detail = %+v", detail)
	}
	// Four chunks, each bounded by its slowest request.
	if res.Duration > 4*(500+20_000+1000) || res.Duration < 4*(500+20_000) {
		t.Errorf("Duration = %v out of range", res.Duration)
	}
}

func TestRunScenarioCapacity(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	s := models.BenchmarkScenario{Name: "max", ContextSize: 900_000, OutputLength: 32_000, Concurrency: 1, Iterations: 2}

	res, err := r.RunScenario(context.Background(), s)
	if err != nil {
		t.Fatalf("RunScenario error: %v", err)
	}

	detail, ok := res.Detail.(models.CapacityDetail)
	if !ok {
		t.Fatalf("Detail = %T, want CapacityDetail", res.Detail)
	}
	if detail.TargetModel != "gpt-4.1" || detail.ContextLimit != 1_047_576 {
		t.Errorf("detail = %+v", detail)
	}
	if want := 932_000.0 / 1_047_576; detail.ContextUtilization != want {
		t.Errorf("ContextUtilization = %v, want %v", detail.ContextUtilization, want)
	}
}

func TestRunScenarioCostOptimization(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	s := models.BenchmarkScenario{Name: "compressed", ContextSize: 20_000, OutputLength: 100, Concurrency: 2, Iterations: 4, Category: models.CategoryCostOptimization}

	res, err := r.RunScenario(context.Background(), s)
	if err != nil {
		t.Fatalf("RunScenario error: %v", err)
	}

	detail, ok := res.Detail.(models.CostOptimizationDetail)
	if !ok {
		t.Fatalf("Detail = %T, want CostOptimizationDetail", res.Detail)
	}
	if detail.Technique != optimizer.StrategySemantic {
		t.Errorf("Technique = %q", detail.Technique)
	}
	if detail.CompressionRatio >= 0.5 || detail.TokensSaved <= 0 || detail.CostSaved <= 0 {
		t.Errorf("detail = %+v", detail)
	}

	full := pricing.DefaultTiers[0].Cost(20_000, 100)
	if res.CostPerRequest >= full {
		t.Errorf("CostPerRequest = %v, want below uncompressed %v", res.CostPerRequest, full)
	}
}

func TestRunScenarioCostOptimizationWithoutCompressor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ErrorRate = 0
	cfg.Sleep = noSleep
	cfg.Sampler = monitor.StaticSampler{}
	r := New(cost.New(nil, cost.DefaultConfig()), nil, nil, cfg)

	res, err := r.RunScenario(context.Background(), models.BenchmarkScenario{Name: "plain", ContextSize: 1000, Iterations: 1, Category: models.CategoryCostOptimization})
	if err != nil {
		t.Fatalf("RunScenario error: %v", err)
	}
	detail := res.Detail.(models.CostOptimizationDetail)
	if detail.CompressionRatio != 1 || detail.TokensSaved != 0 {
		t.Errorf("detail = %+v", detail)
	}
}

func TestRunScenarioUnknownModel(t *testing.T) {
	r, _ := newTestRunner(t, func(c *Config) { c.Model = "mystery" })

	_, err := r.RunScenario(context.Background(), models.BenchmarkScenario{Name: "x", Iterations: 1})
	if !errors.Is(err, pricing.ErrUnknownModel) {
		t.Errorf("err = %v, want ErrUnknownModel", err)
	}
}

func TestRunScenarioCancelled(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.RunScenario(ctx, models.BenchmarkScenario{Name: "x", Iterations: 3})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRunBenchmarkSuiteDefaults(t *testing.T) {
	var mu sync.Mutex
	pauses := 0
	r, rec := newTestRunner(t, func(c *Config) {
		c.Sleep = func(ctx context.Context, d time.Duration) error {
			if d == 2*time.Millisecond {
				mu.Lock()
				pauses++
				mu.Unlock()
			}
			return nil
		}
	})

	suite, err := r.RunBenchmarkSuite(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("RunBenchmarkSuite error: %v", err)
	}

	if suite.Name != DefaultSuiteName {
		t.Errorf("Name = %q", suite.Name)
	}
	if len(suite.Results) != 7 || len(suite.Scenarios) != 7 {
		t.Fatalf("got %d results for %d scenarios, want 7", len(suite.Results), len(suite.Scenarios))
	}
	if suite.Summary.TotalRequests != 88 {
		t.Errorf("TotalRequests = %d, want 88", suite.Summary.TotalRequests)
	}
	if suite.Summary.OverallSuccessRate != 1 {
		t.Errorf("OverallSuccessRate = %v, want 1", suite.Summary.OverallSuccessRate)
	}
	if pauses != 6 {
		t.Errorf("got %d scenario pauses, want 6", pauses)
	}
	if len(rec.samples) != 7 {
		t.Errorf("recorded %d samples, want one per scenario", len(rec.samples))
	}
	for i, res := range suite.Results {
		if res.Detail == nil || res.Detail.Category() != res.Category {
			t.Errorf("result %d: detail %T does not match category %s", i, res.Detail, res.Category)
		}
	}
	if r.IsRunning() {
		t.Error("runner should be idle after the suite")
	}
}

func TestRunBenchmarkSuiteRejectsConcurrentRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	r, _ := newTestRunner(t, func(c *Config) {
		c.Sleep = func(ctx context.Context, d time.Duration) error {
			once.Do(func() { close(started) })
			<-release
			return nil
		}
	})

	scenarios := []models.BenchmarkScenario{{Name: "one", Iterations: 1}}
	done := make(chan error, 1)
	go func() {
		_, err := r.RunBenchmarkSuite(context.Background(), "first", scenarios)
		done <- err
	}()

	<-started
	if _, err := r.RunBenchmarkSuite(context.Background(), "second", scenarios); !errors.Is(err, ErrSuiteRunning) {
		t.Errorf("err = %v, want ErrSuiteRunning", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first suite error: %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		scenario models.BenchmarkScenario
		want     models.ScenarioCategory
	}{
		{models.BenchmarkScenario{Category: models.CategoryResilience}, models.CategoryResilience},
		{models.BenchmarkScenario{ContextSize: 600_000}, models.CategoryCapacity},
		{models.BenchmarkScenario{Concurrency: 6}, models.CategoryThroughput},
		{models.BenchmarkScenario{Concurrency: 1}, models.CategoryLatency},
		{models.BenchmarkScenario{Category: "bogus", Concurrency: 8}, models.CategoryThroughput},
	}

	for _, tt := range tests {
		if got := Classify(tt.scenario); got != tt.want {
			t.Errorf("Classify(%+v) = %s, want %s", tt.scenario, got, tt.want)
		}
	}
}

func TestSynthesizeContext(t *testing.T) {
	text := synthesizeContext(1000)
	if len(text) < 4000 {
		t.Errorf("len = %d, want at least 4000 characters", len(text))
	}
	if synthesizeContext(0) != "" {
		t.Error("zero tokens should synthesize nothing")
	}
}
