package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/tokenwatch/internal/config"
	"github.com/j-veylop/tokenwatch/internal/models"
	"github.com/j-veylop/tokenwatch/internal/services/executor"
	"github.com/j-veylop/tokenwatch/internal/services/monitor"
	"github.com/j-veylop/tokenwatch/internal/services/notify"
)

var fixedNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

type captureNotifier struct {
	titles []string
	bodies []string
	mu     sync.Mutex
}

func (c *captureNotifier) Notify(title, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.titles = append(c.titles, title)
	c.bodies = append(c.bodies, body)
	return nil
}

func (c *captureNotifier) Bodies() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.bodies...)
}

func noSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

type countingExecutor struct {
	calls atomic.Int32
	err   error
}

func (e *countingExecutor) Execute(ctx context.Context, contextText, prompt, model string) (models.Response, error) {
	e.calls.Add(1)
	if e.err != nil {
		return models.Response{}, e.err
	}
	return models.Response{
		Content:    "answer for " + prompt,
		Model:      model,
		TokenUsage: &models.TokenUsage{InputTokens: 1000, OutputTokens: 500},
	}, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Notifications.DesktopEnabled = false
	cfg.Benchmarking.ErrorRate = 0
	cfg.Benchmarking.Seed = 3
	return cfg
}

func newTestManager(t *testing.T, cfg *config.Config, exec executor.Executor) (*Manager, *captureNotifier) {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	n := &captureNotifier{}
	mgr, err := NewManager(cfg, exec,
		WithNotifier(n),
		WithClock(func() time.Time { return fixedNow }),
		WithSampler(monitor.StaticSampler{MemoryMB: 64, CPUPercent: 5}),
		WithBenchmarkSleeper(noSleep),
	)
	require.NoError(t, err)
	t.Cleanup(mgr.Shutdown)
	return mgr, n
}

// waitForEvent skips events of other types until one of type T arrives.
func waitForEvent[T ServiceEvent](t *testing.T, events <-chan ServiceEvent) T {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case ev := <-events:
			if want, ok := ev.(T); ok {
				return want
			}
		case <-timeout:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func TestNewManager(t *testing.T) {
	mgr, _ := newTestManager(t, nil, nil)

	assert.NotNil(t, mgr.Cost())
	assert.NotNil(t, mgr.Monitor())
	assert.NotNil(t, mgr.Optimizer())
	assert.NotNil(t, mgr.Benchmark())
	assert.Equal(t, config.EnvDevelopment, mgr.Config().Environment)
}

func TestNewManager_NilConfigUsesDefaults(t *testing.T) {
	mgr, err := NewManager(nil, nil, WithNotifier(notify.Log{}))
	require.NoError(t, err)
	defer mgr.Shutdown()

	assert.Equal(t, config.Default().CostAnalysis.BudgetLimit, mgr.Config().CostAnalysis.BudgetLimit)
}

func TestNewManager_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Optimization.CompressionStrategy = "zip"

	_, err := NewManager(cfg, nil)
	require.Error(t, err)
}

func TestManager_InitializeAndShutdownIdempotent(t *testing.T) {
	mgr, _ := newTestManager(t, nil, nil)

	mgr.Initialize()
	mgr.Initialize()
	assert.True(t, mgr.Monitor().IsRunning())
	assert.True(t, mgr.GetSystemStatus().Initialized)

	mgr.Shutdown()
	mgr.Shutdown()
	assert.False(t, mgr.Monitor().IsRunning())

	// Initialize after Shutdown stays stopped.
	mgr.Initialize()
	assert.False(t, mgr.Monitor().IsRunning())
}

func TestManager_InitializeMonitoringDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Monitoring.Enabled = false
	mgr, _ := newTestManager(t, cfg, nil)

	mgr.Initialize()
	assert.False(t, mgr.Monitor().IsRunning())
}

func TestManager_ProcessRequest(t *testing.T) {
	exec := &countingExecutor{}
	mgr, _ := newTestManager(t, nil, exec)

	res, err := mgr.ProcessRequest(context.Background(), "some context", "Please summarize", RequestOptions{Label: "docs"})
	require.NoError(t, err)

	assert.Equal(t, "answer for summarize", res.Response.Content)
	assert.Equal(t, DefaultModel, res.Metrics.Model)
	assert.Equal(t, 1000, res.Metrics.InputTokens)
	assert.Equal(t, 500, res.Metrics.OutputTokens)
	assert.Equal(t, 1500, res.Metrics.TokensUsed)
	assert.InDelta(t, 0.006, res.Metrics.Cost, 1e-9)
	assert.True(t, res.Metrics.OptimizationApplied)
	assert.False(t, res.Metrics.CacheHit)

	records := mgr.Cost().Records()
	require.Len(t, records, 1)
	assert.Equal(t, "docs", records[0].Context)
	assert.Equal(t, 1, mgr.Monitor().Len())
	assert.Equal(t, 1, mgr.Optimizer().OptimizationMetrics().TotalCacheEntries)
}

func TestManager_ProcessRequestCacheHit(t *testing.T) {
	exec := &countingExecutor{}
	mgr, _ := newTestManager(t, nil, exec)
	ctx := context.Background()

	first, err := mgr.ProcessRequest(ctx, "ctx", "question", RequestOptions{})
	require.NoError(t, err)
	second, err := mgr.ProcessRequest(ctx, "ctx", "question", RequestOptions{})
	require.NoError(t, err)

	assert.Equal(t, int32(1), exec.calls.Load())
	assert.True(t, second.Metrics.CacheHit)
	assert.Equal(t, first.Response.Content, second.Response.Content)
	assert.Zero(t, second.Metrics.Cost)
	assert.Zero(t, second.Metrics.TokensUsed)
	assert.Equal(t, 1500, second.Metrics.TokensSaved)
	assert.Len(t, mgr.Cost().Records(), 1)
	assert.Equal(t, 2, mgr.Monitor().Len())
	assert.Empty(t, mgr.Monitor().ActiveAlerts(), "a cache hit must not look like slow token processing")
}

func TestManager_ProcessRequestSkipOptimization(t *testing.T) {
	exec := &countingExecutor{}
	mgr, _ := newTestManager(t, nil, exec)
	ctx := context.Background()
	opts := RequestOptions{SkipOptimization: true}

	for range 2 {
		res, err := mgr.ProcessRequest(ctx, "ctx", "Please answer", opts)
		require.NoError(t, err)
		assert.False(t, res.Metrics.OptimizationApplied)
		assert.Equal(t, "answer for Please answer", res.Response.Content)
	}
	assert.Equal(t, int32(2), exec.calls.Load())
	assert.Zero(t, mgr.Optimizer().OptimizationMetrics().TotalCacheEntries)
}

func TestManager_ProcessRequestSkipTracking(t *testing.T) {
	mgr, _ := newTestManager(t, nil, &countingExecutor{})

	res, err := mgr.ProcessRequest(context.Background(), "ctx", "q", RequestOptions{
		SkipCostTracking:        true,
		SkipPerformanceTracking: true,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.006, res.Metrics.Cost, 1e-9)
	assert.Empty(t, mgr.Cost().Records())
	assert.Zero(t, mgr.Monitor().Len())
}

func TestManager_ProcessRequestEstimatesTokens(t *testing.T) {
	exec := executor.Func(func(ctx context.Context, contextText, prompt, model string) (models.Response, error) {
		return models.Response{Content: strings.Repeat("x", 40)}, nil
	})
	mgr, _ := newTestManager(t, nil, exec)

	res, err := mgr.ProcessRequest(context.Background(), strings.Repeat("c", 400), "abcd", RequestOptions{})
	require.NoError(t, err)

	assert.Equal(t, 101, res.Metrics.InputTokens)
	assert.Equal(t, 10, res.Metrics.OutputTokens)
}

func TestManager_ProcessRequestUnknownModel(t *testing.T) {
	mgr, _ := newTestManager(t, nil, &countingExecutor{})
	events := mgr.Subscribe()

	res, err := mgr.ProcessRequest(context.Background(), "ctx", "q", RequestOptions{Model: "mystery-1"})
	require.NoError(t, err)
	assert.Zero(t, res.Metrics.Cost)
	assert.Empty(t, mgr.Cost().Records())

	select {
	case ev := <-events:
		errEv, ok := ev.(ErrorEvent)
		require.True(t, ok, "got %T", ev)
		assert.Equal(t, "cost", errEv.Service)
	case <-time.After(time.Second):
		t.Fatal("expected an error event")
	}
}

func TestManager_ProcessRequestExecutionFailure(t *testing.T) {
	boom := errors.New("upstream down")
	mgr, notifier := newTestManager(t, nil, &countingExecutor{err: boom})

	res, err := mgr.ProcessRequest(context.Background(), "ctx", "q", RequestOptions{Model: "gpt-4o"})
	require.Error(t, err)
	assert.Nil(t, res)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "gpt-4o", execErr.Model)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "request to gpt-4o failed: upstream down", err.Error())

	samples := mgr.Monitor().Samples(time.Hour)
	require.Len(t, samples, 1)
	assert.Equal(t, 1.0, samples[0].ErrorRate)
	assert.Zero(t, samples[0].Throughput)
	assert.Empty(t, mgr.Cost().Records())

	active := mgr.Monitor().ActiveAlerts()
	require.NotEmpty(t, active)
	assert.Len(t, notifier.Bodies(), len(active))
}

func TestManager_ProcessRequestRateLimitCancelled(t *testing.T) {
	cfg := testConfig()
	cfg.API.RequestsPerMinute = 1
	exec := &countingExecutor{}
	mgr, _ := newTestManager(t, cfg, exec)

	_, err := mgr.ProcessRequest(context.Background(), "ctx", "first", RequestOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = mgr.ProcessRequest(ctx, "ctx", "second", RequestOptions{})
	require.Error(t, err)
	assert.Equal(t, int32(1), exec.calls.Load())
}

func TestManager_CheckBudget(t *testing.T) {
	tests := []struct {
		name        string
		budget      float64
		inputTokens int
		wantStatus  models.BudgetStatus
		wantMsgs    int
	}{
		{"quiet", 200, 100_000, models.BudgetUnder, 0},
		{"daily approaching", 200, 4_500_000, models.BudgetUnder, 1},
		{"daily over", 200, 5_000_000, models.BudgetUnder, 1},
		{"monthly and daily over", 15, 5_000_000, models.BudgetOver, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.CostAnalysis.BudgetLimit = tt.budget
			mgr, notifier := newTestManager(t, cfg, nil)

			_, err := mgr.Cost().LogUsage(models.TokenUsageRecord{Model: "gpt-4.1", InputTokens: tt.inputTokens})
			require.NoError(t, err)

			ev := mgr.CheckBudget()
			assert.Equal(t, tt.wantStatus, ev.Forecast.BudgetStatus)
			assert.Len(t, ev.Messages, tt.wantMsgs)
			assert.Equal(t, ev.Messages, notifier.Bodies())
		})
	}
}

func TestManager_CheckBudgetBroadcast(t *testing.T) {
	mgr, _ := newTestManager(t, nil, nil)
	events := mgr.Subscribe()

	_, err := mgr.Cost().LogUsage(models.TokenUsageRecord{Model: "gpt-4.1", InputTokens: 6_000_000})
	require.NoError(t, err)
	mgr.CheckBudget()

	select {
	case ev := <-events:
		budget, ok := ev.(BudgetEvent)
		require.True(t, ok, "got %T", ev)
		assert.InDelta(t, 12.0, budget.SpentToday, 1e-9)
		assert.Contains(t, budget.Messages[0], "over the $10.00 daily budget")
	case <-time.After(time.Second):
		t.Fatal("expected a budget event")
	}
}

func TestManager_GetSystemStatus(t *testing.T) {
	mgr, _ := newTestManager(t, nil, &countingExecutor{})

	_, err := mgr.ProcessRequest(context.Background(), "ctx", "q", RequestOptions{})
	require.NoError(t, err)

	status := mgr.GetSystemStatus()
	assert.Equal(t, fixedNow, status.Timestamp)
	assert.False(t, status.Initialized)
	assert.Equal(t, 1, status.Cost.RequestCount)
	assert.Equal(t, 1, status.Performance.SampleCount)
	assert.Equal(t, models.BudgetUnder, status.Budget.BudgetStatus)
	assert.Equal(t, 1, status.Optimization.CacheMisses)
	assert.NotNil(t, status.ActiveAlerts)
	assert.NotEmpty(t, status.Recommendations)
}

func TestManager_RunValidation(t *testing.T) {
	cfg := testConfig()
	cfg.Benchmarking.CustomScenarios = []models.BenchmarkScenario{
		{Name: "quick", ContextSize: 5_000, OutputLength: 200, Concurrency: 1, Iterations: 3},
		{Name: "burst", ContextSize: 5_000, OutputLength: 200, Concurrency: 3, Iterations: 6},
	}
	mgr, _ := newTestManager(t, cfg, nil)
	events := mgr.Subscribe()

	report, err := mgr.RunValidation(context.Background())
	require.NoError(t, err)

	require.NotNil(t, report.Benchmark)
	assert.Len(t, report.Benchmark.Results, 2)
	assert.Equal(t, 2, mgr.Monitor().Len())
	assert.NotEmpty(t, report.Recommendations)
	for _, r := range report.Benchmark.Summary.Recommendations {
		assert.Contains(t, report.Recommendations, r)
	}

	done := waitForEvent[BenchmarkCompletedEvent](t, events)
	assert.Same(t, report.Benchmark, done.Suite)
}

func TestManager_RunValidationCancelled(t *testing.T) {
	mgr, _ := newTestManager(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mgr.RunValidation(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestManager_ApplyConfig(t *testing.T) {
	mgr, _ := newTestManager(t, nil, nil)
	events := mgr.Subscribe()

	next := testConfig()
	next.Environment = config.EnvProduction
	next.CostAnalysis.BudgetLimit = 500
	next.CostAnalysis.AlertThreshold = 60
	next.Monitoring.Thresholds.ThroughputMin = 3
	require.NoError(t, mgr.ApplyConfig(next))

	assert.Same(t, next, mgr.Config())
	assert.Equal(t, 500.0, mgr.Cost().BudgetLimit())
	assert.Equal(t, 60.0, mgr.Cost().AlertThreshold())
	assert.Equal(t, next.Monitoring.Thresholds.AlertRules(), mgr.Monitor().Rules())

	ev := <-events
	applied, ok := ev.(ConfigAppliedEvent)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, config.EnvProduction, applied.Config.Environment)

	bad := testConfig()
	bad.CostAnalysis.AlertThreshold = 150
	require.Error(t, mgr.ApplyConfig(bad))
	require.Error(t, mgr.ApplyConfig(nil))
	assert.Same(t, next, mgr.Config())
}

func TestManager_Subscribe(t *testing.T) {
	mgr, _ := newTestManager(t, nil, nil)

	ch := mgr.Subscribe()
	mgr.broadcast(ErrorEvent{Service: "test", Error: errors.New("x")})
	ev := <-ch
	assert.Equal(t, "test", ev.(ErrorEvent).Service)

	mgr.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)

	other := mgr.Subscribe()
	mgr.Shutdown()
	_, open = <-other
	assert.False(t, open)

	late := mgr.Subscribe()
	_, open = <-late
	assert.False(t, open)
}
