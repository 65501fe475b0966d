package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/tokenwatch/internal/models"
	"github.com/j-veylop/tokenwatch/internal/services/benchmark"
)

type fakeBackend struct {
	status    models.SystemStatus
	report    *models.ValidationReport
	err       error
	resolved  []string
	validated int
}

func (f *fakeBackend) GetSystemStatus() models.SystemStatus { return f.status }

func (f *fakeBackend) RunValidation(ctx context.Context) (*models.ValidationReport, error) {
	f.validated++
	return f.report, f.err
}

func (f *fakeBackend) ResolveAlert(id string) bool {
	if id != "a-1" {
		return false
	}
	f.resolved = append(f.resolved, id)
	return true
}

func sampleStatus() models.SystemStatus {
	return models.SystemStatus{
		Timestamp: time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC),
		Cost:      models.CostMetrics{TotalCost: 1.25, RequestCount: 4, TotalTokens: 9000},
		Budget:    models.BudgetForecast{ProjectedCost: 150, BudgetLimit: 200, BudgetStatus: models.BudgetUnder},
		Performance: models.PerformanceStats{
			SampleCount:         4,
			AverageResponseTime: 1200,
			P95ResponseTime:     2000,
			P99ResponseTime:     2500,
			AverageThroughput:   0.8,
		},
		Optimization: models.OptimizationMetrics{CacheHits: 3, CacheMisses: 5, TotalTokensSaved: 700},
		ActiveAlerts: []models.PerformanceAlert{
			{ID: "a-1", Severity: models.SeverityMedium},
			{ID: "a-2", Severity: models.SeverityMedium},
			{ID: "a-3", Severity: models.SeverityCritical},
		},
		Recommendations: []string{},
	}
}

func TestCollector(t *testing.T) {
	c := NewCollector(&fakeBackend{status: sampleStatus()})

	// 13 unlabelled + 4 budget statuses + 3 response time stats + 4 severities
	assert.Equal(t, 24, testutil.CollectAndCount(c))

	expected := `
# HELP tokenwatch_active_alerts Unresolved performance alerts.
# TYPE tokenwatch_active_alerts gauge
tokenwatch_active_alerts{severity="critical"} 1
tokenwatch_active_alerts{severity="high"} 0
tokenwatch_active_alerts{severity="low"} 0
tokenwatch_active_alerts{severity="medium"} 2
# HELP tokenwatch_cache_hits_total Response cache hits.
# TYPE tokenwatch_cache_hits_total counter
tokenwatch_cache_hits_total 3
# HELP tokenwatch_budget_status 1 for the current budget status, 0 otherwise.
# TYPE tokenwatch_budget_status gauge
tokenwatch_budget_status{status="approaching"} 0
tokenwatch_budget_status{status="over"} 0
tokenwatch_budget_status{status="under"} 1
tokenwatch_budget_status{status="unknown"} 0
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"tokenwatch_active_alerts", "tokenwatch_cache_hits_total", "tokenwatch_budget_status")
	require.NoError(t, err)
}

func TestCollectorLint(t *testing.T) {
	problems, err := testutil.CollectAndLint(NewCollector(&fakeBackend{status: sampleStatus()}))
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestRouterMetrics(t *testing.T) {
	backend := &fakeBackend{status: sampleStatus()}
	srv := httptest.NewServer(NewRouter(backend, NewRegistry(backend)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := new(bytes.Buffer)
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), "tokenwatch_cost_day_usd 1.25")
	assert.Contains(t, body.String(), "go_goroutines")
}

func TestRouterStatus(t *testing.T) {
	backend := &fakeBackend{status: sampleStatus()}
	h := NewRouter(backend, NewRegistry(backend))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 4, got.Cost.RequestCount)
	assert.Len(t, got.ActiveAlerts, 3)
}

func TestRouterResolveAlert(t *testing.T) {
	backend := &fakeBackend{status: sampleStatus()}
	h := NewRouter(backend, NewRegistry(backend))

	tests := []struct {
		id   string
		want int
	}{
		{"a-1", http.StatusOK},
		{"missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/alerts/"+tt.id+"/resolve", nil))
		assert.Equal(t, tt.want, rec.Code, tt.id)
	}
	assert.Equal(t, []string{"a-1"}, backend.resolved)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/alerts/a-1/resolve", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouterValidate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"busy", benchmark.ErrSuiteRunning, http.StatusConflict},
		{"failed", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{
				status: sampleStatus(),
				report: &models.ValidationReport{Recommendations: []string{"All good"}},
				err:    tt.err,
			}
			h := NewRouter(backend, NewRegistry(backend))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/validate", nil))

			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, 1, backend.validated)
			if tt.err != nil {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.err.Error(), body["error"])
			}
		})
	}
}
