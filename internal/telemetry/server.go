package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/j-veylop/tokenwatch/internal/logger"
	"github.com/j-veylop/tokenwatch/internal/models"
	"github.com/j-veylop/tokenwatch/internal/services/benchmark"
)

// Backend is what the HTTP surface reads from and acts on.
type Backend interface {
	StatusSource
	RunValidation(ctx context.Context) (*models.ValidationReport, error)
	ResolveAlert(id string) bool
}

// NewRegistry returns a private registry holding the status collector and
// the Go runtime collectors.
func NewRegistry(source StatusSource) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(source),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewRouter serves metrics, status and the alert and validation actions.
func NewRouter(backend Backend, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", statusHandler(backend))
		r.Post("/alerts/{id}/resolve", resolveAlertHandler(backend))
		r.Post("/validate", validateHandler(backend))
	})

	return r
}

func statusHandler(backend Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, backend.GetSystemStatus())
	}
}

func resolveAlertHandler(backend Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !backend.ResolveAlert(id) {
			writeError(w, http.StatusNotFound, "alert not found: "+id)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "resolved": true})
	}
}

func validateHandler(backend Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		report, err := backend.RunValidation(r.Context())
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, benchmark.ErrSuiteRunning) {
				status = http.StatusConflict
			}
			logger.Warn("validation request failed", "error", err)
			writeError(w, status, err.Error())
			return
		}
		logger.Info("validation completed", "elapsed", time.Since(start))
		writeJSON(w, http.StatusOK, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
