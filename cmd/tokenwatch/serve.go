package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/j-veylop/tokenwatch/internal/config"
	"github.com/j-veylop/tokenwatch/internal/logger"
	"github.com/j-veylop/tokenwatch/internal/services"
	"github.com/j-veylop/tokenwatch/internal/telemetry"
)

var flagServeAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run monitoring and serve metrics over HTTP",
	Long: `Start monitoring, budget checks and scheduled benchmarks, and serve
Prometheus metrics at /metrics and JSON status at /api/status.
The config file is reloaded when it changes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&flagServeAddr, "addr", "a", ":9464", "Listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	mgr, _, err := newManager()
	if err != nil {
		return err
	}
	defer mgr.Shutdown()
	mgr.Initialize()

	events := mgr.Subscribe()
	go logEvents(events)

	srv := &http.Server{
		Addr:              flagServeAddr,
		Handler:           telemetry.NewRouter(mgr, telemetry.NewRegistry(mgr)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("serving metrics", "addr", flagServeAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if path := os.Getenv("TOKENWATCH_CONFIG"); path != "" {
		g.Go(func() error {
			return config.Watch(ctx, path, func(cfg *config.Config) {
				if err := mgr.ApplyConfig(cfg); err != nil {
					logger.Warn("config not applied", "error", err)
				}
			})
		})
	}

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

func logEvents(events <-chan services.ServiceEvent) {
	for ev := range events {
		switch e := ev.(type) {
		case services.AlertEvent:
			logger.Warn("performance alert", "severity", e.Alert.Severity, "metric", e.Alert.Metric, "message", e.Alert.Message)
		case services.BenchmarkCompletedEvent:
			logger.Info("scheduled benchmark finished",
				"suite", e.Suite.Name, "successRate", e.Suite.Summary.OverallSuccessRate)
		case services.ErrorEvent:
			logger.Error("service error", "service", e.Service, "error", e.Error)
		}
	}
}
