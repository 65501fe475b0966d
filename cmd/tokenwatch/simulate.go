package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/j-veylop/tokenwatch/internal/logger"
	"github.com/j-veylop/tokenwatch/internal/models"
	"github.com/j-veylop/tokenwatch/internal/services"
	"github.com/j-veylop/tokenwatch/internal/services/executor"
	"github.com/j-veylop/tokenwatch/internal/ui/components"
)

var (
	flagSimRequests  int
	flagSimLatency   time.Duration
	flagSimErrorRate float64
	flagSimModels    []string
	flagSimLedger    string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive simulated requests through the pipeline",
	Long:  "Send synthetic requests through optimization, execution, cost tracking and monitoring, then print the resulting status.",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().IntVarP(&flagSimRequests, "requests", "n", 50, "Number of requests")
	simulateCmd.Flags().DurationVar(&flagSimLatency, "latency", 20*time.Millisecond, "Simulated response latency")
	simulateCmd.Flags().Float64Var(&flagSimErrorRate, "error-rate", 0.02, "Fraction of requests that fail")
	simulateCmd.Flags().StringSliceVar(&flagSimModels, "models", []string{"gpt-4.1", "gpt-4o", "gpt-4.1-mini"}, "Models to rotate through")
	simulateCmd.Flags().StringVar(&flagSimLedger, "export-ledger", "", "Write the usage ledger as JSON to this file")
	rootCmd.AddCommand(simulateCmd)
}

// simulatedPrompts repeat so later rounds exercise the response cache.
var simulatedPrompts = []string{
	"Please summarize the incident report",
	"Can you list the open action items",
	"Explain the latency regression",
	"I want you to draft a status update",
	"Classify the customer feedback",
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if flagSimRequests <= 0 {
		return fmt.Errorf("--requests must be positive, got %d", flagSimRequests)
	}
	if len(flagSimModels) == 0 {
		return fmt.Errorf("--models must name at least one model")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sim := executor.NewSimulator(executor.SimulatorConfig{
		Latency:   flagSimLatency,
		ErrorRate: flagSimErrorRate,
		Seed:      cfg.Benchmarking.Seed,
	})
	mgr, err := services.NewManager(cfg, sim)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer mgr.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	contexts := []string{
		strings.Repeat("Service logs for the checkout API.\n", 40),
		strings.Repeat("Quarterly planning notes.\n", 120),
	}

	failures := 0
	for i := range flagSimRequests {
		if ctx.Err() != nil {
			break
		}
		prompt := simulatedPrompts[i%len(simulatedPrompts)]
		model := flagSimModels[(i/len(simulatedPrompts))%len(flagSimModels)]

		_, err := mgr.ProcessRequest(ctx, contexts[i%len(contexts)], prompt, services.RequestOptions{
			Model: model,
			Label: "simulate",
		})
		if err != nil {
			failures++
			logger.Debug("simulated request failed", "request", i, "error", err)
		}
	}

	status := mgr.GetSystemStatus()
	var responseTimes []float64
	for _, s := range mgr.Monitor().Samples(time.Hour) {
		responseTimes = append(responseTimes, s.ResponseTime)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sent %d requests, %d failed\n\n", flagSimRequests, failures)
	fmt.Fprintln(out, components.RenderStatus(status, responseTimes, outputWidth()))

	if flagSimLedger != "" {
		data, err := mgr.Cost().ExportUsage(models.FormatJSON)
		if err != nil {
			return err
		}
		if err := os.WriteFile(flagSimLedger, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", flagSimLedger, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote ledger to %s\n", flagSimLedger)
	}
	return nil
}
