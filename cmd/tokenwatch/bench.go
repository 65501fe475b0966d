package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/j-veylop/tokenwatch/internal/models"
	"github.com/j-veylop/tokenwatch/internal/services/benchmark"
	"github.com/j-veylop/tokenwatch/internal/ui/components"
)

var (
	flagBenchFormat string
	flagBenchOutput string
	flagBenchName   string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run the benchmark suite",
	Long:  "Run the configured benchmark scenarios (or the built-in suite) and print or export the results.",
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().StringVarP(&flagBenchFormat, "format", "f", "", "Export format: json or csv (default table)")
	benchCmd.Flags().StringVarP(&flagBenchOutput, "output", "o", "", "Write the export to a file instead of stdout")
	benchCmd.Flags().StringVar(&flagBenchName, "name", "", "Suite name")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	var format models.ExportFormat
	if flagBenchFormat != "" {
		f, err := models.ParseExportFormat(flagBenchFormat)
		if err != nil {
			return err
		}
		format = f
	}

	mgr, cfg, err := newManager()
	if err != nil {
		return err
	}
	defer mgr.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	suite, err := mgr.Benchmark().RunBenchmarkSuite(ctx, flagBenchName, cfg.Benchmarking.CustomScenarios)
	if err != nil {
		return err
	}

	if format == "" {
		fmt.Fprintln(cmd.OutOrStdout(), components.RenderSuite(suite, outputWidth()))
		return nil
	}

	data, err := benchmark.ExportResults(suite, format)
	if err != nil {
		return err
	}
	if flagBenchOutput != "" {
		if err := os.WriteFile(flagBenchOutput, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", flagBenchOutput, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s results to %s\n", format, flagBenchOutput)
		return nil
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
