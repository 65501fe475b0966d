package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/j-veylop/tokenwatch/internal/models"
	"github.com/j-veylop/tokenwatch/internal/services/cost"
	"github.com/j-veylop/tokenwatch/internal/ui/components"
)

var (
	flagForecastLedger string
	flagForecastBudget float64
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Project month-end spend from a usage ledger",
	Long:  "Load a JSON usage ledger (as written by simulate --export-ledger) and project month-end spend against the budget.",
	RunE:  runForecast,
}

func init() {
	forecastCmd.Flags().StringVarP(&flagForecastLedger, "ledger", "l", "", "JSON usage ledger")
	forecastCmd.Flags().Float64VarP(&flagForecastBudget, "budget", "b", 0, "Monthly budget in USD (default from config)")
	_ = forecastCmd.MarkFlagRequired("ledger")
	rootCmd.AddCommand(forecastCmd)
}

func runForecast(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	budget := cfg.CostAnalysis.BudgetLimit
	if flagForecastBudget > 0 {
		budget = flagForecastBudget
	}

	records, err := readLedger(flagForecastLedger)
	if err != nil {
		return err
	}

	analyzer := cost.New(nil, cost.Config{BudgetLimit: budget, AlertThreshold: cfg.CostAnalysis.AlertThreshold})
	skipped := 0
	for _, r := range records {
		if _, err := analyzer.LogUsage(r); err != nil {
			skipped++
		}
	}
	if skipped > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Skipped %d records with unknown models\n", skipped)
	}

	forecast := analyzer.ForecastMonthlyBudget(budget)
	daily := analyzer.DailySpend(forecast.DaysElapsed)
	fmt.Fprintln(cmd.OutOrStdout(), components.RenderForecast(forecast, daily, outputWidth()))
	return nil
}

func readLedger(path string) ([]models.TokenUsageRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	var records []models.TokenUsageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse ledger %s: %w", path, err)
	}
	return records, nil
}
