package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/j-veylop/tokenwatch/internal/config"
	"github.com/j-veylop/tokenwatch/internal/logger"
	"github.com/j-veylop/tokenwatch/internal/services"
)

var (
	flagConfig  string
	flagEnv     string
	flagWidth   int
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "tokenwatch",
	Short:         "LLM cost and performance governance",
	Long:          "Track token spend against budgets, monitor latency and errors, and benchmark request handling.",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			logger.SetLevel("debug")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "TOML config file (default $TOKENWATCH_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&flagEnv, "env", "e", "", "Environment profile: development, staging or production")
	rootCmd.PersistentFlags().IntVarP(&flagWidth, "width", "w", 0, "Output width (default terminal width)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Debug logging")
}

// loadConfig is the shared config path used by all commands. Flags win
// over the environment.
func loadConfig() (*config.Config, error) {
	if flagEnv != "" {
		if err := os.Setenv("TOKENWATCH_ENV", flagEnv); err != nil {
			return nil, err
		}
	}
	if flagConfig != "" {
		if err := os.Setenv("TOKENWATCH_CONFIG", flagConfig); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if !flagVerbose {
		logger.SetLevel(cfg.LogLevel)
	}
	return cfg, nil
}

// newManager loads the config and builds the services around it.
func newManager(opts ...services.ManagerOption) (*services.Manager, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	mgr, err := services.NewManager(cfg, nil, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return mgr, cfg, nil
}

func outputWidth() int {
	if flagWidth > 0 {
		return flagWidth
	}
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return min(w, 120)
	}
	return 80
}
