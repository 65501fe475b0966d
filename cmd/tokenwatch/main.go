// Command tokenwatch tracks LLM spend and health, runs benchmark suites and
// serves metrics for the performance validation system.
package main

import (
	"os"

	"github.com/j-veylop/tokenwatch/internal/version"
)

func main() {
	rootCmd.Version = version.GetVersion()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
