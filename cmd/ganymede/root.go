package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/ganymede/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ganymede",
	Short: "Mercator Ganymede - mTLS-terminating forward proxy",
	Long: `Mercator Ganymede is an mTLS-terminating forward proxy. It shields
local callers from client certificate handling: they speak plain HTTP to
Ganymede, and Ganymede forwards every request over mutual TLS to a single
configured upstream.

It provides:
  - Client certificate loading, validation, and live reload
  - Admission control (rate limiting and concurrency caps)
  - Traffic recording with a searchable SQLite history
  - A management dashboard and REST API
  - Prometheus metrics, health endpoints, and OTLP tracing

For more information, visit: https://github.com/mercator-hq/ganymede`,
	Version: Version,
}

// Execute runs the root command. Configuration errors exit with a
// distinct code so wrapper scripts can tell them apart from runtime
// failures.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Disable default completion command (we'll add our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = false
}
