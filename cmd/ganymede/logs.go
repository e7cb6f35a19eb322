package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/ganymede/pkg/cli"
	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/traffic/storage"
)

var logsDB string

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Query recorded traffic",
	Long: `Query the traffic history the proxy records to SQLite.

The logs command reads the traffic database directly, so it works
whether or not the server is running. By default the database path
comes from the configuration file; --db points at a specific file and
skips configuration loading entirely.

Subcommands:
  search - Search recorded requests and their outcomes
  stats  - Show aggregate traffic statistics
  prune  - Delete records older than the retention window

Examples:
  # Recent rate-limited requests
  ganymede logs search --status 429 --limit 20

  # Aggregate statistics as JSON
  ganymede logs stats --format json

  # Prune records older than 30 days and compact the database
  ganymede logs prune --days 30 --vacuum`,
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.PersistentFlags().StringVar(&logsDB, "db", "", "traffic database path (defaults to the configured path)")
}

// openTrafficStore opens the traffic database, resolving its path from
// --db or the configuration file. The returned config is nil when --db
// bypassed configuration loading.
func openTrafficStore() (*storage.SQLiteStore, *config.Config, error) {
	path := logsDB
	var cfg *config.Config

	if path == "" {
		if err := config.Initialize(cfgFile); err != nil {
			return nil, nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
		}
		cfg = config.GetConfig()
		path = cfg.Traffic.DBPath
	}

	// Opening a missing file would create an empty database; surface the
	// mistake instead.
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("traffic database not found at %s: %w", path, err)
	}

	store, err := storage.New(path, storeLogger())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open traffic database: %w", err)
	}
	return store, cfg, nil
}

// storeLogger keeps storage diagnostics off stdout so formatted command
// output stays parseable.
func storeLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}
