package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/ganymede/pkg/cli"
	"mercator-hq/ganymede/pkg/config"
)

var pruneFlags struct {
	days   int
	vacuum bool
}

var logsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old traffic records",
	Long: `Delete traffic records older than the retention window.

The running server prunes on its own schedule; this command runs the
same deletion on demand. Without --days the window comes from the
configuration file's traffic.retention.days.

--vacuum compacts the database file after deleting, reclaiming disk
space. Vacuuming rewrites the whole file and can take a while on large
databases; Ctrl+C cancels cleanly.

Examples:
  # Prune with the configured retention window
  ganymede logs prune

  # Prune records older than 7 days and compact
  ganymede logs prune --days 7 --vacuum`,
	RunE: pruneTraffic,
}

func init() {
	logsCmd.AddCommand(logsPruneCmd)

	logsPruneCmd.Flags().IntVar(&pruneFlags.days, "days", 0, "delete records older than this many days (default: configured retention)")
	logsPruneCmd.Flags().BoolVar(&pruneFlags.vacuum, "vacuum", false, "compact the database after pruning")
}

func pruneTraffic(cmd *cobra.Command, args []string) error {
	status := cli.NewStatus(cmd.OutOrStdout())

	store, cfg, err := openTrafficStore()
	if err != nil {
		return err
	}
	defer store.Close()

	days := pruneFlags.days
	if days == 0 {
		if cfg != nil && cfg.Traffic.Retention.Days > 0 {
			days = cfg.Traffic.Retention.Days
		} else {
			days = config.DefaultRetentionDays
		}
	}
	if days < 1 {
		return fmt.Errorf("invalid retention window: %d days", days)
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	cutoff := time.Now().AddDate(0, 0, -days)
	deleted, err := store.Cleanup(ctx, cutoff, pruneFlags.vacuum)
	if err != nil {
		return cli.NewCommandError("logs prune", err)
	}

	status.Successf("Pruned %d record(s) older than %d days", deleted, days)
	if pruneFlags.vacuum {
		status.Successf("Database compacted")
	}
	return nil
}
