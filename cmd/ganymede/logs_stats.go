package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/ganymede/pkg/cli"
)

var statsFlags struct {
	format string
}

var logsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate traffic statistics",
	Long: `Show aggregate statistics over the recorded traffic.

The numbers match the management dashboard: totals, success rate,
average handling time, and activity in the past hour.

Examples:
  # Human-readable summary
  ganymede logs stats

  # JSON for scripting
  ganymede logs stats --format json`,
	RunE: showTrafficStats,
}

func init() {
	logsCmd.AddCommand(logsStatsCmd)

	logsStatsCmd.Flags().StringVar(&statsFlags.format, "format", "text", "output format: text, json")
}

func showTrafficStats(cmd *cobra.Command, args []string) error {
	store, _, err := openTrafficStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	stats, err := store.Stats(ctx)
	if err != nil {
		return cli.NewCommandError("logs stats", err)
	}

	if statsFlags.format == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(cmd.OutOrStdout(), stats)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "Traffic Statistics:")
	fmt.Fprintf(w, "  Total Requests: %d\n", stats.TotalRequests)
	fmt.Fprintf(w, "  Total Responses: %d\n", stats.TotalResponses)
	fmt.Fprintf(w, "  Successful: %d (%.1f%%)\n", stats.SuccessfulRequests, stats.SuccessRate)
	fmt.Fprintf(w, "  Errors: %d\n", stats.ErrorRequests)
	fmt.Fprintf(w, "  Avg Duration: %.1fms\n", stats.AvgDurationMS)
	fmt.Fprintf(w, "  Last Hour: %d requests\n", stats.RequestsLastHour)
	fmt.Fprintf(w, "  Last Updated: %s\n", stats.LastUpdated.Format(time.RFC3339))
	return nil
}
