package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/ganymede/pkg/cli"
	"mercator-hq/ganymede/pkg/traffic"
)

var searchFlags struct {
	method string
	status int
	since  time.Duration
	from   string
	to     string
	limit  int
	format string
}

var logsSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search recorded requests",
	Long: `Search recorded requests and their outcomes.

Filters combine with AND semantics. Time bounds come from --since
(relative to now) or --from/--to (RFC3339); --from and --to take
precedence over --since.

Output formats:
  - table (default): column-aligned summary
  - json: full records including headers
  - csv: summary rows for spreadsheets

Examples:
  # Last 20 rate-limited requests
  ganymede logs search --status 429 --limit 20

  # POST requests from the past hour
  ganymede logs search --method POST --since 1h

  # A fixed window, as CSV
  ganymede logs search --from 2026-08-24T00:00:00Z --to 2026-08-25T00:00:00Z --format csv`,
	RunE: searchTraffic,
}

func init() {
	logsCmd.AddCommand(logsSearchCmd)

	logsSearchCmd.Flags().StringVar(&searchFlags.method, "method", "", "filter by HTTP method")
	logsSearchCmd.Flags().IntVar(&searchFlags.status, "status", 0, "filter by response status code")
	logsSearchCmd.Flags().DurationVar(&searchFlags.since, "since", 0, "only records newer than this (e.g. 1h, 30m)")
	logsSearchCmd.Flags().StringVar(&searchFlags.from, "from", "", "start of time window (RFC3339)")
	logsSearchCmd.Flags().StringVar(&searchFlags.to, "to", "", "end of time window (RFC3339)")
	logsSearchCmd.Flags().IntVar(&searchFlags.limit, "limit", 50, "maximum records to return")
	logsSearchCmd.Flags().StringVar(&searchFlags.format, "format", "table", "output format: table, json, csv")
}

func searchTraffic(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(searchFlags.format)
	if err != nil {
		return err
	}
	if format == cli.FormatText {
		return fmt.Errorf("logs search supports table, json, or csv output")
	}

	query := traffic.Query{
		Method: strings.ToUpper(searchFlags.method),
		Status: searchFlags.status,
		Limit:  searchFlags.limit,
	}
	if searchFlags.since > 0 {
		query.Start = time.Now().Add(-searchFlags.since)
	}
	if searchFlags.from != "" {
		start, err := time.Parse(time.RFC3339, searchFlags.from)
		if err != nil {
			return fmt.Errorf("invalid --from time: %w", err)
		}
		query.Start = start
	}
	if searchFlags.to != "" {
		end, err := time.Parse(time.RFC3339, searchFlags.to)
		if err != nil {
			return fmt.Errorf("invalid --to time: %w", err)
		}
		query.End = end
	}

	store, _, err := openTrafficStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	entries, err := store.Search(ctx, query)
	if err != nil {
		return cli.NewCommandError("logs search", err)
	}

	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), entries)
	}

	table := &cli.Table{Headers: []string{"TIME", "ID", "METHOD", "PATH", "STATUS", "DURATION", "CLIENT"}}
	for _, entry := range entries {
		table.Append(
			entry.Request.Timestamp.Format(time.RFC3339),
			shortID(entry.Request.ID),
			entry.Request.Method,
			entry.Request.Path,
			entryStatus(entry),
			entryDuration(entry),
			entry.Request.ClientAddr,
		)
	}

	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), table); err != nil {
		return err
	}
	if format == cli.FormatTable {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d record(s)\n", len(entries))
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func entryStatus(entry traffic.Entry) string {
	if entry.Response == nil {
		return "-"
	}
	return strconv.Itoa(entry.Response.StatusCode)
}

func entryDuration(entry traffic.Entry) string {
	if entry.Response == nil {
		return "-"
	}
	return fmt.Sprintf("%dms", entry.Response.DurationMS)
}
