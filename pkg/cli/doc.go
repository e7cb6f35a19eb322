/*
Package cli provides shared helpers for the ganymede command.

It covers the three concerns every subcommand has: mapping errors to
process exit codes, rendering results in the requested output format,
and reacting to shutdown signals.

Errors:

Commands return *ConfigError for configuration problems and
*CommandError for runtime failures; the root command maps them to
distinct exit codes through ExitCode:

	if err := config.Initialize(path); err != nil {
		return cli.NewConfigError("", err.Error())
	}

Output:

Row-oriented results go through a Table and a Formatter selected by the
--format flag:

	table := &cli.Table{Headers: []string{"ID", "METHOD", "PATH"}}
	table.Append(rec.ID, rec.Method, rec.Path)
	formatter := cli.NewFormatter(cli.FormatTable)
	return formatter.FormatTo(os.Stdout, table)

Operator-facing step reports use Status, which prefixes lines with
✓, ✗, or ⚠:

	status := cli.NewStatus(os.Stdout)
	status.Successf("Configuration valid")

Signals:

SetupSignalHandler returns a context canceled on SIGINT/SIGTERM for
commands running cancellable work. WaitForShutdown exposes the raw
signal channel for commands that report which signal arrived.
*/
package cli
