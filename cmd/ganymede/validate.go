package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/ganymede/pkg/cli"
	"mercator-hq/ganymede/pkg/config"
)

var validateFlags struct {
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Check the configuration file without starting the server.

Validation covers every section the server reads at startup: listen
addresses, the upstream URL, client certificate paths (the files must
exist), admission limits, storage paths, and telemetry settings.
Environment variable overrides (GANYMEDE_*) are applied before
validation, so the result matches what "ganymede run" would load.

Exit codes:
  0 - configuration valid
  2 - configuration invalid or unreadable

Examples:
  # Validate the default config file
  ganymede validate

  # Validate a specific file
  ganymede validate --config /etc/ganymede/config.yaml

  # Machine-readable report
  ganymede validate --format json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

type validationReport struct {
	Valid  bool     `json:"valid"`
	Config string   `json:"config"`
	Errors []string `json:"errors,omitempty"`
}

func validateConfig(cmd *cobra.Command, args []string) error {
	status := cli.NewStatus(cmd.OutOrStdout())

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		var valErr config.ValidationError
		if errors.As(err, &valErr) {
			return reportInvalid(cmd, status, valErr)
		}
		return cli.NewConfigError("", err.Error())
	}

	if validateFlags.format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(validationReport{Valid: true, Config: cfgFile})
	}

	status.Successf("Configuration valid: %s", cfgFile)
	status.Infof("  Listen: %s", cfg.Server.ListenAddress)
	status.Infof("  Target: %s", cfg.Upstream.BaseURL)
	status.Infof("  Client identity: %s", cfg.ClientTLS.CertFile)
	return nil
}

func reportInvalid(cmd *cobra.Command, status *cli.Status, valErr config.ValidationError) error {
	if validateFlags.format == "json" {
		report := validationReport{Valid: false, Config: cfgFile}
		for _, fe := range valErr.Errors {
			report.Errors = append(report.Errors, fe.Error())
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			return err
		}
	} else {
		status.Failf("Configuration invalid: %s", cfgFile)
		for _, fe := range valErr.Errors {
			status.Infof("  - %s", fe.Error())
		}
	}

	return cli.NewConfigError("", fmt.Sprintf("%d validation error(s)", len(valErr.Errors)))
}
