package main

import (
	"github.com/spf13/cobra"
)

var certsCmd = &cobra.Command{
	Use:   "certs",
	Short: "Manage client certificates",
	Long: `Manage the client certificates Ganymede presents to the upstream.

The certs command provides utilities for the mTLS identity lifecycle:
inspecting certificates, validating certificate/key pairs and chains,
and generating self-signed identities for testing.

Subcommands:
  generate - Generate a self-signed client identity or CA for testing
  info     - Display certificate details
  validate - Validate certificate, key pair, and chain

Examples:
  # Validate the configured client identity
  ganymede certs validate --cert certs/client.crt --key certs/client.key

  # Display certificate information
  ganymede certs info certs/client.crt

  # Generate a self-signed client identity for testing
  ganymede certs generate --cn dev-client`,
}

func init() {
	rootCmd.AddCommand(certsCmd)
}
