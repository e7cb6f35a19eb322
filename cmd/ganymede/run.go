package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/ganymede/pkg/cli"
	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/server"
	"mercator-hq/ganymede/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress    string
	targetURL        string
	clientCert       string
	clientKey        string
	caCert           string
	noVerifyHostname bool
	timeout          time.Duration
	logLevel         string
	dryRun           bool
	showConfig       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Ganymede proxy server",
	Long: `Start the Ganymede proxy server with the specified configuration.

The server listens on the configured address and forwards every request
over mutual TLS to the configured upstream, applying rate limiting,
concurrency caps, and traffic recording along the way.

Examples:
  # Start with default config
  ganymede run

  # Start with custom config
  ganymede run --config /etc/ganymede/config.yaml

  # Override upstream and client identity
  ganymede run --target-url https://api.example.com \
    --client-cert certs/client.crt --client-key certs/client.key

  # Validate config without starting the server
  ganymede run --dry-run

  # Print the effective configuration and exit
  ganymede run --show-config`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.targetURL, "target-url", "", "override upstream base URL")
	runCmd.Flags().StringVar(&runFlags.clientCert, "client-cert", "", "override client certificate file")
	runCmd.Flags().StringVar(&runFlags.clientKey, "client-key", "", "override client private key file")
	runCmd.Flags().StringVar(&runFlags.caCert, "ca-cert", "", "override CA certificate file")
	runCmd.Flags().BoolVar(&runFlags.noVerifyHostname, "no-verify-hostname", false, "disable upstream hostname verification")
	runCmd.Flags().DurationVar(&runFlags.timeout, "timeout", 0, "override upstream request timeout")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
	runCmd.Flags().BoolVar(&runFlags.showConfig, "show-config", false, "print effective configuration and exit")
}

func runServer(cmd *cobra.Command, args []string) error {
	status := cli.NewStatus(cmd.OutOrStdout())

	// Load configuration
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.targetURL != "" {
		cfg.Upstream.BaseURL = runFlags.targetURL
	}
	if runFlags.clientCert != "" {
		cfg.ClientTLS.CertFile = runFlags.clientCert
	}
	if runFlags.clientKey != "" {
		cfg.ClientTLS.KeyFile = runFlags.clientKey
	}
	if runFlags.caCert != "" {
		cfg.ClientTLS.CAFile = runFlags.caCert
	}
	if runFlags.noVerifyHostname {
		cfg.ClientTLS.SkipHostnameVerify = true
	}
	if runFlags.timeout > 0 {
		cfg.Upstream.Timeout = runFlags.timeout
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	// Overrides can invalidate a config that loaded cleanly; check again.
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	if err := logging.Init(cfg.Telemetry.Logging); err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	if runFlags.showConfig {
		printConfig(cfg)
		return nil
	}

	if runFlags.dryRun {
		status.Successf("Configuration valid")
		return nil
	}

	// Print startup banner
	status.Infof("Mercator Ganymede v%s", Version)
	status.Infof("Loading configuration from: %s", cfgFile)
	status.Successf("Configuration loaded")

	srv, err := server.New(cfg, server.Options{
		ConfigPath: cfgFile,
		Version:    Version,
		Commit:     GitCommit,
		BuildTime:  BuildDate,
		Logger:     logging.Component("server"),
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(context.Background())
	}()

	// Wait until the listener is bound so the endpoint lines below carry
	// real addresses.
	ready := time.After(5 * time.Second)
	for srv.Addr() == nil {
		select {
		case err := <-errChan:
			if err != nil {
				return cli.NewCommandError("run", err)
			}
			return nil
		case <-ready:
			return cli.NewCommandError("run", fmt.Errorf("server not listening after 5s"))
		case <-time.After(10 * time.Millisecond):
		}
	}

	scheme := "http"
	if cfg.Server.TLS.Enabled {
		scheme = "https"
	}
	addr := srv.Addr().String()

	status.Blank()
	status.Successf("Proxy listening on %s://%s", scheme, addr)
	status.Successf("Forwarding to %s", cfg.Upstream.BaseURL)
	if cfg.Telemetry.Health.Enabled {
		status.Successf("Health endpoint: %s://%s%s", scheme, addr, cfg.Telemetry.Health.LivenessPath)
	}
	if cfg.Telemetry.Metrics.Enabled {
		status.Successf("Metrics endpoint: %s://%s%s", scheme, addr, cfg.Telemetry.Metrics.Path)
	}
	if cfg.Admin.Enabled {
		if adminAddr := srv.AdminAddr(); adminAddr != nil {
			status.Successf("Dashboard: http://%s/ui", adminAddr)
		} else {
			status.Successf("Dashboard: %s://%s/ui", scheme, addr)
		}
	}
	status.Blank()
	status.Infof("Press Ctrl+C to stop")

	// The server traps SIGINT/SIGTERM itself and drains in-flight work;
	// the signal channel here only decides what to print.
	sigChan := cli.WaitForShutdown()

	select {
	case err := <-errChan:
		if err != nil {
			return cli.NewCommandError("run", err)
		}
	case sig := <-sigChan:
		status.Blank()
		status.Infof("Received signal %s, shutting down gracefully...", sig)
		if err := <-errChan; err != nil {
			return cli.NewCommandError("run", err)
		}
	}

	status.Successf("Server stopped")
	return nil
}

func printConfig(cfg *config.Config) {
	fmt.Println("Configuration:")
	fmt.Printf("  Listen: %s (TLS: %t)\n", cfg.Server.ListenAddress, cfg.Server.TLS.Enabled)
	fmt.Printf("  Max Connections: %d\n", cfg.Server.MaxConnections)
	fmt.Printf("  Max Concurrent Requests: %d\n", cfg.Server.MaxConcurrentRequests)
	fmt.Printf("  Max Request Size: %dMB\n", cfg.Server.MaxRequestSizeMB)
	fmt.Printf("  Rate Limit: %.0f/s (burst: %d)\n",
		cfg.Limits.RateLimit.RequestsPerSecond, cfg.Limits.RateLimit.BurstSize)
	fmt.Printf("  Target: %s\n", cfg.Upstream.BaseURL)
	fmt.Printf("  Client Cert: %s\n", cfg.ClientTLS.CertFile)
	fmt.Printf("  Client Key: %s\n", cfg.ClientTLS.KeyFile)
	fmt.Printf("  CA Cert: %s\n", cfg.ClientTLS.CAFile)
	fmt.Printf("  Verify Hostname: %t\n", !cfg.ClientTLS.SkipHostnameVerify)
	fmt.Printf("  Timeout: %s\n", cfg.Upstream.Timeout)
	fmt.Printf("  Cert Reload: %t\n", cfg.ClientTLS.Reload.Enabled)
	fmt.Printf("  Traffic Log: %s\n", enabledPath(cfg.Traffic.Enabled, cfg.Traffic.DBPath))
	fmt.Printf("  Audit Log: %s\n", enabledPath(cfg.Audit.Enabled, cfg.Audit.DBPath))
	fmt.Printf("  Admin: %t\n", cfg.Admin.Enabled)
	fmt.Printf("  Metrics: %s\n", enabledPath(cfg.Telemetry.Metrics.Enabled, cfg.Telemetry.Metrics.Path))
	fmt.Printf("  Tracing: %t\n", cfg.Telemetry.Tracing.Enabled)
	fmt.Printf("  Log Level: %s\n", cfg.Telemetry.Logging.Level)
}

func enabledPath(enabled bool, path string) string {
	if !enabled {
		return "disabled"
	}
	return fmt.Sprintf("enabled (%s)", path)
}
