// Package logging configures structured logging for the proxy.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package:
//   - JSON or text output selected by configuration
//   - Configurable log levels (debug, info, warn, error)
//   - Component-scoped loggers for subsystem attribution
//
// # Usage
//
//	logger, err := logging.Setup(cfg.Telemetry.Logging, os.Stdout)
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	// Component-scoped logger
//	log := logging.Component("forwarder")
//	log.Info("upstream connected", "host", host)
//
// Handlers write synchronously to the configured writer. Request and
// response records that must never block the forwarding path go through
// the traffic recorder instead, which has its own bounded buffer.
package logging
