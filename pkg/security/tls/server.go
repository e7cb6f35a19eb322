package tls

import (
	"crypto/tls"
	"os"

	"mercator-hq/ganymede/pkg/config"
)

// BuildServerConfig produces the tls.Config for the inbound listener.
// Inbound clients are not asked for certificates; the listener only
// terminates TLS.
func BuildServerConfig(cfg *config.ServerTLSConfig) (*tls.Config, error) {
	if _, err := os.Stat(cfg.CertFile); err != nil {
		return nil, &CertificateNotFoundError{Path: cfg.CertFile, Err: err}
	}
	if _, err := os.Stat(cfg.KeyFile); err != nil {
		return nil, &CertificateNotFoundError{Path: cfg.KeyFile, Err: err}
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, &InvalidCertificateError{
			Path:   cfg.CertFile,
			Reason: "failed to load key pair",
			Err:    err,
		}
	}

	if err := ValidateCertificate(&cert); err != nil {
		return nil, &InvalidCertificateError{
			Path:   cfg.CertFile,
			Reason: err.Error(),
			Err:    err,
		}
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   parseTLSVersion(cfg.MinVersion),
		NextProtos:   []string{"h2", "http/1.1"},
	}, nil
}

// parseTLSVersion maps a configured version string to the tls constant.
// Versions below 1.2 are never offered.
func parseTLSVersion(version string) uint16 {
	switch version {
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
