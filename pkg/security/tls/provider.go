package tls

import (
	"crypto/tls"
	"log/slog"
	"sync/atomic"
	"time"

	"mercator-hq/ganymede/pkg/config"
)

// Provider holds the active client identity behind an atomic pointer.
// Reload swaps the entire Identity in one store; concurrent readers see
// either the old identity or the new one, never a mixture.
type Provider struct {
	cfg     *config.ClientTLSConfig
	current atomic.Pointer[Identity]
	log     *slog.Logger
}

// NewProvider loads the initial identity and returns a Provider. An
// error here is fatal: startup must abort rather than run without an
// upstream identity.
func NewProvider(cfg *config.ClientTLSConfig, log *slog.Logger) (*Provider, error) {
	if log == nil {
		log = slog.Default()
	}

	id, err := LoadIdentity(cfg)
	if err != nil {
		return nil, err
	}

	p := &Provider{cfg: cfg, log: log}
	p.current.Store(id)
	p.logIdentity(id)

	return p, nil
}

// Current returns the active identity.
func (p *Provider) Current() *Identity {
	return p.current.Load()
}

// TLSConfig returns a fresh client tls.Config for the active identity.
func (p *Provider) TLSConfig() *tls.Config {
	return p.Current().TLSConfig()
}

// Reload re-reads the identity from disk and swaps it in. On failure the
// previous identity stays active and the error is returned for the
// caller to report; a running proxy never loses its identity to a bad
// reload.
func (p *Provider) Reload() error {
	id, err := LoadIdentity(p.cfg)
	if err != nil {
		p.log.Error("identity reload failed, keeping previous identity",
			"error", err,
			"cert_file", p.cfg.CertFile,
		)
		return err
	}

	p.current.Store(id)
	p.log.Info("client identity reloaded", "cert_file", p.cfg.CertFile)
	p.logIdentity(id)

	return nil
}

// logIdentity logs the loaded certificate's subject and expiry, warning
// when expiry is near.
func (p *Provider) logIdentity(id *Identity) {
	leaf := id.Leaf()
	daysUntilExpiry, warning := CheckCertificateExpiration(leaf)

	if warning != "" {
		p.log.Warn("client certificate expiring soon",
			"subject", leaf.Subject.CommonName,
			"expires_in_days", daysUntilExpiry,
			"expires_at", leaf.NotAfter.Format(time.RFC3339),
		)
		return
	}

	p.log.Info("client identity loaded",
		"subject", leaf.Subject.CommonName,
		"issuer", leaf.Issuer.CommonName,
		"expires_in_days", daysUntilExpiry,
		"expires_at", leaf.NotAfter.Format(time.RFC3339),
		"skip_hostname_verify", id.SkipHostnameVerify(),
	)
}
