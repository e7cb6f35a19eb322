package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"mercator-hq/ganymede/pkg/config"
)

// CertificateNotFoundError reports a certificate, key, or CA file that
// does not exist or cannot be read.
type CertificateNotFoundError struct {
	Path string
	Err  error
}

func (e *CertificateNotFoundError) Error() string {
	return fmt.Sprintf("certificate file not found: %s", e.Path)
}

func (e *CertificateNotFoundError) Unwrap() error { return e.Err }

// InvalidCertificateError reports certificate material that exists but
// cannot be used: unparsable PEM, a key that does not match the
// certificate, or an expired certificate.
type InvalidCertificateError struct {
	Path   string
	Reason string
	Err    error
}

func (e *InvalidCertificateError) Error() string {
	return fmt.Sprintf("invalid certificate %s: %s", e.Path, e.Reason)
}

func (e *InvalidCertificateError) Unwrap() error { return e.Err }

// Identity is the proxy's client-side TLS identity for the upstream
// connection: certificate chain, private key, and trust roots. An
// Identity is immutable after construction; reloads build a new one.
type Identity struct {
	cert               tls.Certificate
	leaf               *x509.Certificate
	rootCAs            *x509.CertPool
	skipHostnameVerify bool
	loadedAt           time.Time
}

// LoadIdentity reads the client certificate, key, and optional CA bundle
// from disk and assembles an Identity.
//
// Trust roots default to the platform's root store; a configured CA file
// is appended on top of the platform roots rather than replacing them,
// so a private upstream CA and public upstreams can coexist.
func LoadIdentity(cfg *config.ClientTLSConfig) (*Identity, error) {
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

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, &InvalidCertificateError{
			Path:   cfg.CertFile,
			Reason: "failed to parse leaf certificate",
			Err:    err,
		}
	}

	if err := ValidateX509Certificate(leaf); err != nil {
		return nil, &InvalidCertificateError{
			Path:   cfg.CertFile,
			Reason: err.Error(),
			Err:    err,
		}
	}

	roots, err := x509.SystemCertPool()
	if err != nil {
		roots = x509.NewCertPool()
	}

	if cfg.CAFile != "" {
		caPEM, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, &CertificateNotFoundError{Path: cfg.CAFile, Err: err}
		}
		if !roots.AppendCertsFromPEM(caPEM) {
			return nil, &InvalidCertificateError{
				Path:   cfg.CAFile,
				Reason: "no certificates found in CA bundle",
			}
		}
	}

	return &Identity{
		cert:               cert,
		leaf:               leaf,
		rootCAs:            roots,
		skipHostnameVerify: cfg.SkipHostnameVerify,
		loadedAt:           time.Now(),
	}, nil
}

// TLSConfig returns a fresh client tls.Config carrying this identity.
// Each call clones; callers may mutate their copy (e.g. ServerName)
// without affecting other connections.
func (id *Identity) TLSConfig() *tls.Config {
	cfg := &tls.Config{
		Certificates: []tls.Certificate{id.cert},
		RootCAs:      id.rootCAs,
		MinVersion:   tls.VersionTLS12,
	}

	if id.skipHostnameVerify {
		// InsecureSkipVerify disables the standard verification entirely,
		// so chain validation is reinstated through VerifyPeerCertificate.
		// Only the hostname-matches-SAN check is actually skipped.
		cfg.InsecureSkipVerify = true
		cfg.VerifyPeerCertificate = id.verifyChainOnly
	}

	return cfg
}

// verifyChainOnly validates the upstream's certificate chain against the
// identity's trust roots without checking the hostname.
func (id *Identity) verifyChainOnly(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return errors.New("upstream presented no certificate")
	}

	certs := make([]*x509.Certificate, 0, len(rawCerts))
	for _, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return fmt.Errorf("failed to parse upstream certificate: %w", err)
		}
		certs = append(certs, cert)
	}

	opts := x509.VerifyOptions{
		Roots:         id.rootCAs,
		Intermediates: x509.NewCertPool(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, cert := range certs[1:] {
		opts.Intermediates.AddCert(cert)
	}

	if _, err := certs[0].Verify(opts); err != nil {
		return fmt.Errorf("upstream certificate chain validation failed: %w", err)
	}
	return nil
}

// Leaf returns the parsed leaf certificate.
func (id *Identity) Leaf() *x509.Certificate { return id.leaf }

// SkipHostnameVerify reports whether hostname verification is disabled
// for this identity.
func (id *Identity) SkipHostnameVerify() bool { return id.skipHostnameVerify }

// LoadedAt returns when this identity was read from disk.
func (id *Identity) LoadedAt() time.Time { return id.loadedAt }
