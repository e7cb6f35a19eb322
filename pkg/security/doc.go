/*
Package security groups the transport security packages for Ganymede.

The tls subpackage owns the proxy's certificate material on both sides
of a forwarded request: the client identity presented to the upstream
(loading, validation, atomic swap on reload, fsnotify-driven file
watching) and the optional listener-side TLS configuration.

# Client identity

Load and hold the identity the proxy authenticates with:

	provider, err := tls.NewProvider(&cfg.ClientTLS, logger)
	if err != nil {
		// fatal at startup: the proxy must not run without its identity
	}
	tlsConfig := provider.Current().TLSConfig()

# Certificate inspection

Helpers shared by the management API and the certs CLI:

	cert, err := tls.ParsePEMCertificate(pemBytes)
	info := tls.ExtractCertificateInfo(cert)
	days, warning := tls.CheckCertificateExpiration(cert)
*/
package security
