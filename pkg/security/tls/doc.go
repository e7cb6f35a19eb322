// Package tls manages the proxy's TLS material on both sides of a
// forwarded request.
//
// # Overview
//
// The upstream side is the core: the proxy authenticates to its single
// upstream with a client certificate. The Identity type bundles the
// client certificate chain, private key, and trust roots into an
// immutable value; Provider holds the active Identity behind an atomic
// pointer so reloads swap the whole identity at once and readers never
// observe a half-updated state.
//
//	provider, err := tls.NewProvider(&cfg.ClientTLS)
//	if err != nil {
//	    // fatal at startup: the proxy must not run without its identity
//	}
//	tlsConfig := provider.Current().TLSConfig()
//
// A failed reload keeps the previous identity active and reports the
// error; a failed initial load aborts startup.
//
// # Hostname verification
//
// SkipHostnameVerify relaxes only the hostname-matches-SAN check, for
// self-signed or local test upstreams. Chain-of-trust validation always
// applies: the upstream certificate must still chain to the configured
// trust roots. The toggle is explicitly opt-in and never a default.
//
// # Inbound listener
//
// BuildServerConfig produces the listener-side tls.Config when the
// proxy itself terminates TLS. Inbound clients are not asked for
// certificates; client authentication is the proxy's job on the
// upstream side only.
//
// # Reload
//
// Watcher watches the identity's files through fsnotify and debounces
// bursts of writes (certificate renewal tools typically rewrite several
// files in quick succession) before triggering a reload callback.
package tls
