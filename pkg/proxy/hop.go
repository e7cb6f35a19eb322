package proxy

import (
	"net/http"
	"strings"
)

// hopByHopHeaders is the canonical hop-by-hop set from RFC 7230 §6.1.
// These are connection-level headers and must never cross a proxy hop.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

// IsHopByHopHeader reports whether name is in the static hop-by-hop set.
// The check is case-insensitive.
func IsHopByHopHeader(name string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}

// connectionTokens returns the header names listed in Connection header
// values. Per HTTP semantics, "Connection: X" makes header X hop-by-hop
// for this hop even when X is not in the static set.
func connectionTokens(h http.Header) []string {
	var tokens []string
	for _, value := range h.Values("Connection") {
		for _, token := range strings.Split(value, ",") {
			token = strings.TrimSpace(token)
			if token != "" {
				tokens = append(tokens, token)
			}
		}
	}
	return tokens
}

// StripHopByHopHeaders removes the static hop-by-hop set plus every
// header named in a Connection header value, in place. Used on both the
// outbound request and the inbound response.
func StripHopByHopHeaders(h http.Header) {
	// Collect Connection-named tokens before deleting Connection itself.
	for _, token := range connectionTokens(h) {
		h.Del(token)
	}
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
}
