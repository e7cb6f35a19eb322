package recorder

import "net/http"

// redactedValue replaces sensitive header values in stored records.
const redactedValue = "[REDACTED]"

// sensitiveHeaders are always redacted, regardless of configuration.
var sensitiveHeaders = []string{
	"Authorization",
	"Proxy-Authorization",
	"Cookie",
	"Set-Cookie",
	"X-Api-Key",
}

// redactor rewrites sensitive header values before records reach
// storage.
type redactor struct {
	names map[string]struct{}
}

func newRedactor(extra []string) *redactor {
	names := make(map[string]struct{}, len(sensitiveHeaders)+len(extra))
	for _, name := range sensitiveHeaders {
		names[http.CanonicalHeaderKey(name)] = struct{}{}
	}
	for _, name := range extra {
		if name == "" {
			continue
		}
		names[http.CanonicalHeaderKey(name)] = struct{}{}
	}
	return &redactor{names: names}
}

// redact returns a copy of h with sensitive values replaced. The input
// header map is never modified; the handler may still be using it.
func (rd *redactor) redact(h http.Header) http.Header {
	if h == nil {
		return nil
	}
	out := make(http.Header, len(h))
	for name, values := range h {
		if _, sensitive := rd.names[http.CanonicalHeaderKey(name)]; sensitive {
			out[name] = []string{redactedValue}
			continue
		}
		out[name] = append([]string(nil), values...)
	}
	return out
}
