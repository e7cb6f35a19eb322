package traffic

import (
	"net/http"
	"time"
)

// RequestRecord captures the metadata of one inbound request. Records
// are written before admission, so rejected requests appear in the
// traffic store alongside forwarded ones.
type RequestRecord struct {
	// ID is the request ID assigned by the middleware, shared with the
	// matching ResponseRecord.
	ID string `json:"id"`

	// Timestamp is when the request arrived.
	Timestamp time.Time `json:"timestamp"`

	// Method is the HTTP method.
	Method string `json:"method"`

	// Path is the inbound request path, before upstream base joining.
	Path string `json:"path"`

	// Headers are the inbound headers. Sensitive values are redacted
	// before persistence.
	Headers http.Header `json:"headers"`

	// BodySize is the declared request body size in bytes (zero when
	// the length is unknown, e.g. chunked uploads).
	BodySize int64 `json:"body_size"`

	// ClientAddr is the remote address of the caller.
	ClientAddr string `json:"client_addr"`
}

// ResponseRecord captures the outcome of one request. Every
// RequestRecord gets exactly one ResponseRecord, including rejections
// and upstream failures.
type ResponseRecord struct {
	// RequestID matches the ID of the RequestRecord.
	RequestID string `json:"request_id"`

	// Timestamp is when the outcome was known.
	Timestamp time.Time `json:"timestamp"`

	// StatusCode is the HTTP status sent to the caller. Zero when no
	// status could be sent (client disconnected).
	StatusCode int `json:"status_code"`

	// Headers are the response headers as sent to the caller.
	Headers http.Header `json:"headers"`

	// BodySize is the number of response body bytes written.
	BodySize int64 `json:"body_size"`

	// DurationMS is the total handling time in milliseconds.
	DurationMS int64 `json:"duration_ms"`

	// ErrorCategory labels failures (rate_limit_exceeded,
	// upstream_timeout, ...). Empty on success.
	ErrorCategory string `json:"error_category,omitempty"`
}
