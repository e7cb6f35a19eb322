package types

import (
	"encoding/json"
	"net/http"
	"time"
)

// ErrorResponse is the JSON error body returned for every failure the
// proxy produces itself. Upstream failures pass through untouched; this
// shape only appears when the proxy could not or would not forward.
type ErrorResponse struct {
	// Error contains the machine-readable code and human-readable message.
	Error ErrorDetail `json:"error"`

	// RequestID correlates the response with log and traffic records.
	RequestID string `json:"request_id,omitempty"`

	// Timestamp is when the error response was produced.
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail contains the error code and message.
type ErrorDetail struct {
	// Code is a stable machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable description. Never contains internal
	// detail such as file paths or upstream error strings.
	Message string `json:"message"`
}

// Error code constants. These are stable API surface; log records and
// metrics labels use the lowercase category names instead.
const (
	// CodeRateLimitExceeded indicates token-bucket admission rejected
	// the request (429).
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"

	// CodeRequestTooLarge indicates the request body exceeds the
	// configured maximum (413).
	CodeRequestTooLarge = "REQUEST_TOO_LARGE"

	// CodeConcurrencyLimitExceeded indicates the in-flight request
	// ceiling was reached (503).
	CodeConcurrencyLimitExceeded = "CONCURRENCY_LIMIT_EXCEEDED"

	// CodeUpstreamConnectFailed indicates DNS, TCP, or TLS-handshake
	// failure towards the upstream (502).
	CodeUpstreamConnectFailed = "UPSTREAM_CONNECT_FAILED"

	// CodeUpstreamTimeout indicates the end-to-end deadline expired
	// before the upstream response completed (504).
	CodeUpstreamTimeout = "UPSTREAM_TIMEOUT"

	// CodeUpstreamProtocolError indicates the upstream sent a response
	// the proxy could not parse (502).
	CodeUpstreamProtocolError = "UPSTREAM_PROTOCOL_ERROR"

	// CodeValidationFailed indicates a rejected management-API payload (400).
	CodeValidationFailed = "VALIDATION_FAILED"

	// CodeNotFound indicates an unknown management resource (404).
	CodeNotFound = "NOT_FOUND"

	// CodeInternalError indicates an unexpected server-side failure (500).
	CodeInternalError = "INTERNAL_ERROR"
)

// NewErrorResponse creates an error response with the current timestamp.
func NewErrorResponse(code, message, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Error:     ErrorDetail{Code: code, Message: message},
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	}
}

// WriteError writes an error response as JSON with the given status.
func WriteError(w http.ResponseWriter, status int, code, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(NewErrorResponse(code, message, requestID))
}
