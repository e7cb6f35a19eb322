package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"mercator-hq/ganymede/pkg/proxy/types"
)

// ErrorCategory labels a forwarding outcome for traffic records, logs,
// and metrics. Categories are lowercase snake case; the client-facing
// error codes in pkg/proxy/types are their uppercase counterparts.
type ErrorCategory string

const (
	// CategoryNone marks a successfully forwarded request.
	CategoryNone ErrorCategory = ""

	// CategoryRateLimitExceeded marks token-bucket rejection.
	CategoryRateLimitExceeded ErrorCategory = "rate_limit_exceeded"

	// CategoryRequestTooLarge marks a body over the configured maximum.
	CategoryRequestTooLarge ErrorCategory = "request_too_large"

	// CategoryConcurrencyLimitExceeded marks in-flight ceiling rejection.
	CategoryConcurrencyLimitExceeded ErrorCategory = "concurrency_limit_exceeded"

	// CategoryUpstreamConnectFailed marks DNS, TCP, or TLS-handshake
	// failure, including upstream certificate validation failure.
	CategoryUpstreamConnectFailed ErrorCategory = "upstream_connect_failed"

	// CategoryUpstreamTimeout marks expiry of the end-to-end deadline.
	CategoryUpstreamTimeout ErrorCategory = "upstream_timeout"

	// CategoryUpstreamProtocolError marks an unparsable upstream response.
	CategoryUpstreamProtocolError ErrorCategory = "upstream_protocol_error"

	// CategoryClientDisconnected marks the caller going away mid-request.
	// Not a server fault; logged informationally, no status sent.
	CategoryClientDisconnected ErrorCategory = "client_disconnected"
)

// RateLimitError reports token-bucket rejection at admission.
type RateLimitError struct {
	RetryAfter float64 // seconds until a token is available
}

func (e *RateLimitError) Error() string {
	return "rate limit exceeded"
}

// RequestTooLargeError reports a request body over the configured limit,
// detected either from the declared Content-Length or mid-stream.
type RequestTooLargeError struct {
	Limit int64
}

func (e *RequestTooLargeError) Error() string {
	return fmt.Sprintf("request body exceeds the %d byte limit", e.Limit)
}

// ConcurrencyLimitError reports the in-flight request ceiling being hit.
type ConcurrencyLimitError struct {
	Limit int64
}

func (e *ConcurrencyLimitError) Error() string {
	return fmt.Sprintf("concurrent request limit of %d reached", e.Limit)
}

// ConnectError reports a failure to establish the upstream connection:
// DNS resolution, TCP dial, or the mTLS handshake (including upstream
// certificate validation). Raised inside the transport's dial so it
// stays distinguishable from protocol errors after the connection stood.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("upstream connect to %s failed: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// classifyForwardError maps a round-trip failure to its category, HTTP
// status, and client-facing code/message. reqCtx is the inbound
// request's own context; fwdCtx carries the end-to-end deadline.
//
// Order matters: a dial that dies because the overall deadline expired
// is a timeout, not a connect failure; a request aborted because the
// client went away is neither.
func classifyForwardError(reqCtx, fwdCtx context.Context, err error) (ErrorCategory, int, string, string) {
	var tooLarge *RequestTooLargeError
	if errors.As(err, &tooLarge) {
		return CategoryRequestTooLarge, http.StatusRequestEntityTooLarge,
			types.CodeRequestTooLarge, "request body too large"
	}

	if errors.Is(reqCtx.Err(), context.Canceled) {
		return CategoryClientDisconnected, 0, "", ""
	}

	if errors.Is(fwdCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryUpstreamTimeout, http.StatusGatewayTimeout,
			types.CodeUpstreamTimeout, "upstream request timed out"
	}

	var connErr *ConnectError
	if errors.As(err, &connErr) {
		return CategoryUpstreamConnectFailed, http.StatusBadGateway,
			types.CodeUpstreamConnectFailed, "failed to connect to upstream"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryUpstreamTimeout, http.StatusGatewayTimeout,
			types.CodeUpstreamTimeout, "upstream request timed out"
	}

	return CategoryUpstreamProtocolError, http.StatusBadGateway,
		types.CodeUpstreamProtocolError, "upstream returned an invalid response"
}
