// Package proxy implements the request-forwarding pipeline: admission
// control, the mTLS upstream transport, hop-by-hop header filtering,
// body streaming under a single end-to-end deadline, and error
// classification.
//
// The pipeline for one request:
//
//	inbound → Handler (rate limit → size → concurrency)
//	        → Forwarder (filter headers, mTLS dial, send, stream back)
//	        → traffic records + metrics
//
// Admission rejections respond 429 (rate), 413 (size), or 503
// (concurrency) before any upstream work. Upstream failures respond 502
// (connect or protocol) or 504 (deadline); a client that disconnects
// mid-request is logged but gets nothing, there being no one left to
// respond to.
//
// The Forwarder performs exactly one upstream attempt per request.
// There is no retry or fallback: with a single fixed upstream, the
// caller-visible failure is the correct signal. A retry layer, if one
// ever exists, wraps this package rather than living inside it.
//
// Connection reuse comes from the transport's idle pool. Identity
// reloads call CloseIdleConnections so the next handshake presents the
// new certificate; connections already established keep their session.
package proxy
