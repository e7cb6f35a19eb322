// Package ratelimit provides admission control for the forwarding path.
//
// # Overview
//
// Two limiters guard the proxy:
//
//   - TokenBucket: request-rate limiting with continuous refill
//   - ConcurrentLimiter: a counting semaphore for in-flight requests
//
// # Token Bucket
//
// The token bucket admits bursts up to its capacity while holding the
// long-term rate at the configured refill rate. Refill is continuous:
// every admission check adds elapsed*rate tokens, so fractional tokens
// accumulate between checks instead of arriving in whole-second steps.
//
//	bucket := ratelimit.NewTokenBucket(200, 100) // burst 200, 100 req/s
//	if bucket.TryAcquire() {
//	    // admitted
//	} else {
//	    // rejected, surface as 429
//	}
//
// A rejected request consumes nothing; only admissions take a token.
//
// # Concurrent Limiter
//
//	limiter := ratelimit.NewConcurrentLimiter(100)
//	if limiter.Acquire() {
//	    defer limiter.Release()
//	    // forward request
//	} else {
//	    // reject, surface as 503
//	}
//
// # Thread Safety
//
// Both limiters are safe for concurrent use. The token bucket takes a
// single short mutex per check with no I/O inside the critical section;
// the concurrent limiter is lock-free.
package ratelimit
