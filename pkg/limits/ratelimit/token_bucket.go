package ratelimit

import (
	"math"
	"sync"
	"time"
)

// TokenBucket implements the token bucket rate limiting algorithm.
//
// The bucket starts full. Tokens refill continuously at refillRate per
// second, computed from the wall-clock time elapsed since the previous
// check, and the total is capped at the capacity. Each admitted request
// consumes exactly one token; a request that finds less than one token
// is rejected and consumes nothing.
//
// # Thread Safety
//
// All state (token count and refill timestamp) is read and updated under
// a single mutex, so concurrent connections observe a consistent bucket.
type TokenBucket struct {
	capacity   float64 // maximum tokens in the bucket (burst size)
	tokens     float64 // current available tokens, fractional
	refillRate float64 // tokens added per second
	lastRefill time.Time
	mu         sync.Mutex

	// now is the clock source, replaceable in tests.
	now func() time.Time
}

// NewTokenBucket creates a token bucket with the given burst capacity and
// refill rate in tokens per second. The bucket starts full. Capacity and
// rate must be positive; configuration validation enforces this before a
// bucket is ever constructed.
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	tb := &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: refillRate,
		now:        time.Now,
	}
	tb.lastRefill = tb.now()
	return tb
}

// TryAcquire attempts to consume one token. It returns true and decrements
// the bucket when at least one token is available after refill, false
// otherwise. Rejection is immediate; there is no queuing.
func (tb *TokenBucket) TryAcquire() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// Remaining returns the number of whole tokens currently available after
// refill.
func (tb *TokenBucket) Remaining() int64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	return int64(math.Floor(tb.tokens))
}

// Capacity returns the bucket's burst capacity.
func (tb *TokenBucket) Capacity() int64 {
	return int64(tb.capacity)
}

// RetryAfter returns how long until one token will be available. It
// returns 0 when a token is available now. The answer is advisory: other
// callers may drain the bucket in the meantime.
func (tb *TokenBucket) RetryAfter() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	if tb.tokens >= 1 {
		return 0
	}
	seconds := (1 - tb.tokens) / tb.refillRate
	return time.Duration(seconds * float64(time.Second))
}

// Reset refills the bucket to capacity.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = tb.now()
}

// refillLocked adds elapsed*rate tokens, capped at capacity. Caller must
// hold the mutex. Elapsed time is clamped at zero so that a clock stepping
// backwards never produces negative token growth; in that case the refill
// timestamp is left alone and refill resumes once the clock passes it
// again.
func (tb *TokenBucket) refillLocked() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill)

	if elapsed <= 0 {
		return
	}

	tb.tokens += elapsed.Seconds() * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}
