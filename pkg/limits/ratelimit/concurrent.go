package ratelimit

import (
	"sync/atomic"
)

// ConcurrentLimiter caps the number of simultaneous in-flight requests.
//
// It is a lock-free counting semaphore: Acquire atomically increments the
// in-flight count and backs out if the cap is exceeded. A rejection here
// is distinct from a rate-limit rejection; callers surface it as 503
// rather than 429.
type ConcurrentLimiter struct {
	limit   atomic.Int64
	current atomic.Int64
}

// NewConcurrentLimiter creates a limiter allowing at most limit
// simultaneous requests.
func NewConcurrentLimiter(limit int) *ConcurrentLimiter {
	cl := &ConcurrentLimiter{}
	cl.limit.Store(int64(limit))
	return cl
}

// Acquire attempts to take an in-flight slot. On success the caller must
// pair it with Release:
//
//	if limiter.Acquire() {
//	    defer limiter.Release()
//	    // forward request
//	}
func (cl *ConcurrentLimiter) Acquire() bool {
	if cl.current.Add(1) > cl.limit.Load() {
		cl.current.Add(-1)
		return false
	}
	return true
}

// Release returns an in-flight slot. It must be called exactly once per
// successful Acquire.
func (cl *ConcurrentLimiter) Release() {
	cl.current.Add(-1)
}

// InFlight returns the current number of in-flight requests.
func (cl *ConcurrentLimiter) InFlight() int64 {
	return cl.current.Load()
}

// SetLimit changes the cap at runtime. Requests already in flight above
// a lowered cap run to completion; only new acquisitions see the new
// value.
func (cl *ConcurrentLimiter) SetLimit(limit int) {
	cl.limit.Store(int64(limit))
}

// Limit returns the configured cap.
func (cl *ConcurrentLimiter) Limit() int64 {
	return cl.limit.Load()
}

// Remaining returns the number of free slots.
func (cl *ConcurrentLimiter) Remaining() int64 {
	remaining := cl.limit.Load() - cl.current.Load()
	if remaining < 0 {
		return 0
	}
	return remaining
}
