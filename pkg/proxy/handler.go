package proxy

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/ganymede/pkg/limits/ratelimit"
	"mercator-hq/ganymede/pkg/proxy/middleware"
	"mercator-hq/ganymede/pkg/proxy/types"
	"mercator-hq/ganymede/pkg/traffic"
)

// Recorder receives traffic records from the forwarding path.
// Implementations must never block; the recorder in pkg/traffic drops
// on overflow rather than stalling a request.
type Recorder interface {
	RecordRequest(traffic.RequestRecord)
	RecordResponse(traffic.ResponseRecord)
}

// Observer receives forwarding outcomes for the metrics subsystem.
type Observer interface {
	ObserveRequest(method string, status int, category string, duration time.Duration, bytesIn, bytesOut int64)
	ObserveRejection(category string)
	InFlightInc()
	InFlightDec()
}

// HandlerConfig carries the handler's collaborators. Recorder and
// Metrics may be nil when the respective subsystem is disabled.
type HandlerConfig struct {
	RateLimiter *ratelimit.TokenBucket
	Concurrency *ratelimit.ConcurrentLimiter
	Forwarder   *Forwarder
	Recorder    Recorder
	Metrics     Observer
	Logger      *slog.Logger
}

// Handler is the proxy-traffic HTTP handler: admission control in
// front, the forwarder behind, traffic records and metrics around both.
//
// Admission order is fixed: rate limit, then declared body size, then
// concurrency. A rate-limited request must not consume a concurrency
// slot, and an oversized request must not consume either.
type Handler struct {
	rate        *ratelimit.TokenBucket
	concurrency *ratelimit.ConcurrentLimiter
	forwarder   *Forwarder
	recorder    Recorder
	metrics     Observer
	log         *slog.Logger
}

// NewHandler builds the forwarding handler.
func NewHandler(cfg HandlerConfig) *Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		rate:        cfg.RateLimiter,
		concurrency: cfg.Concurrency,
		forwarder:   cfg.Forwarder,
		recorder:    cfg.Recorder,
		metrics:     cfg.Metrics,
		log:         log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	start := time.Now()

	h.recordRequest(r, requestID, start)

	if !h.rate.TryAcquire() {
		w.Header().Set("Retry-After", retryAfterSeconds(h.rate.RetryAfter()))
		h.reject(w, r, requestID, start, http.StatusTooManyRequests,
			types.CodeRateLimitExceeded, "rate limit exceeded", CategoryRateLimitExceeded)
		return
	}

	if max := h.forwarder.MaxBodyBytes(); max > 0 && r.ContentLength > max {
		h.reject(w, r, requestID, start, http.StatusRequestEntityTooLarge,
			types.CodeRequestTooLarge, "request body too large", CategoryRequestTooLarge)
		return
	}

	if !h.concurrency.Acquire() {
		h.reject(w, r, requestID, start, http.StatusServiceUnavailable,
			types.CodeConcurrencyLimitExceeded, "server is at capacity", CategoryConcurrencyLimitExceeded)
		return
	}
	defer h.concurrency.Release()

	if h.metrics != nil {
		h.metrics.InFlightInc()
		defer h.metrics.InFlightDec()
	}

	res := h.forwarder.Forward(w, r)

	duration := time.Since(start)
	h.recordResponse(w, requestID, res.Status, res.BytesOut, duration, res.Category)
	if h.metrics != nil {
		h.metrics.ObserveRequest(r.Method, res.Status, string(res.Category), duration, res.BytesIn, res.BytesOut)
	}
}

// reject writes an admission failure and records it. No upstream work
// has happened at this point.
func (h *Handler) reject(w http.ResponseWriter, r *http.Request, requestID string, start time.Time, status int, code, message string, category ErrorCategory) {
	h.log.Warn("request rejected",
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
		"category", string(category),
	)
	if h.metrics != nil {
		h.metrics.ObserveRejection(string(category))
	}

	types.WriteError(w, status, code, message, requestID)
	h.recordResponse(w, requestID, status, 0, time.Since(start), category)
}

func (h *Handler) recordRequest(r *http.Request, requestID string, ts time.Time) {
	if h.recorder == nil {
		return
	}

	bodySize := r.ContentLength
	if bodySize < 0 {
		bodySize = 0
	}

	h.recorder.RecordRequest(traffic.RequestRecord{
		ID:         requestID,
		Timestamp:  ts,
		Method:     r.Method,
		Path:       r.URL.Path,
		Headers:    r.Header.Clone(),
		BodySize:   bodySize,
		ClientAddr: r.RemoteAddr,
	})
}

func (h *Handler) recordResponse(w http.ResponseWriter, requestID string, status int, bodySize int64, duration time.Duration, category ErrorCategory) {
	if h.recorder == nil {
		return
	}

	h.recorder.RecordResponse(traffic.ResponseRecord{
		RequestID:     requestID,
		Timestamp:     time.Now(),
		StatusCode:    status,
		Headers:       w.Header().Clone(),
		BodySize:      bodySize,
		DurationMS:    duration.Milliseconds(),
		ErrorCategory: string(category),
	})
}

// retryAfterSeconds renders a Retry-After value, rounded up so clients
// never retry before a token exists.
func retryAfterSeconds(d time.Duration) string {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
