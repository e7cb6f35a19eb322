package recorder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/ganymede/pkg/traffic"
)

// Config contains configuration for the traffic recorder.
type Config struct {
	// Enabled enables traffic recording.
	Enabled bool

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout is the timeout for writing a record to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// Redact controls whether credential-bearing header values are
	// replaced before records are persisted.
	// Default: true
	Redact bool

	// RedactHeaders lists additional header names to redact on top of
	// the built-in sensitive set. No effect when Redact is false.
	RedactHeaders []string
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
		Redact:       true,
	}
}

// Recorder persists traffic records asynchronously. Enqueueing never
// blocks the request path: when the write buffer is full the record is
// dropped and counted instead.
type Recorder struct {
	storage  traffic.Store
	config   *Config
	redactor *redactor

	recordChan chan item
	wg         sync.WaitGroup
	done       chan struct{}
	dropped    atomic.Int64
	logger     *slog.Logger
}

// item carries one request or one response record through the write
// channel. Exactly one field is set.
type item struct {
	req  *traffic.RequestRecord
	resp *traffic.ResponseRecord
}

// NewRecorder creates a traffic recorder writing to storage and starts
// its background worker.
func NewRecorder(storage traffic.Store, config *Config, logger *slog.Logger) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	var rd *redactor
	if config.Redact {
		rd = newRedactor(config.RedactHeaders)
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		redactor:   rd,
		recordChan: make(chan item, config.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     logger.With("component", "traffic.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("traffic recorder started",
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)

	return r
}

// RecordRequest enqueues a request record for async writing. It returns
// immediately; a full buffer drops the record.
func (r *Recorder) RecordRequest(rec traffic.RequestRecord) {
	if !r.config.Enabled {
		return
	}
	if r.redactor != nil {
		rec.Headers = r.redactor.redact(rec.Headers)
	}
	r.enqueue(item{req: &rec})
}

// RecordResponse enqueues a response record for async writing. It
// returns immediately; a full buffer drops the record.
func (r *Recorder) RecordResponse(rec traffic.ResponseRecord) {
	if !r.config.Enabled {
		return
	}
	if r.redactor != nil {
		rec.Headers = r.redactor.redact(rec.Headers)
	}
	r.enqueue(item{resp: &rec})
}

func (r *Recorder) enqueue(it item) {
	select {
	case r.recordChan <- it:
	case <-r.done:
		// Shutting down, the drain may already have finished.
	default:
		dropped := r.dropped.Add(1)
		if dropped == 1 || dropped%1000 == 0 {
			r.logger.Warn("traffic record buffer full, dropping records",
				"dropped_total", dropped,
				"buffer_capacity", r.config.AsyncBuffer,
			)
		}
	}
}

// Dropped reports how many records were discarded because the write
// buffer was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close drains the buffered records and stops the worker.
func (r *Recorder) Close() error {
	close(r.done)
	r.wg.Wait()

	r.logger.Info("traffic recorder stopped", "dropped_total", r.dropped.Load())
	return nil
}

// worker is the background goroutine that drains the record channel
// and writes to storage.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case it := <-r.recordChan:
			r.writeItem(it)

		case <-r.done:
			// Drain remaining records from the channel before exit.
			for {
				select {
				case it := <-r.recordChan:
					r.writeItem(it)
				default:
					return
				}
			}
		}
	}
}

// writeItem writes a single record to storage. Failures are logged and
// never surface to the request path.
func (r *Recorder) writeItem(it item) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()

	var err error
	switch {
	case it.req != nil:
		err = r.storage.SaveRequest(ctx, *it.req)
	case it.resp != nil:
		err = r.storage.SaveResponse(ctx, *it.resp)
	default:
		return
	}
	if err != nil {
		r.logger.Error("failed to store traffic record", "error", err)
		return
	}

	if duration := time.Since(start); duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow traffic record write",
			"duration_ms", duration.Milliseconds(),
			"threshold_ms", (r.config.WriteTimeout / 2).Milliseconds(),
		)
	}
}
