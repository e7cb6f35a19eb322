package recorder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"mercator-hq/ganymede/pkg/traffic"
)

type fakeStore struct {
	mu        sync.Mutex
	requests  []traffic.RequestRecord
	responses []traffic.ResponseRecord
	attempts  int
	err       error

	// gate, when set, blocks every save until it is closed.
	gate chan struct{}
}

func (f *fakeStore) SaveRequest(ctx context.Context, rec traffic.RequestRecord) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.err != nil {
		return f.err
	}
	f.requests = append(f.requests, rec)
	return nil
}

func (f *fakeStore) SaveResponse(ctx context.Context, rec traffic.ResponseRecord) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.err != nil {
		return f.err
	}
	f.responses = append(f.responses, rec)
	return nil
}

func (f *fakeStore) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests), len(f.responses)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRequest(id string) traffic.RequestRecord {
	return traffic.RequestRecord{
		ID:         id,
		Timestamp:  time.Now().UTC(),
		Method:     "GET",
		Path:       "/v1/items",
		Headers:    http.Header{"Accept": []string{"application/json"}},
		ClientAddr: "192.0.2.1:1234",
	}
}

func TestRecorder_WritesRecords(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, nil, discardLogger())

	for i := 0; i < 25; i++ {
		rec.RecordRequest(testRequest("req-1"))
		rec.RecordResponse(traffic.ResponseRecord{
			RequestID:  "req-1",
			Timestamp:  time.Now().UTC(),
			StatusCode: 200,
		})
	}

	// Close drains everything still buffered.
	if err := rec.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	reqs, resps := store.counts()
	if reqs != 25 {
		t.Errorf("stored %d requests, want 25", reqs)
	}
	if resps != 25 {
		t.Errorf("stored %d responses, want 25", resps)
	}
	if got := rec.Dropped(); got != 0 {
		t.Errorf("Dropped() = %d, want 0", got)
	}
}

func TestRecorder_RedactsHeaders(t *testing.T) {
	store := &fakeStore{}
	cfg := DefaultConfig()
	cfg.RedactHeaders = []string{"x-internal-token"}
	rec := NewRecorder(store, cfg, discardLogger())

	headers := http.Header{
		"Authorization":    []string{"Bearer secret"},
		"Cookie":           []string{"session=abc"},
		"X-Internal-Token": []string{"t0ps3cret"},
		"Content-Type":     []string{"application/json"},
	}
	req := testRequest("req-1")
	req.Headers = headers
	rec.RecordRequest(req)

	resp := traffic.ResponseRecord{
		RequestID:  "req-1",
		Timestamp:  time.Now().UTC(),
		StatusCode: 200,
		Headers: http.Header{
			"Set-Cookie":   []string{"session=def"},
			"Content-Type": []string{"text/plain"},
		},
	}
	rec.RecordResponse(resp)

	if err := rec.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	if len(store.requests) != 1 || len(store.responses) != 1 {
		t.Fatalf("stored %d requests and %d responses, want 1 and 1",
			len(store.requests), len(store.responses))
	}

	stored := store.requests[0].Headers
	for _, name := range []string{"Authorization", "Cookie", "X-Internal-Token"} {
		if got := stored.Get(name); got != redactedValue {
			t.Errorf("stored %s = %q, want %q", name, got, redactedValue)
		}
	}
	if got := stored.Get("Content-Type"); got != "application/json" {
		t.Errorf("stored Content-Type = %q, want %q", got, "application/json")
	}

	if got := store.responses[0].Headers.Get("Set-Cookie"); got != redactedValue {
		t.Errorf("stored Set-Cookie = %q, want %q", got, redactedValue)
	}

	// The caller's header map must remain untouched.
	if got := headers.Get("Authorization"); got != "Bearer secret" {
		t.Errorf("caller Authorization = %q, want original value", got)
	}
}

func TestRecorder_RedactionDisabled(t *testing.T) {
	store := &fakeStore{}
	cfg := DefaultConfig()
	cfg.Redact = false
	rec := NewRecorder(store, cfg, discardLogger())

	req := testRequest("req-1")
	req.Headers = http.Header{"Authorization": []string{"Bearer secret"}}
	rec.RecordRequest(req)

	if err := rec.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	if len(store.requests) != 1 {
		t.Fatalf("stored %d requests, want 1", len(store.requests))
	}
	if got := store.requests[0].Headers.Get("Authorization"); got != "Bearer secret" {
		t.Errorf("stored Authorization = %q, want verbatim value", got)
	}
}

func TestRecorder_Disabled(t *testing.T) {
	store := &fakeStore{}
	cfg := DefaultConfig()
	cfg.Enabled = false
	rec := NewRecorder(store, cfg, discardLogger())

	rec.RecordRequest(testRequest("req-1"))
	rec.RecordResponse(traffic.ResponseRecord{RequestID: "req-1"})

	if err := rec.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	reqs, resps := store.counts()
	if reqs != 0 || resps != 0 {
		t.Errorf("stored %d requests and %d responses, want 0 and 0", reqs, resps)
	}
	if got := rec.Dropped(); got != 0 {
		t.Errorf("Dropped() = %d, want 0", got)
	}
}

// TestRecorder_DropsWhenBufferFull verifies enqueueing never blocks,
// even with a stalled storage backend.
func TestRecorder_DropsWhenBufferFull(t *testing.T) {
	gate := make(chan struct{})
	store := &fakeStore{gate: gate}

	cfg := DefaultConfig()
	cfg.AsyncBuffer = 1
	rec := NewRecorder(store, cfg, discardLogger())

	// The worker can hold at most one record and the buffer one more,
	// so at least one of three must be dropped.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			rec.RecordRequest(testRequest("req-1"))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RecordRequest blocked on a full buffer")
	}

	if got := rec.Dropped(); got < 1 {
		t.Errorf("Dropped() = %d, want at least 1", got)
	}

	close(gate)
	if err := rec.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	reqs, _ := store.counts()
	if total := int64(reqs) + rec.Dropped(); total != 3 {
		t.Errorf("stored %d + dropped %d = %d, want 3", reqs, rec.Dropped(), total)
	}
}

// TestRecorder_StorageFailuresLogged verifies writes keep flowing after
// a storage error.
func TestRecorder_StorageFailuresLogged(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	rec := NewRecorder(store, nil, discardLogger())

	rec.RecordRequest(testRequest("req-1"))
	rec.RecordRequest(testRequest("req-2"))

	if err := rec.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.attempts != 2 {
		t.Errorf("storage attempts = %d, want 2", store.attempts)
	}
	if len(store.requests) != 0 {
		t.Errorf("stored %d requests, want 0", len(store.requests))
	}
}

func TestRedactor_NilHeaders(t *testing.T) {
	rd := newRedactor(nil)
	if got := rd.redact(nil); got != nil {
		t.Errorf("redact(nil) = %v, want nil", got)
	}
}
