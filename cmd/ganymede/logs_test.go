package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/ganymede/pkg/traffic"
	"mercator-hq/ganymede/pkg/traffic/storage"
)

// seedTrafficDB builds a traffic database with three recent requests
// (one of them without a recorded outcome) and one old enough to prune.
func seedTrafficDB(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "traffic.db")
	store, err := storage.New(path, storeLogger())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	save := func(req traffic.RequestRecord, resp *traffic.ResponseRecord) {
		t.Helper()
		if err := store.SaveRequest(ctx, req); err != nil {
			t.Fatalf("failed to save request: %v", err)
		}
		if resp != nil {
			if err := store.SaveResponse(ctx, *resp); err != nil {
				t.Fatalf("failed to save response: %v", err)
			}
		}
	}

	save(traffic.RequestRecord{
		ID:         "aaaaaaaa-0001",
		Timestamp:  now.Add(-2 * time.Minute),
		Method:     "GET",
		Path:       "/v1/things",
		Headers:    http.Header{"Accept": {"application/json"}},
		ClientAddr: "10.0.0.1:52000",
	}, &traffic.ResponseRecord{
		RequestID:  "aaaaaaaa-0001",
		Timestamp:  now.Add(-2 * time.Minute),
		StatusCode: 200,
		BodySize:   512,
		DurationMS: 12,
	})

	save(traffic.RequestRecord{
		ID:         "bbbbbbbb-0002",
		Timestamp:  now.Add(-time.Minute),
		Method:     "POST",
		Path:       "/v1/things",
		ClientAddr: "10.0.0.2:52001",
	}, &traffic.ResponseRecord{
		RequestID:     "bbbbbbbb-0002",
		Timestamp:     now.Add(-time.Minute),
		StatusCode:    429,
		DurationMS:    1,
		ErrorCategory: "rate_limit_exceeded",
	})

	// No outcome recorded: the client disconnected.
	save(traffic.RequestRecord{
		ID:         "cccccccc-0003",
		Timestamp:  now.Add(-30 * time.Second),
		Method:     "GET",
		Path:       "/v1/slow",
		ClientAddr: "10.0.0.3:52002",
	}, nil)

	save(traffic.RequestRecord{
		ID:         "dddddddd-0004",
		Timestamp:  now.AddDate(0, 0, -40),
		Method:     "GET",
		Path:       "/v1/ancient",
		ClientAddr: "10.0.0.4:52003",
	}, &traffic.ResponseRecord{
		RequestID:  "dddddddd-0004",
		Timestamp:  now.AddDate(0, 0, -40),
		StatusCode: 200,
		DurationMS: 8,
	})

	return path
}

func resetSearchFlags() {
	searchFlags.method = ""
	searchFlags.status = 0
	searchFlags.since = 0
	searchFlags.from = ""
	searchFlags.to = ""
	searchFlags.limit = 50
	searchFlags.format = "table"
}

func TestLogsSearchTable(t *testing.T) {
	logsDB = seedTrafficDB(t)
	defer func() { logsDB = "" }()
	resetSearchFlags()

	var buf bytes.Buffer
	logsSearchCmd.SetOut(&buf)
	defer logsSearchCmd.SetOut(nil)

	if err := searchTraffic(logsSearchCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"METHOD", "aaaaaaaa", "bbbbbbbb", "429", "4 record(s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	// The request without an outcome renders placeholder columns.
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "cccccccc") && !strings.Contains(line, " - ") {
			t.Errorf("missing outcome not rendered as placeholder: %q", line)
		}
	}
}

func TestLogsSearchMethodFilter(t *testing.T) {
	logsDB = seedTrafficDB(t)
	defer func() { logsDB = "" }()
	resetSearchFlags()
	searchFlags.method = "post"

	var buf bytes.Buffer
	logsSearchCmd.SetOut(&buf)
	defer logsSearchCmd.SetOut(nil)

	if err := searchTraffic(logsSearchCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "bbbbbbbb") {
		t.Errorf("output missing the POST request:\n%s", out)
	}
	if strings.Contains(out, "aaaaaaaa") {
		t.Errorf("method filter leaked a GET request:\n%s", out)
	}
	if !strings.Contains(out, "1 record(s)") {
		t.Errorf("output missing record count:\n%s", out)
	}
}

func TestLogsSearchStatusFilter(t *testing.T) {
	logsDB = seedTrafficDB(t)
	defer func() { logsDB = "" }()
	resetSearchFlags()
	searchFlags.status = 429

	var buf bytes.Buffer
	logsSearchCmd.SetOut(&buf)
	defer logsSearchCmd.SetOut(nil)

	if err := searchTraffic(logsSearchCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "bbbbbbbb") || strings.Contains(out, "dddddddd") {
		t.Errorf("status filter returned wrong rows:\n%s", out)
	}
}

func TestLogsSearchJSON(t *testing.T) {
	logsDB = seedTrafficDB(t)
	defer func() { logsDB = "" }()
	resetSearchFlags()
	searchFlags.format = "json"

	var buf bytes.Buffer
	logsSearchCmd.SetOut(&buf)
	defer logsSearchCmd.SetOut(nil)

	if err := searchTraffic(logsSearchCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var entries []traffic.Entry
	if err := json.Unmarshal(buf.Bytes(), &entries); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if len(entries) != 4 {
		t.Errorf("len(entries) = %d, want 4", len(entries))
	}
}

func TestLogsSearchRejectsTextFormat(t *testing.T) {
	resetSearchFlags()
	searchFlags.format = "text"

	if err := searchTraffic(logsSearchCmd, nil); err == nil {
		t.Fatal("expected error for text format")
	}
}

func TestLogsSearchMissingDB(t *testing.T) {
	logsDB = filepath.Join(t.TempDir(), "nonexistent.db")
	defer func() { logsDB = "" }()
	resetSearchFlags()

	err := searchTraffic(logsSearchCmd, nil)
	if err == nil {
		t.Fatal("expected error for missing database")
	}
	if !strings.Contains(err.Error(), "traffic database not found") {
		t.Errorf("error = %q, want mention of the missing database", err)
	}
}

func TestLogsStats(t *testing.T) {
	logsDB = seedTrafficDB(t)
	defer func() { logsDB = "" }()
	statsFlags.format = "text"

	var buf bytes.Buffer
	logsStatsCmd.SetOut(&buf)
	defer logsStatsCmd.SetOut(nil)

	if err := showTrafficStats(logsStatsCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Traffic Statistics:", "Total Requests: 4", "Total Responses: 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLogsStatsJSON(t *testing.T) {
	logsDB = seedTrafficDB(t)
	defer func() { logsDB = "" }()
	statsFlags.format = "json"

	var buf bytes.Buffer
	logsStatsCmd.SetOut(&buf)
	defer logsStatsCmd.SetOut(nil)

	if err := showTrafficStats(logsStatsCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var stats traffic.Stats
	if err := json.Unmarshal(buf.Bytes(), &stats); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if stats.TotalRequests != 4 {
		t.Errorf("TotalRequests = %d, want 4", stats.TotalRequests)
	}
}

func TestLogsPrune(t *testing.T) {
	logsDB = seedTrafficDB(t)
	defer func() { logsDB = "" }()
	pruneFlags.days = 30
	pruneFlags.vacuum = false

	var buf bytes.Buffer
	logsPruneCmd.SetOut(&buf)
	defer logsPruneCmd.SetOut(nil)

	if err := pruneTraffic(logsPruneCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "Pruned 1 record(s) older than 30 days") {
		t.Errorf("output missing prune summary:\n%s", buf.String())
	}
}

func TestLogsPruneVacuum(t *testing.T) {
	logsDB = seedTrafficDB(t)
	defer func() { logsDB = "" }()
	pruneFlags.days = 30
	pruneFlags.vacuum = true

	var buf bytes.Buffer
	logsPruneCmd.SetOut(&buf)
	defer logsPruneCmd.SetOut(nil)

	if err := pruneTraffic(logsPruneCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "Database compacted") {
		t.Errorf("output missing vacuum confirmation:\n%s", buf.String())
	}
}

func TestLogsPruneInvalidDays(t *testing.T) {
	logsDB = seedTrafficDB(t)
	defer func() { logsDB = "" }()
	pruneFlags.days = -1
	pruneFlags.vacuum = false

	if err := pruneTraffic(logsPruneCmd, nil); err == nil {
		t.Fatal("expected error for negative retention window")
	}
}
