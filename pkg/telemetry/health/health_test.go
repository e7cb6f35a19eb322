package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/ganymede/pkg/config"
)

func TestChecker_CheckLiveness(t *testing.T) {
	checker := New(0)

	status := checker.CheckLiveness(context.Background())

	if status.Status != "ok" {
		t.Errorf("Status = %q, want %q", status.Status, "ok")
	}
	if status.Timestamp.IsZero() {
		t.Error("Timestamp is zero")
	}
}

func TestChecker_CheckReadiness(t *testing.T) {
	t.Run("no checks registered", func(t *testing.T) {
		checker := New(0)

		status := checker.CheckReadiness(context.Background())
		if status.Status != "ready" {
			t.Errorf("Status = %q, want %q", status.Status, "ready")
		}
	})

	t.Run("all healthy", func(t *testing.T) {
		checker := New(0)
		checker.RegisterCheck("traffic_store", func(ctx context.Context) error { return nil })
		checker.RegisterCheck("audit_log", func(ctx context.Context) error { return nil })

		status := checker.CheckReadiness(context.Background())
		if status.Status != "ready" {
			t.Errorf("Status = %q, want %q", status.Status, "ready")
		}
		if len(status.Checks) != 2 {
			t.Fatalf("got %d checks, want 2", len(status.Checks))
		}
		for name, result := range status.Checks {
			if result.Status != "ok" {
				t.Errorf("check %s status = %q, want %q", name, result.Status, "ok")
			}
		}
	})

	t.Run("one unhealthy degrades", func(t *testing.T) {
		checker := New(0)
		checker.RegisterCheck("traffic_store", func(ctx context.Context) error { return nil })
		checker.RegisterCheck("audit_log", func(ctx context.Context) error {
			return errors.New("database is locked")
		})

		status := checker.CheckReadiness(context.Background())
		if status.Status != "degraded" {
			t.Errorf("Status = %q, want %q", status.Status, "degraded")
		}
		if got := status.Checks["audit_log"].Message; got != "database is locked" {
			t.Errorf("unhealthy message = %q, want %q", got, "database is locked")
		}
		if got := status.Checks["traffic_store"].Status; got != "ok" {
			t.Errorf("healthy check status = %q, want %q", got, "ok")
		}
	})

	t.Run("slow check times out", func(t *testing.T) {
		checker := New(50 * time.Millisecond)
		checker.RegisterCheck("stuck", func(ctx context.Context) error {
			select {
			case <-time.After(5 * time.Second):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		start := time.Now()
		status := checker.CheckReadiness(context.Background())
		elapsed := time.Since(start)

		if status.Status != "degraded" {
			t.Errorf("Status = %q, want %q", status.Status, "degraded")
		}
		if elapsed > 2*time.Second {
			t.Errorf("readiness took %v, want well under the stuck check's sleep", elapsed)
		}
	})

	t.Run("replacing a check", func(t *testing.T) {
		checker := New(0)
		checker.RegisterCheck("dep", func(ctx context.Context) error { return errors.New("down") })
		checker.RegisterCheck("dep", func(ctx context.Context) error { return nil })

		if checker.CheckCount() != 1 {
			t.Errorf("CheckCount() = %d, want 1", checker.CheckCount())
		}
		status := checker.CheckReadiness(context.Background())
		if status.Status != "ready" {
			t.Errorf("Status = %q, want %q", status.Status, "ready")
		}
	})
}

func TestLivenessHandler(t *testing.T) {
	checker := New(0)
	handler := checker.LivenessHandler()

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var status Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if status.Status != "ok" {
		t.Errorf("body status = %q, want %q", status.Status, "ok")
	}
}

func TestLivenessHandler_MethodNotAllowed(t *testing.T) {
	checker := New(0)
	handler := checker.LivenessHandler()

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/health", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestReadinessHandler(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		checker := New(0)
		checker.RegisterCheck("dep", func(ctx context.Context) error { return nil })

		rec := httptest.NewRecorder()
		checker.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("degraded answers 503 with detail", func(t *testing.T) {
		checker := New(0)
		checker.RegisterCheck("dep", func(ctx context.Context) error { return errors.New("gone") })

		rec := httptest.NewRecorder()
		checker.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}

		var status Status
		if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if status.Checks["dep"].Message != "gone" {
			t.Errorf("check message = %q, want %q", status.Checks["dep"].Message, "gone")
		}
	})
}

func TestVersionHandler(t *testing.T) {
	handler := VersionHandler("1.2.3", "abc123", "2026-08-25T00:00:00Z")

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var info VersionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if info.Version != "1.2.3" {
		t.Errorf("Version = %q, want %q", info.Version, "1.2.3")
	}
	if info.Commit != "abc123" {
		t.Errorf("Commit = %q, want %q", info.Commit, "abc123")
	}
	if info.GoVersion == "" {
		t.Error("GoVersion is empty")
	}
}

func TestRegister(t *testing.T) {
	cfg := config.HealthConfig{
		Enabled:       true,
		LivenessPath:  "/health",
		ReadinessPath: "/ready",
		VersionPath:   "/version",
	}

	mux := http.NewServeMux()
	Register(mux, cfg, New(0), "1.0.0", "", "")

	for _, path := range []string{"/health", "/ready", "/version"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestRegister_Disabled(t *testing.T) {
	mux := http.NewServeMux()
	Register(mux, config.HealthConfig{Enabled: false, LivenessPath: "/health"}, New(0), "", "", "")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /health on disabled health = %d, want 404", rec.Code)
	}
}
