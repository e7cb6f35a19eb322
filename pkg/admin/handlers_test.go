package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/ganymede/internal/certtest"
	"mercator-hq/ganymede/pkg/audit"
	"mercator-hq/ganymede/pkg/traffic"
)

type fakeTraffic struct {
	entries   []traffic.Entry
	stats     traffic.Stats
	searchErr error
	statsErr  error
	lastQuery traffic.Query
}

func (f *fakeTraffic) Search(ctx context.Context, q traffic.Query) ([]traffic.Entry, error) {
	f.lastQuery = q
	return f.entries, f.searchErr
}

func (f *fakeTraffic) Stats(ctx context.Context) (traffic.Stats, error) {
	return f.stats, f.statsErr
}

type fakeAudit struct {
	recorded  []audit.Event
	events    []audit.Event
	stats     audit.Stats
	recordErr error
	recentErr error
	statsErr  error
}

func (f *fakeAudit) Record(ctx context.Context, ev audit.Event) error {
	f.recorded = append(f.recorded, ev)
	return f.recordErr
}

func (f *fakeAudit) Recent(ctx context.Context, limit int) ([]audit.Event, error) {
	return f.events, f.recentErr
}

func (f *fakeAudit) Stats(ctx context.Context) (audit.Stats, error) {
	return f.stats, f.statsErr
}

func newTestHandler(t *testing.T, cfg HandlerConfig) *Handler {
	t.Helper()

	if cfg.Manager == nil {
		cfg.Manager = newTestManager(t, ManagerConfig{})
	}
	if cfg.Version == "" {
		cfg.Version = "1.2.3"
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	return NewHandler(cfg)
}

func doRequest(h *Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestHandler_Pages(t *testing.T) {
	h := newTestHandler(t, HandlerConfig{})

	pages := []string{"/ui", "/ui/", "/ui/dashboard", "/ui/logs", "/ui/config", "/ui/audit"}
	for _, path := range pages {
		t.Run(path, func(t *testing.T) {
			w := doRequest(h, httptest.NewRequest(http.MethodGet, path, nil))
			if w.Code != http.StatusOK {
				t.Fatalf("GET %s = %d, want 200", path, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("Content-Type = %q, want text/html", ct)
			}
			if !strings.Contains(w.Body.String(), "Ganymede") {
				t.Error("page body has no branding")
			}
		})
	}

	w := doRequest(h, httptest.NewRequest(http.MethodPost, "/ui/dashboard", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /ui/dashboard = %d, want 405", w.Code)
	}
}

func TestHandler_StaticAssets(t *testing.T) {
	h := newTestHandler(t, HandlerConfig{})

	w := doRequest(h, httptest.NewRequest(http.MethodGet, "/ui/static/app.js", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /ui/static/app.js = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "initDashboard") {
		t.Error("app.js does not define initDashboard")
	}

	w = doRequest(h, httptest.NewRequest(http.MethodGet, "/ui/static/style.css", nil))
	if w.Code != http.StatusOK {
		t.Errorf("GET /ui/static/style.css = %d, want 200", w.Code)
	}

	w = doRequest(h, httptest.NewRequest(http.MethodGet, "/ui/static/missing.js", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("GET /ui/static/missing.js = %d, want 404", w.Code)
	}
}

func TestHandler_APILogs(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ft := &fakeTraffic{entries: []traffic.Entry{
		{
			Request:  traffic.RequestRecord{ID: "req-1", Timestamp: ts, Method: "GET", Path: "/v1/items", ClientAddr: "192.0.2.9:1111"},
			Response: &traffic.ResponseRecord{RequestID: "req-1", StatusCode: 200, DurationMS: 12},
		},
	}}
	h := newTestHandler(t, HandlerConfig{Traffic: ft})

	w := doRequest(h, httptest.NewRequest(http.MethodGet,
		"/ui/api/logs?limit=5&method=GET&status=200&start=2024-05-01T00:00:00Z&end=2024-05-02T00:00:00Z", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /ui/api/logs = %d, want 200", w.Code)
	}

	var entries []traffic.Entry
	decodeJSON(t, w, &entries)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Request.Path != "/v1/items" {
		t.Errorf("Path = %q, want /v1/items", entries[0].Request.Path)
	}

	if ft.lastQuery.Limit != 5 {
		t.Errorf("query Limit = %d, want 5", ft.lastQuery.Limit)
	}
	if ft.lastQuery.Method != "GET" {
		t.Errorf("query Method = %q, want GET", ft.lastQuery.Method)
	}
	if ft.lastQuery.Status != 200 {
		t.Errorf("query Status = %d, want 200", ft.lastQuery.Status)
	}
	if want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC); !ft.lastQuery.Start.Equal(want) {
		t.Errorf("query Start = %v, want %v", ft.lastQuery.Start, want)
	}
}

func TestHandler_APILogsErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		traffic TrafficReader
		want    int
	}{
		{"disabled", "/ui/api/logs", nil, http.StatusServiceUnavailable},
		{"bad limit", "/ui/api/logs?limit=x", &fakeTraffic{}, http.StatusBadRequest},
		{"negative limit", "/ui/api/logs?limit=-1", &fakeTraffic{}, http.StatusBadRequest},
		{"bad start", "/ui/api/logs?start=yesterday", &fakeTraffic{}, http.StatusBadRequest},
		{"bad status", "/ui/api/logs?status=teapot", &fakeTraffic{}, http.StatusBadRequest},
		{"store failure", "/ui/api/logs", &fakeTraffic{searchErr: errors.New("db closed")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, HandlerConfig{Traffic: tt.traffic})
			w := doRequest(h, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, w.Code, tt.want)
			}
			var resp statusResponse
			decodeJSON(t, w, &resp)
			if resp.Status != "error" {
				t.Errorf("status = %q, want error", resp.Status)
			}
		})
	}
}

func TestHandler_APIStats(t *testing.T) {
	ft := &fakeTraffic{stats: traffic.Stats{TotalRequests: 42, SuccessRate: 97.5, AvgDurationMS: 12.5, RequestsLastHour: 7}}
	h := newTestHandler(t, HandlerConfig{Traffic: ft})

	w := doRequest(h, httptest.NewRequest(http.MethodGet, "/ui/api/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /ui/api/stats = %d, want 200", w.Code)
	}
	var stats traffic.Stats
	decodeJSON(t, w, &stats)
	if stats.TotalRequests != 42 {
		t.Errorf("TotalRequests = %d, want 42", stats.TotalRequests)
	}
	if stats.SuccessRate != 97.5 {
		t.Errorf("SuccessRate = %v, want 97.5", stats.SuccessRate)
	}

	h = newTestHandler(t, HandlerConfig{})
	w = doRequest(h, httptest.NewRequest(http.MethodGet, "/ui/api/stats", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /ui/api/stats without traffic = %d, want 503", w.Code)
	}
}

func TestHandler_APIConfigCurrent(t *testing.T) {
	m := newTestManager(t, ManagerConfig{})
	h := newTestHandler(t, HandlerConfig{Manager: m})

	w := doRequest(h, httptest.NewRequest(http.MethodGet, "/ui/api/config/current", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /ui/api/config/current = %d, want 200", w.Code)
	}

	var view ConfigView
	decodeJSON(t, w, &view)
	cfg := m.Current()
	if view.TargetURL != cfg.Upstream.BaseURL {
		t.Errorf("TargetURL = %q, want %q", view.TargetURL, cfg.Upstream.BaseURL)
	}
	if view.TimeoutSecs != int(cfg.Upstream.Timeout/time.Second) {
		t.Errorf("TimeoutSecs = %d, want %d", view.TimeoutSecs, int(cfg.Upstream.Timeout/time.Second))
	}
	if view.ListenAddress != cfg.Server.ListenAddress {
		t.Errorf("ListenAddress = %q, want %q", view.ListenAddress, cfg.Server.ListenAddress)
	}
	if view.ClientCertFile != cfg.ClientTLS.CertFile {
		t.Errorf("ClientCertFile = %q, want %q", view.ClientCertFile, cfg.ClientTLS.CertFile)
	}
}

func TestHandler_APIConfigUpdate(t *testing.T) {
	m := newTestManager(t, ManagerConfig{})
	fa := &fakeAudit{}
	h := newTestHandler(t, HandlerConfig{Manager: m, Audit: fa})

	body := `{"target_url":"https://next.internal/v2","timeout_secs":45,"max_concurrent_requests":80}`
	w := doRequest(h, httptest.NewRequest(http.MethodPost, "/ui/api/config/update", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("POST /ui/api/config/update = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp statusResponse
	decodeJSON(t, w, &resp)
	if resp.Status != "success" {
		t.Errorf("status = %q, want success", resp.Status)
	}

	if got := m.Current().Upstream.BaseURL; got != "https://next.internal/v2" {
		t.Errorf("BaseURL = %q, want updated value", got)
	}

	if len(fa.recorded) != 1 {
		t.Fatalf("recorded %d audit events, want 1", len(fa.recorded))
	}
	ev := fa.recorded[0]
	if ev.Type != audit.EventConfigUpdate {
		t.Errorf("audit type = %q, want %q", ev.Type, audit.EventConfigUpdate)
	}
	if ev.RemoteAddr != "192.0.2.1" {
		t.Errorf("audit remote addr = %q, want 192.0.2.1", ev.RemoteAddr)
	}
}

func TestHandler_APIConfigUpdateErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed body", "not json", http.StatusBadRequest},
		{"missing target url", `{"timeout_secs":30,"max_concurrent_requests":10}`, http.StatusBadRequest},
		{"zero timeout", `{"target_url":"https://x.internal","timeout_secs":0,"max_concurrent_requests":10}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, HandlerConfig{})
			w := doRequest(h, httptest.NewRequest(http.MethodPost, "/ui/api/config/update", strings.NewReader(tt.body)))
			if w.Code != tt.want {
				t.Errorf("POST /ui/api/config/update = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestHandler_APIConfigUpdateValidationFailure(t *testing.T) {
	m := newTestManager(t, ManagerConfig{})
	h := newTestHandler(t, HandlerConfig{Manager: m})
	before := m.Current().Upstream.BaseURL

	body := `{"target_url":"http://insecure.internal","timeout_secs":30,"max_concurrent_requests":10}`
	w := doRequest(h, httptest.NewRequest(http.MethodPost, "/ui/api/config/update", strings.NewReader(body)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("POST /ui/api/config/update = %d, want 400", w.Code)
	}

	var verdict validationResponse
	decodeJSON(t, w, &verdict)
	if verdict.Valid {
		t.Error("Valid = true, want false")
	}
	if len(verdict.Errors) == 0 {
		t.Error("Errors is empty")
	}
	if got := m.Current().Upstream.BaseURL; got != before {
		t.Errorf("running config changed: BaseURL = %q", got)
	}
}

func TestHandler_APIConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantValid bool
	}{
		{"running config, empty body", "", true},
		{"running config, empty object", "{}", true},
		{"valid update", `{"target_url":"https://next.internal","timeout_secs":30,"max_concurrent_requests":10}`, true},
		{"invalid update", `{"target_url":"http://insecure.internal","timeout_secs":30,"max_concurrent_requests":10}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, HandlerConfig{})
			w := doRequest(h, httptest.NewRequest(http.MethodPost, "/ui/api/config/validate", strings.NewReader(tt.body)))
			if w.Code != http.StatusOK {
				t.Fatalf("POST /ui/api/config/validate = %d, want 200", w.Code)
			}
			var verdict validationResponse
			decodeJSON(t, w, &verdict)
			if verdict.Valid != tt.wantValid {
				t.Errorf("Valid = %t, want %t (errors: %v)", verdict.Valid, tt.wantValid, verdict.Errors)
			}
			if !tt.wantValid && len(verdict.Errors) == 0 {
				t.Error("invalid verdict carries no errors")
			}
		})
	}

	h := newTestHandler(t, HandlerConfig{})
	w := doRequest(h, httptest.NewRequest(http.MethodPost, "/ui/api/config/validate", strings.NewReader("not json")))
	if w.Code != http.StatusBadRequest {
		t.Errorf("POST /ui/api/config/validate with garbage = %d, want 400", w.Code)
	}
}

// multipartUpload builds a certificate upload body. Empty certType or
// filename leaves that part out.
func multipartUpload(t *testing.T, certType, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if certType != "" {
		if err := mw.WriteField("cert_type", certType); err != nil {
			t.Fatalf("WriteField failed: %v", err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("writing upload content failed: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing multipart writer failed: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHandler_APICertUpload(t *testing.T) {
	ca := certtest.NewCA(t)
	certPEM, _ := ca.ClientCert(t, "uploaded")

	m := newTestManager(t, ManagerConfig{})
	fa := &fakeAudit{}
	h := newTestHandler(t, HandlerConfig{Manager: m, Audit: fa})

	body, contentType := multipartUpload(t, "client", "my-cert.pem", certPEM)
	req := httptest.NewRequest(http.MethodPost, "/ui/api/certificates/upload", body)
	req.Header.Set("Content-Type", contentType)

	w := doRequest(h, req)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /ui/api/certificates/upload = %d, want 200: %s", w.Code, w.Body.String())
	}

	files, err := m.ListCertificates()
	if err != nil {
		t.Fatalf("ListCertificates() failed: %v", err)
	}
	if len(files) != 1 || files[0].Name != "client.crt" {
		t.Errorf("certificate not saved under its slot name: %+v", files)
	}

	if len(fa.recorded) != 1 || fa.recorded[0].Type != audit.EventCertificateUpload {
		t.Errorf("audit events = %+v, want one certificate_upload", fa.recorded)
	}
}

func TestHandler_APICertUploadErrors(t *testing.T) {
	ca := certtest.NewCA(t)
	certPEM, _ := ca.ClientCert(t, "uploaded")

	tests := []struct {
		name     string
		certType string
		filename string
		content  []byte
		want     int
	}{
		{"unknown cert type", "server", "s.pem", certPEM, http.StatusBadRequest},
		{"missing file part", "client", "", nil, http.StatusBadRequest},
		{"invalid content", "client", "c.pem", []byte("not pem"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, HandlerConfig{})
			body, contentType := multipartUpload(t, tt.certType, tt.filename, tt.content)
			req := httptest.NewRequest(http.MethodPost, "/ui/api/certificates/upload", body)
			req.Header.Set("Content-Type", contentType)

			w := doRequest(h, req)
			if w.Code != tt.want {
				t.Errorf("POST /ui/api/certificates/upload = %d, want %d", w.Code, tt.want)
			}
		})
	}

	// A body that is not multipart at all.
	h := newTestHandler(t, HandlerConfig{})
	req := httptest.NewRequest(http.MethodPost, "/ui/api/certificates/upload", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	if w := doRequest(h, req); w.Code != http.StatusBadRequest {
		t.Errorf("non-multipart upload = %d, want 400", w.Code)
	}
}

func TestHandler_APICertListAndDelete(t *testing.T) {
	ca := certtest.NewCA(t)
	certPEM, _ := ca.ClientCert(t, "uploaded")

	m := newTestManager(t, ManagerConfig{})
	fa := &fakeAudit{}
	h := newTestHandler(t, HandlerConfig{Manager: m, Audit: fa})

	if _, err := m.SaveCertificate(CertTypeClient, certPEM); err != nil {
		t.Fatalf("SaveCertificate() failed: %v", err)
	}

	w := doRequest(h, httptest.NewRequest(http.MethodGet, "/ui/api/certificates/list", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /ui/api/certificates/list = %d, want 200", w.Code)
	}
	var list certListResponse
	decodeJSON(t, w, &list)
	if list.Status != "success" {
		t.Errorf("status = %q, want success", list.Status)
	}
	if len(list.Certificates) != 1 || list.Certificates[0].Name != "client.crt" {
		t.Fatalf("certificates = %+v, want one client.crt", list.Certificates)
	}
	if list.Certificates[0].Info == nil {
		t.Error("listed certificate has no parsed info")
	}

	w = doRequest(h, httptest.NewRequest(http.MethodDelete, "/ui/api/certificates/delete/client.crt", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("DELETE client.crt = %d, want 200: %s", w.Code, w.Body.String())
	}
	if len(fa.recorded) != 1 || fa.recorded[0].Type != audit.EventCertificateDelete {
		t.Errorf("audit events = %+v, want one certificate_delete", fa.recorded)
	}

	w = doRequest(h, httptest.NewRequest(http.MethodDelete, "/ui/api/certificates/delete/passwd", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("DELETE passwd = %d, want 404", w.Code)
	}

	w = doRequest(h, httptest.NewRequest(http.MethodGet, "/ui/api/certificates/delete/client.crt", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET on delete route = %d, want 405", w.Code)
	}
}

func TestHandler_APIAudit(t *testing.T) {
	fa := &fakeAudit{
		events: []audit.Event{
			{ID: 2, Type: audit.EventConfigUpdate, Details: "upstream changed", RemoteAddr: "192.0.2.1"},
			{ID: 1, Type: audit.EventServerStart, Details: "server started"},
		},
		stats: audit.Stats{TotalEvents: 10, EventsToday: 3, ConfigUpdates: 2, CertificateOperations: 4},
	}
	h := newTestHandler(t, HandlerConfig{Audit: fa})

	w := doRequest(h, httptest.NewRequest(http.MethodGet, "/ui/api/audit/logs?limit=10", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /ui/api/audit/logs = %d, want 200", w.Code)
	}
	var logs auditLogsResponse
	decodeJSON(t, w, &logs)
	if len(logs.Logs) != 2 {
		t.Errorf("got %d events, want 2", len(logs.Logs))
	}

	w = doRequest(h, httptest.NewRequest(http.MethodGet, "/ui/api/audit/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /ui/api/audit/stats = %d, want 200", w.Code)
	}
	var stats auditStatsResponse
	decodeJSON(t, w, &stats)
	if stats.Stats.TotalEvents != 10 {
		t.Errorf("TotalEvents = %d, want 10", stats.Stats.TotalEvents)
	}

	w = doRequest(h, httptest.NewRequest(http.MethodGet, "/ui/api/audit/logs?limit=x", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit = %d, want 400", w.Code)
	}
}

func TestHandler_APIAuditDisabled(t *testing.T) {
	h := newTestHandler(t, HandlerConfig{})

	for _, path := range []string{"/ui/api/audit/logs", "/ui/api/audit/stats"} {
		w := doRequest(h, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s = %d, want 503", path, w.Code)
		}
	}
}

func TestHandler_Health(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("healthy with traffic", func(t *testing.T) {
		ft := &fakeTraffic{entries: []traffic.Entry{
			{Request: traffic.RequestRecord{ID: "req-1", Timestamp: ts, Method: "GET", Path: "/"}},
		}}
		m := newTestManager(t, ManagerConfig{})
		h := newTestHandler(t, HandlerConfig{Manager: m, Traffic: ft})

		w := doRequest(h, httptest.NewRequest(http.MethodGet, "/ui/health", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("GET /ui/health = %d, want 200", w.Code)
		}

		var resp healthResponse
		decodeJSON(t, w, &resp)
		if resp.Status != "healthy" {
			t.Errorf("status = %q, want healthy", resp.Status)
		}
		if resp.Version != "1.2.3" {
			t.Errorf("version = %q, want 1.2.3", resp.Version)
		}
		if resp.LastRequest == nil || !resp.LastRequest.Equal(ts) {
			t.Errorf("last_request = %v, want %v", resp.LastRequest, ts)
		}
		if resp.Config.TargetURL != m.Current().Upstream.BaseURL {
			t.Errorf("config.target_url = %q, want %q", resp.Config.TargetURL, m.Current().Upstream.BaseURL)
		}
	})

	t.Run("no traffic store", func(t *testing.T) {
		h := newTestHandler(t, HandlerConfig{})
		w := doRequest(h, httptest.NewRequest(http.MethodGet, "/ui/health", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("GET /ui/health = %d, want 200", w.Code)
		}

		var raw map[string]any
		decodeJSON(t, w, &raw)
		if raw["status"] != "healthy" {
			t.Errorf("status = %v, want healthy", raw["status"])
		}
		if _, ok := raw["last_request"]; ok {
			t.Error("last_request present without a traffic store")
		}
	})

	t.Run("degraded store", func(t *testing.T) {
		ft := &fakeTraffic{searchErr: errors.New("db closed")}
		h := newTestHandler(t, HandlerConfig{Traffic: ft})

		w := doRequest(h, httptest.NewRequest(http.MethodGet, "/ui/health", nil))
		var resp healthResponse
		decodeJSON(t, w, &resp)
		if resp.Status != "degraded" {
			t.Errorf("status = %q, want degraded", resp.Status)
		}
	})
}

func TestHandler_AuditFailureDoesNotFailOperation(t *testing.T) {
	m := newTestManager(t, ManagerConfig{})
	fa := &fakeAudit{recordErr: errors.New("audit db closed")}
	h := newTestHandler(t, HandlerConfig{Manager: m, Audit: fa})

	body := `{"target_url":"https://next.internal/v2","timeout_secs":45,"max_concurrent_requests":80}`
	w := doRequest(h, httptest.NewRequest(http.MethodPost, "/ui/api/config/update", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Errorf("POST /ui/api/config/update = %d, want 200 despite audit failure", w.Code)
	}
}
