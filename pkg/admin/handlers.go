package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/ganymede/pkg/audit"
	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/traffic"
)

// maxUploadBytes caps certificate uploads.
const maxUploadBytes = 10 << 20

// TrafficReader is the read side of the traffic store used by the
// dashboard APIs.
type TrafficReader interface {
	Search(ctx context.Context, q traffic.Query) ([]traffic.Entry, error)
	Stats(ctx context.Context) (traffic.Stats, error)
}

// AuditLog records and reads management audit events.
type AuditLog interface {
	Record(ctx context.Context, ev audit.Event) error
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
	Stats(ctx context.Context) (audit.Stats, error)
}

// HandlerConfig carries the collaborators of the management Handler.
// Traffic and Audit may be nil when those subsystems are disabled; the
// corresponding endpoints then respond 503.
type HandlerConfig struct {
	Manager *ConfigManager
	Traffic TrafficReader
	Audit   AuditLog
	Version string
	Logger  *slog.Logger
}

// Handler serves the management dashboard and its JSON API. It handles
// everything under /ui; the server mounts it on the reserved prefix.
type Handler struct {
	manager *ConfigManager
	traffic TrafficReader
	audit   AuditLog
	version string
	started time.Time
	log     *slog.Logger
	mux     *http.ServeMux
}

// NewHandler builds the management handler and wires its routes.
func NewHandler(cfg HandlerConfig) *Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		manager: cfg.Manager,
		traffic: cfg.Traffic,
		audit:   cfg.Audit,
		version: cfg.Version,
		started: time.Now(),
		log:     log,
		mux:     http.NewServeMux(),
	}
	h.routes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /ui", h.page("dashboard.html"))
	h.mux.HandleFunc("GET /ui/{$}", h.page("dashboard.html"))
	h.mux.HandleFunc("GET /ui/dashboard", h.page("dashboard.html"))
	h.mux.HandleFunc("GET /ui/logs", h.page("logs.html"))
	h.mux.HandleFunc("GET /ui/config", h.page("config.html"))
	h.mux.HandleFunc("GET /ui/audit", h.page("audit.html"))
	h.mux.Handle("GET /ui/static/", h.static())

	h.mux.HandleFunc("GET /ui/api/logs", h.apiLogs)
	h.mux.HandleFunc("GET /ui/api/stats", h.apiStats)
	h.mux.HandleFunc("GET /ui/api/config/current", h.apiConfigCurrent)
	h.mux.HandleFunc("POST /ui/api/config/update", h.apiConfigUpdate)
	h.mux.HandleFunc("POST /ui/api/config/validate", h.apiConfigValidate)
	h.mux.HandleFunc("POST /ui/api/certificates/upload", h.apiCertUpload)
	h.mux.HandleFunc("GET /ui/api/certificates/list", h.apiCertList)
	h.mux.HandleFunc("DELETE /ui/api/certificates/delete/{filename}", h.apiCertDelete)
	h.mux.HandleFunc("GET /ui/api/audit/logs", h.apiAuditLogs)
	h.mux.HandleFunc("GET /ui/api/audit/stats", h.apiAuditStats)

	h.mux.HandleFunc("GET /ui/health", h.handleHealth)
}

// statusResponse is the success/error envelope of the mutating endpoints.
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeSuccess(w http.ResponseWriter, message string) {
	h.writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: message})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, statusResponse{Status: "error", Message: message})
}

func (h *Handler) apiLogs(w http.ResponseWriter, r *http.Request) {
	if h.traffic == nil {
		h.writeError(w, http.StatusServiceUnavailable, "traffic logging is disabled")
		return
	}

	q, err := parseLogQuery(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.traffic.Search(r.Context(), q)
	if err != nil {
		h.log.Error("traffic search failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to search traffic log")
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// parseLogQuery reads limit, start, end, method, and status from the
// query string. Times are RFC 3339.
func parseLogQuery(r *http.Request) (traffic.Query, error) {
	var q traffic.Query
	values := r.URL.Query()

	if s := values.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, fmt.Errorf("invalid limit %q", s)
		}
		q.Limit = n
	}
	if s := values.Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, fmt.Errorf("invalid start time %q: must be RFC 3339", s)
		}
		q.Start = t
	}
	if s := values.Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, fmt.Errorf("invalid end time %q: must be RFC 3339", s)
		}
		q.End = t
	}
	q.Method = values.Get("method")
	if s := values.Get("status"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, fmt.Errorf("invalid status %q", s)
		}
		q.Status = n
	}
	return q, nil
}

func (h *Handler) apiStats(w http.ResponseWriter, r *http.Request) {
	if h.traffic == nil {
		h.writeError(w, http.StatusServiceUnavailable, "traffic logging is disabled")
		return
	}

	stats, err := h.traffic.Stats(r.Context())
	if err != nil {
		h.log.Error("traffic stats failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to compute traffic stats")
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// ConfigView is the read shape of the running configuration exposed to
// the dashboard: the runtime-adjustable fields plus the context an
// operator needs to judge them. Secrets never appear; the config stores
// key paths, not keys.
type ConfigView struct {
	ListenAddress         string  `json:"listen_address"`
	TargetURL             string  `json:"target_url"`
	TimeoutSecs           int     `json:"timeout_secs"`
	ConnectTimeoutSecs    int     `json:"connect_timeout_secs"`
	MaxConnections        int     `json:"max_connections"`
	MaxConcurrentRequests int     `json:"max_concurrent_requests"`
	MaxRequestSizeMB      int     `json:"max_request_size_mb"`
	RequestsPerSecond     float64 `json:"requests_per_second"`
	BurstSize             int     `json:"burst_size"`
	ClientCertFile        string  `json:"client_cert_file"`
	ClientKeyFile         string  `json:"client_key_file"`
	CAFile                string  `json:"ca_file,omitempty"`
	TrafficEnabled        bool    `json:"traffic_enabled"`
	RetentionDays         int     `json:"retention_days"`
}

func configView(cfg config.Config) ConfigView {
	return ConfigView{
		ListenAddress:         cfg.Server.ListenAddress,
		TargetURL:             cfg.Upstream.BaseURL,
		TimeoutSecs:           int(cfg.Upstream.Timeout / time.Second),
		ConnectTimeoutSecs:    int(cfg.Upstream.ConnectTimeout / time.Second),
		MaxConnections:        cfg.Server.MaxConnections,
		MaxConcurrentRequests: cfg.Server.MaxConcurrentRequests,
		MaxRequestSizeMB:      cfg.Server.MaxRequestSizeMB,
		RequestsPerSecond:     cfg.Limits.RateLimit.RequestsPerSecond,
		BurstSize:             cfg.Limits.RateLimit.BurstSize,
		ClientCertFile:        cfg.ClientTLS.CertFile,
		ClientKeyFile:         cfg.ClientTLS.KeyFile,
		CAFile:                cfg.ClientTLS.CAFile,
		TrafficEnabled:        cfg.Traffic.Enabled,
		RetentionDays:         cfg.Traffic.Retention.Days,
	}
}

func (h *Handler) apiConfigCurrent(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, configView(h.manager.Current()))
}

// validationResponse is the verdict of a config validation.
type validationResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func validationErrors(err error) []string {
	if err == nil {
		return []string{}
	}
	var verr config.ValidationError
	if errors.As(err, &verr) {
		msgs := make([]string, 0, len(verr.Errors))
		for _, fe := range verr.Errors {
			msgs = append(msgs, fe.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}

func (h *Handler) apiConfigUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.TargetURL == "" {
		h.writeError(w, http.StatusBadRequest, "target_url is required")
		return
	}
	if req.TimeoutSecs <= 0 {
		h.writeError(w, http.StatusBadRequest, "timeout_secs must be greater than zero")
		return
	}

	if _, err := h.manager.Update(req); err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			h.writeJSON(w, http.StatusBadRequest, validationResponse{Valid: false, Errors: validationErrors(err)})
			return
		}
		h.log.Error("config update failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to update configuration")
		return
	}

	h.recordAudit(r, audit.EventConfigUpdate, fmt.Sprintf(
		"configuration updated: target_url=%s, timeout_secs=%d, max_concurrent_requests=%d",
		req.TargetURL, req.TimeoutSecs, req.MaxConcurrentRequests))
	h.writeSuccess(w, "configuration updated")
}

func (h *Handler) apiConfigValidate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	switch {
	case err == nil && req != (UpdateRequest{}):
		// A proposed update was supplied; validate the config as it
		// would look with the update applied.
		err = h.manager.ValidateUpdate(req)
	case err == nil || errors.Is(err, io.EOF):
		err = h.manager.Validate()
	default:
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp := validationResponse{Valid: err == nil, Errors: validationErrors(err)}
	h.recordAudit(r, audit.EventConfigValidation, fmt.Sprintf("configuration validated: valid=%t", resp.Valid))
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) apiCertUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "certificate upload exceeds 10MB")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	certType, err := ParseCertType(r.FormValue("cert_type"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read upload: "+err.Error())
		return
	}

	saved, err := h.manager.SaveCertificate(certType, content)
	if err != nil {
		if errors.Is(err, ErrInvalidCertificate) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("certificate upload failed", "type", string(certType), "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to save certificate")
		return
	}

	h.recordAudit(r, audit.EventCertificateUpload, fmt.Sprintf(
		"certificate uploaded: type=%s, filename=%s, saved_as=%s", certType, header.Filename, saved))
	h.writeSuccess(w, "certificate uploaded")
}

// certListResponse wraps the certificate listing.
type certListResponse struct {
	Status       string            `json:"status"`
	Certificates []CertificateFile `json:"certificates"`
}

func (h *Handler) apiCertList(w http.ResponseWriter, r *http.Request) {
	files, err := h.manager.ListCertificates()
	if err != nil {
		h.log.Error("certificate listing failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list certificates")
		return
	}
	h.writeJSON(w, http.StatusOK, certListResponse{Status: "success", Certificates: files})
}

func (h *Handler) apiCertDelete(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")

	if err := h.manager.DeleteCertificate(filename); err != nil {
		if errors.Is(err, ErrUnknownCertificate) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.log.Error("certificate delete failed", "file", filename, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to delete certificate")
		return
	}

	h.recordAudit(r, audit.EventCertificateDelete, "certificate deleted: filename="+filename)
	h.writeSuccess(w, fmt.Sprintf("certificate %s deleted", filename))
}

// auditLogsResponse wraps the recent audit events.
type auditLogsResponse struct {
	Status string        `json:"status"`
	Logs   []audit.Event `json:"logs"`
}

func (h *Handler) apiAuditLogs(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		h.writeError(w, http.StatusServiceUnavailable, "audit logging is disabled")
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", s))
			return
		}
		limit = n
	}

	events, err := h.audit.Recent(r.Context(), limit)
	if err != nil {
		h.log.Error("audit log read failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to read audit log")
		return
	}
	h.writeJSON(w, http.StatusOK, auditLogsResponse{Status: "success", Logs: events})
}

// auditStatsResponse wraps the audit counters.
type auditStatsResponse struct {
	Status string      `json:"status"`
	Stats  audit.Stats `json:"stats"`
}

func (h *Handler) apiAuditStats(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		h.writeError(w, http.StatusServiceUnavailable, "audit logging is disabled")
		return
	}

	stats, err := h.audit.Stats(r.Context())
	if err != nil {
		h.log.Error("audit stats failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to compute audit stats")
		return
	}
	h.writeJSON(w, http.StatusOK, auditStatsResponse{Status: "success", Stats: stats})
}

// healthResponse is the admin health envelope: liveness of the traffic
// store plus the config summary the dashboard header shows.
type healthResponse struct {
	Status      string        `json:"status"`
	LastRequest *time.Time    `json:"last_request,omitempty"`
	Uptime      string        `json:"uptime"`
	Version     string        `json:"version"`
	Config      configSummary `json:"config"`
}

type configSummary struct {
	ListenAddress  string `json:"listen_address"`
	TargetURL      string `json:"target_url"`
	MaxConnections int    `json:"max_connections"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	cfg := h.manager.Current()
	resp := healthResponse{
		Status:  "healthy",
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		Version: h.version,
		Config: configSummary{
			ListenAddress:  cfg.Server.ListenAddress,
			TargetURL:      cfg.Upstream.BaseURL,
			MaxConnections: cfg.Server.MaxConnections,
		},
	}

	if h.traffic != nil {
		entries, err := h.traffic.Search(r.Context(), traffic.Query{Limit: 1})
		switch {
		case err != nil:
			resp.Status = "degraded"
		case len(entries) > 0:
			ts := entries[0].Request.Timestamp
			resp.LastRequest = &ts
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// recordAudit writes a management audit event. Failures are logged, not
// surfaced; the management operation itself already succeeded.
func (h *Handler) recordAudit(r *http.Request, eventType audit.EventType, details string) {
	if h.audit == nil {
		return
	}
	ev := audit.Event{
		Type:       eventType,
		Details:    details,
		RemoteAddr: remoteHost(r),
	}
	if err := h.audit.Record(r.Context(), ev); err != nil {
		h.log.Error("failed to record audit event", "type", string(eventType), "error", err)
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
