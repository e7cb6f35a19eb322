package proxy

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/ganymede/internal/certtest"
	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/proxy/middleware"
	"mercator-hq/ganymede/pkg/proxy/types"
	securityTLS "mercator-hq/ganymede/pkg/security/tls"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newMTLSUpstream starts a TLS server whose certificate is issued by ca
// and which requires a client certificate issued by ca. hosts defaults
// to the loopback address httptest listens on.
func newMTLSUpstream(t *testing.T, ca *certtest.CA, handler http.Handler, hosts ...string) *httptest.Server {
	t.Helper()

	if len(hosts) == 0 {
		hosts = []string{"127.0.0.1"}
	}

	certPEM, keyPEM := ca.ServerCert(t, hosts...)
	serverCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("building server key pair: %v", err)
	}

	clientCAs := x509.NewCertPool()
	clientCAs.AddCert(ca.Cert)

	srv := httptest.NewUnstartedServer(handler)
	srv.TLS = &tls.Config{
		Certificates: []tls.Certificate{serverCert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    clientCAs,
	}
	srv.StartTLS()
	t.Cleanup(srv.Close)
	return srv
}

// forwarderConfig builds a config whose client identity is issued by ca
// and which trusts ca for upstream verification.
func forwarderConfig(t *testing.T, ca *certtest.CA, baseURL string) *config.Config {
	t.Helper()

	dir := t.TempDir()
	certPEM, keyPEM := ca.ClientCert(t, "proxy-client")

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Upstream.BaseURL = baseURL
	cfg.Upstream.Timeout = 5 * time.Second
	cfg.Upstream.ConnectTimeout = 2 * time.Second
	cfg.ClientTLS.CertFile = certtest.WriteFile(t, dir, "client.crt", certPEM)
	cfg.ClientTLS.KeyFile = certtest.WriteFile(t, dir, "client.key", keyPEM)
	cfg.ClientTLS.CAFile = certtest.WriteFile(t, dir, "ca.crt", ca.CertPEM)
	return cfg
}

func newTestForwarder(t *testing.T, cfg *config.Config) *Forwarder {
	t.Helper()

	provider, err := securityTLS.NewProvider(&cfg.ClientTLS, discardLogger())
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	fwd, err := NewForwarder(cfg, provider, discardLogger())
	if err != nil {
		t.Fatalf("NewForwarder: %v", err)
	}
	t.Cleanup(fwd.CloseIdleConnections)
	return fwd
}

// echoUpstream reflects the request it received into response headers
// and echoes the body, so tests assert on the client-visible response
// without sharing state with the handler goroutine.
func echoUpstream() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Echo-Method", r.Method)
		w.Header().Set("Echo-Path", r.URL.Path)
		w.Header().Set("Echo-Query", r.URL.RawQuery)
		w.Header().Set("Echo-Host", r.Host)
		w.Header().Set("Echo-Forwarded-For", r.Header.Get("X-Forwarded-For"))
		w.Header().Set("Echo-Forwarded-Proto", r.Header.Get("X-Forwarded-Proto"))
		w.Header().Set("Echo-Request-Id", r.Header.Get(middleware.RequestIDHeader))
		w.Header().Set("Echo-Connection", r.Header.Get("Connection"))
		w.Header().Set("Echo-Custom", r.Header.Get("X-Custom"))
		w.Header().Set("Echo-Forwarded", r.Header.Get("X-Forwarded"))
		w.Header().Set("X-Upstream", "true")
		w.Header().Set("Keep-Alive", "timeout=5")

		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	})
}

// blockingUpstream holds the request open until the client goes away.
func blockingUpstream() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()

	var body types.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body
}

func TestForwarder_ForwardsRequestAndResponse(t *testing.T) {
	ca := certtest.NewCA(t)
	srv := newMTLSUpstream(t, ca, echoUpstream())
	fwd := newTestForwarder(t, forwarderConfig(t, ca, srv.URL))

	req := httptest.NewRequest(http.MethodPost, "/v1/data?x=1", strings.NewReader("payload"))
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-123"))
	rec := httptest.NewRecorder()

	res := fwd.Forward(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %v, want %v, body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if got := rec.Body.String(); got != "payload" {
		t.Errorf("body = %q, want %q", got, "payload")
	}

	wantHost := strings.TrimPrefix(srv.URL, "https://")
	checks := map[string]string{
		"Echo-Method":          http.MethodPost,
		"Echo-Path":            "/v1/data",
		"Echo-Query":           "x=1",
		"Echo-Host":            wantHost,
		"Echo-Forwarded-For":   "192.0.2.1",
		"Echo-Forwarded-Proto": "http",
		"Echo-Request-Id":      "req-123",
	}
	for header, want := range checks {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}

	if got := rec.Header().Get("X-Upstream"); got != "true" {
		t.Errorf("X-Upstream = %q, want %q", got, "true")
	}
	if got := rec.Header().Get("Keep-Alive"); got != "" {
		t.Errorf("Keep-Alive = %q, want stripped", got)
	}
	if !rec.Flushed {
		t.Error("response was not flushed to the client")
	}

	if res.Status != http.StatusOK {
		t.Errorf("Result.Status = %v, want %v", res.Status, http.StatusOK)
	}
	if res.Category != CategoryNone {
		t.Errorf("Result.Category = %q, want none", res.Category)
	}
	if res.BytesIn != int64(len("payload")) {
		t.Errorf("Result.BytesIn = %v, want %v", res.BytesIn, len("payload"))
	}
	if res.BytesOut != int64(len("payload")) {
		t.Errorf("Result.BytesOut = %v, want %v", res.BytesOut, len("payload"))
	}
	if !res.HeaderWritten {
		t.Error("Result.HeaderWritten = false, want true")
	}
}

func TestForwarder_JoinsBasePath(t *testing.T) {
	ca := certtest.NewCA(t)
	srv := newMTLSUpstream(t, ca, echoUpstream())
	cfg := forwarderConfig(t, ca, srv.URL)
	fwd := newTestForwarder(t, cfg)

	tests := []struct {
		name     string
		basePath string
		reqPath  string
		wantPath string
	}{
		{"no base path", "", "/v1/foo", "/v1/foo"},
		{"base path", "/api", "/v1/foo", "/api/v1/foo"},
		{"base path trailing slash", "/api/", "/v1/foo", "/api/v1/foo"},
		{"root request", "/api", "/", "/api/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := cfg.Upstream
			up.BaseURL = srv.URL + tt.basePath
			if err := fwd.ApplyUpstream(&up, cfg.Server.MaxRequestSizeBytes()); err != nil {
				t.Fatalf("ApplyUpstream: %v", err)
			}

			req := httptest.NewRequest(http.MethodGet, tt.reqPath+"?x=1", nil)
			rec := httptest.NewRecorder()

			fwd.Forward(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %v, body %s", rec.Code, rec.Body.String())
			}
			if got := rec.Header().Get("Echo-Path"); got != tt.wantPath {
				t.Errorf("upstream path = %q, want %q", got, tt.wantPath)
			}
			if got := rec.Header().Get("Echo-Query"); got != "x=1" {
				t.Errorf("upstream query = %q, want %q", got, "x=1")
			}
		})
	}
}

func TestForwarder_StripsHopByHopOnRequest(t *testing.T) {
	ca := certtest.NewCA(t)
	srv := newMTLSUpstream(t, ca, echoUpstream())
	fwd := newTestForwarder(t, forwarderConfig(t, ca, srv.URL))

	req := httptest.NewRequest(http.MethodGet, "/v1/foo", nil)
	req.Header.Set("Connection", "X-Custom")
	req.Header.Set("X-Custom", "v")
	req.Header.Set("Te", "trailers")
	req.Header.Set("X-Forwarded", "y")
	rec := httptest.NewRecorder()

	fwd.Forward(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %v, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Echo-Connection"); got != "" {
		t.Errorf("upstream saw Connection = %q, want none", got)
	}
	if got := rec.Header().Get("Echo-Custom"); got != "" {
		t.Errorf("upstream saw X-Custom = %q, want none", got)
	}
	if got := rec.Header().Get("Echo-Forwarded"); got != "y" {
		t.Errorf("upstream saw X-Forwarded = %q, want %q", got, "y")
	}
}

func TestForwarder_AppendsForwardedChain(t *testing.T) {
	ca := certtest.NewCA(t)
	srv := newMTLSUpstream(t, ca, echoUpstream())
	fwd := newTestForwarder(t, forwarderConfig(t, ca, srv.URL))

	req := httptest.NewRequest(http.MethodGet, "/v1/foo", nil)
	req.Header.Set("X-Forwarded-For", "10.1.1.1")
	req.TLS = &tls.ConnectionState{}
	rec := httptest.NewRecorder()

	fwd.Forward(rec, req)

	if got, want := rec.Header().Get("Echo-Forwarded-For"), "10.1.1.1, 192.0.2.1"; got != want {
		t.Errorf("X-Forwarded-For = %q, want %q", got, want)
	}
	if got := rec.Header().Get("Echo-Forwarded-Proto"); got != "https" {
		t.Errorf("X-Forwarded-Proto = %q, want %q", got, "https")
	}
}

func TestForwarder_UpstreamTimeout(t *testing.T) {
	ca := certtest.NewCA(t)
	srv := newMTLSUpstream(t, ca, blockingUpstream())
	cfg := forwarderConfig(t, ca, srv.URL)
	cfg.Upstream.Timeout = 150 * time.Millisecond
	fwd := newTestForwarder(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/v1/slow", nil)
	rec := httptest.NewRecorder()

	start := time.Now()
	res := fwd.Forward(rec, req)
	elapsed := time.Since(start)

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %v, want %v", rec.Code, http.StatusGatewayTimeout)
	}
	if res.Category != CategoryUpstreamTimeout {
		t.Errorf("category = %q, want %q", res.Category, CategoryUpstreamTimeout)
	}
	if elapsed > 2*time.Second {
		t.Errorf("request took %v, deadline was 150ms", elapsed)
	}

	body := decodeErrorBody(t, rec)
	if body.Error.Code != types.CodeUpstreamTimeout {
		t.Errorf("error code = %q, want %q", body.Error.Code, types.CodeUpstreamTimeout)
	}
}

func TestForwarder_ConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ca := certtest.NewCA(t)
	fwd := newTestForwarder(t, forwarderConfig(t, ca, "https://"+addr))

	req := httptest.NewRequest(http.MethodGet, "/v1/foo", nil)
	rec := httptest.NewRecorder()

	res := fwd.Forward(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %v, want %v", rec.Code, http.StatusBadGateway)
	}
	if res.Category != CategoryUpstreamConnectFailed {
		t.Errorf("category = %q, want %q", res.Category, CategoryUpstreamConnectFailed)
	}

	body := decodeErrorBody(t, rec)
	if body.Error.Code != types.CodeUpstreamConnectFailed {
		t.Errorf("error code = %q, want %q", body.Error.Code, types.CodeUpstreamConnectFailed)
	}
	// Internal detail must not leak to the caller.
	if strings.Contains(body.Error.Message, addr) {
		t.Errorf("error message leaks upstream address: %q", body.Error.Message)
	}
}

func TestForwarder_RejectsUntrustedUpstream(t *testing.T) {
	// The upstream presents httptest's own self-signed certificate,
	// which no identity in this test trusts.
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	ca := certtest.NewCA(t)
	fwd := newTestForwarder(t, forwarderConfig(t, ca, srv.URL))

	req := httptest.NewRequest(http.MethodGet, "/v1/foo", nil)
	rec := httptest.NewRecorder()

	res := fwd.Forward(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %v, want %v", rec.Code, http.StatusBadGateway)
	}
	if res.Category != CategoryUpstreamConnectFailed {
		t.Errorf("category = %q, want %q", res.Category, CategoryUpstreamConnectFailed)
	}

	var connErr *ConnectError
	if !errors.As(res.Err, &connErr) {
		t.Errorf("Result.Err = %T, want *ConnectError", res.Err)
	}
}

func TestForwarder_SkipHostnameVerify(t *testing.T) {
	ca := certtest.NewCA(t)
	// Certificate for a name that does not match the dialed address.
	srv := newMTLSUpstream(t, ca, echoUpstream(), "other.internal")

	t.Run("mismatch rejected by default", func(t *testing.T) {
		fwd := newTestForwarder(t, forwarderConfig(t, ca, srv.URL))

		rec := httptest.NewRecorder()
		res := fwd.Forward(rec, httptest.NewRequest(http.MethodGet, "/v1/foo", nil))

		if rec.Code != http.StatusBadGateway {
			t.Errorf("status = %v, want %v", rec.Code, http.StatusBadGateway)
		}
		if res.Category != CategoryUpstreamConnectFailed {
			t.Errorf("category = %q, want %q", res.Category, CategoryUpstreamConnectFailed)
		}
	})

	t.Run("mismatch allowed when skipped", func(t *testing.T) {
		cfg := forwarderConfig(t, ca, srv.URL)
		cfg.ClientTLS.SkipHostnameVerify = true
		fwd := newTestForwarder(t, cfg)

		rec := httptest.NewRecorder()
		fwd.Forward(rec, httptest.NewRequest(http.MethodGet, "/v1/foo", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("status = %v, want %v, body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
	})

	t.Run("untrusted chain still rejected when skipped", func(t *testing.T) {
		untrusted := httptest.NewTLSServer(echoUpstream())
		t.Cleanup(untrusted.Close)

		cfg := forwarderConfig(t, ca, untrusted.URL)
		cfg.ClientTLS.SkipHostnameVerify = true
		fwd := newTestForwarder(t, cfg)

		rec := httptest.NewRecorder()
		res := fwd.Forward(rec, httptest.NewRequest(http.MethodGet, "/v1/foo", nil))

		if rec.Code != http.StatusBadGateway {
			t.Errorf("status = %v, want %v", rec.Code, http.StatusBadGateway)
		}
		if res.Category != CategoryUpstreamConnectFailed {
			t.Errorf("category = %q, want %q", res.Category, CategoryUpstreamConnectFailed)
		}
	})
}

func TestForwarder_ClientCertRejectedByUpstream(t *testing.T) {
	serverCA := certtest.NewCA(t)
	otherCA := certtest.NewCA(t)

	certPEM, keyPEM := serverCA.ServerCert(t, "127.0.0.1")
	serverCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("building server key pair: %v", err)
	}

	// The upstream only accepts client certificates from otherCA, which
	// is not the CA that issued the proxy's identity. TLS 1.2 keeps the
	// rejection inside the handshake.
	clientCAs := x509.NewCertPool()
	clientCAs.AddCert(otherCA.Cert)

	srv := httptest.NewUnstartedServer(echoUpstream())
	srv.TLS = &tls.Config{
		Certificates: []tls.Certificate{serverCert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    clientCAs,
		MaxVersion:   tls.VersionTLS12,
	}
	srv.StartTLS()
	t.Cleanup(srv.Close)

	fwd := newTestForwarder(t, forwarderConfig(t, serverCA, srv.URL))

	req := httptest.NewRequest(http.MethodGet, "/v1/foo", nil)
	rec := httptest.NewRecorder()

	res := fwd.Forward(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %v, want %v", rec.Code, http.StatusBadGateway)
	}
	if res.Category != CategoryUpstreamConnectFailed {
		t.Errorf("category = %q, want %q", res.Category, CategoryUpstreamConnectFailed)
	}
}

func TestForwarder_StreamedBodyOverLimit(t *testing.T) {
	ca := certtest.NewCA(t)
	srv := newMTLSUpstream(t, ca, echoUpstream())
	cfg := forwarderConfig(t, ca, srv.URL)
	cfg.Server.MaxRequestSizeMB = 1
	fwd := newTestForwarder(t, cfg)

	limit := cfg.Server.MaxRequestSizeBytes()

	// Hide the length so the limit can only trip mid-stream.
	body := struct{ io.Reader }{bytes.NewReader(make([]byte, limit+1))}
	req := httptest.NewRequest(http.MethodPost, "/v1/upload", body)
	rec := httptest.NewRecorder()

	res := fwd.Forward(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %v, want %v", rec.Code, http.StatusRequestEntityTooLarge)
	}
	if res.Category != CategoryRequestTooLarge {
		t.Errorf("category = %q, want %q", res.Category, CategoryRequestTooLarge)
	}
	if res.BytesIn != limit+1 {
		t.Errorf("BytesIn = %v, want %v", res.BytesIn, limit+1)
	}

	errBody := decodeErrorBody(t, rec)
	if errBody.Error.Code != types.CodeRequestTooLarge {
		t.Errorf("error code = %q, want %q", errBody.Error.Code, types.CodeRequestTooLarge)
	}
}

func TestForwarder_AllowsBodyAtExactLimit(t *testing.T) {
	ca := certtest.NewCA(t)
	srv := newMTLSUpstream(t, ca, echoUpstream())
	cfg := forwarderConfig(t, ca, srv.URL)
	cfg.Server.MaxRequestSizeMB = 1
	fwd := newTestForwarder(t, cfg)

	limit := cfg.Server.MaxRequestSizeBytes()

	body := struct{ io.Reader }{bytes.NewReader(make([]byte, limit))}
	req := httptest.NewRequest(http.MethodPost, "/v1/upload", body)
	rec := httptest.NewRecorder()

	res := fwd.Forward(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %v, want %v", rec.Code, http.StatusOK)
	}
	if res.BytesIn != limit {
		t.Errorf("BytesIn = %v, want %v", res.BytesIn, limit)
	}
	if int64(rec.Body.Len()) != limit {
		t.Errorf("echoed body length = %v, want %v", rec.Body.Len(), limit)
	}
}

func TestForwarder_ClientDisconnected(t *testing.T) {
	ca := certtest.NewCA(t)
	srv := newMTLSUpstream(t, ca, blockingUpstream())
	fwd := newTestForwarder(t, forwarderConfig(t, ca, srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/v1/foo", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	time.AfterFunc(50*time.Millisecond, cancel)
	res := fwd.Forward(rec, req)

	if res.Category != CategoryClientDisconnected {
		t.Errorf("category = %q, want %q", res.Category, CategoryClientDisconnected)
	}
	if res.Status != 0 {
		t.Errorf("Result.Status = %v, want 0", res.Status)
	}
	if res.HeaderWritten {
		t.Error("no response should be written after a client disconnect")
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
}

func TestForwarder_ApplyUpstream(t *testing.T) {
	ca := certtest.NewCA(t)
	srv := newMTLSUpstream(t, ca, echoUpstream())
	cfg := forwarderConfig(t, ca, srv.URL)
	fwd := newTestForwarder(t, cfg)

	t.Run("rejects non-https URL", func(t *testing.T) {
		up := cfg.Upstream
		up.BaseURL = "http://insecure.internal"

		err := fwd.ApplyUpstream(&up, 1024)
		if err == nil {
			t.Fatal("expected error for http base URL")
		}

		var fieldErr config.FieldError
		if !errors.As(err, &fieldErr) {
			t.Fatalf("error type = %T, want config.FieldError", err)
		}
		if fieldErr.Field != "upstream.base_url" {
			t.Errorf("Field = %q, want upstream.base_url", fieldErr.Field)
		}
	})

	t.Run("rejects unparsable URL", func(t *testing.T) {
		up := cfg.Upstream
		up.BaseURL = "https://bad url with spaces"

		if err := fwd.ApplyUpstream(&up, 1024); err == nil {
			t.Fatal("expected error for invalid base URL")
		}
	})

	t.Run("swaps target and limit", func(t *testing.T) {
		up := cfg.Upstream
		up.BaseURL = srv.URL + "/next"

		if err := fwd.ApplyUpstream(&up, 2048); err != nil {
			t.Fatalf("ApplyUpstream: %v", err)
		}

		if got := fwd.Target().Path; got != "/next" {
			t.Errorf("Target().Path = %q, want %q", got, "/next")
		}
		if got := fwd.MaxBodyBytes(); got != 2048 {
			t.Errorf("MaxBodyBytes() = %v, want 2048", got)
		}
	})

	t.Run("failed apply keeps previous target", func(t *testing.T) {
		up := cfg.Upstream
		up.BaseURL = srv.URL + "/kept"
		if err := fwd.ApplyUpstream(&up, 1024); err != nil {
			t.Fatalf("ApplyUpstream: %v", err)
		}

		up.BaseURL = "http://rejected.internal"
		if err := fwd.ApplyUpstream(&up, 1024); err == nil {
			t.Fatal("expected error")
		}

		if got := fwd.Target().Path; got != "/kept" {
			t.Errorf("Target().Path = %q, want %q", got, "/kept")
		}
	})
}

func TestCountingBody(t *testing.T) {
	newBody := func(data []byte, limit int64) *countingBody {
		return &countingBody{rc: io.NopCloser(bytes.NewReader(data)), remaining: limit, limit: limit}
	}

	t.Run("allows body at exactly the limit", func(t *testing.T) {
		body := newBody(make([]byte, 10), 10)

		data, err := io.ReadAll(body)
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		if len(data) != 10 {
			t.Errorf("read %v bytes, want 10", len(data))
		}
		if body.read != 10 {
			t.Errorf("read counter = %v, want 10", body.read)
		}
	})

	t.Run("fails one byte over the limit", func(t *testing.T) {
		body := newBody(make([]byte, 11), 10)

		_, err := io.ReadAll(body)
		var tooLarge *RequestTooLargeError
		if !errors.As(err, &tooLarge) {
			t.Fatalf("error = %v, want *RequestTooLargeError", err)
		}
		if tooLarge.Limit != 10 {
			t.Errorf("Limit = %v, want 10", tooLarge.Limit)
		}
	})

	t.Run("keeps failing after the limit tripped", func(t *testing.T) {
		body := newBody(make([]byte, 20), 10)

		_, _ = io.ReadAll(body)

		if _, err := body.Read(make([]byte, 4)); err == nil {
			t.Error("expected error on read after limit tripped")
		}
	})

	t.Run("zero limit means unlimited", func(t *testing.T) {
		body := newBody(make([]byte, 100), 0)

		data, err := io.ReadAll(body)
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		if len(data) != 100 {
			t.Errorf("read %v bytes, want 100", len(data))
		}
	})
}

func TestSingleJoiningSlash(t *testing.T) {
	tests := []struct {
		a, b, want string
	}{
		{"", "/v1", "/v1"},
		{"/api", "/v1", "/api/v1"},
		{"/api/", "/v1", "/api/v1"},
		{"/api", "v1", "/api/v1"},
		{"/api/", "", "/api/"},
		{"", "", "/"},
	}

	for _, tt := range tests {
		if got := singleJoiningSlash(tt.a, tt.b); got != tt.want {
			t.Errorf("singleJoiningSlash(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}
