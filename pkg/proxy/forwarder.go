package proxy

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/proxy/middleware"
	"mercator-hq/ganymede/pkg/proxy/types"
	securityTLS "mercator-hq/ganymede/pkg/security/tls"
)

// targetSettings is the swappable slice of upstream configuration. The
// management API replaces it wholesale; in-flight requests keep the
// settings they started with.
type targetSettings struct {
	baseURL        *url.URL
	timeout        time.Duration
	connectTimeout time.Duration
	maxBodyBytes   int64
}

// Result is the outcome of one forwarded request, consumed by the
// traffic recorder and metrics.
type Result struct {
	Status        int
	Category      ErrorCategory
	BytesIn       int64
	BytesOut      int64
	HeaderWritten bool
	Err           error
}

// Forwarder owns the upstream side of the proxy: the mTLS transport,
// the target settings, and the per-request forwarding procedure. One
// Forwarder serves all requests concurrently.
type Forwarder struct {
	transport *http.Transport
	identity  *securityTLS.Provider
	settings  atomic.Pointer[targetSettings]
	log       *slog.Logger
}

// NewForwarder builds a forwarder for the configured upstream using the
// identity provider for every handshake.
func NewForwarder(cfg *config.Config, identity *securityTLS.Provider, log *slog.Logger) (*Forwarder, error) {
	if log == nil {
		log = slog.Default()
	}

	f := &Forwarder{
		identity: identity,
		log:      log,
	}

	if err := f.ApplyUpstream(&cfg.Upstream, cfg.Server.MaxRequestSizeBytes()); err != nil {
		return nil, err
	}

	f.transport = &http.Transport{
		DialTLSContext:      f.dialTLS,
		MaxIdleConnsPerHost: cfg.Upstream.Pool.MaxIdleConns,
		MaxIdleConns:        cfg.Upstream.Pool.MaxIdleConns,
		IdleConnTimeout:     cfg.Upstream.Pool.IdleConnTimeout,
		// The proxy relays bodies verbatim; transparent decompression
		// would rewrite them.
		DisableCompression: true,
		ForceAttemptHTTP2:  false,
	}

	return f, nil
}

// ApplyUpstream validates and atomically swaps the target settings.
// Used at startup and by the management API for live config updates.
func (f *Forwarder) ApplyUpstream(upstream *config.UpstreamConfig, maxBodyBytes int64) error {
	base, err := url.Parse(upstream.BaseURL)
	if err != nil {
		return config.FieldError{Field: "upstream.base_url", Message: "is not a valid URL"}
	}
	if base.Scheme != "https" {
		return config.FieldError{Field: "upstream.base_url", Message: "must use https"}
	}

	f.settings.Store(&targetSettings{
		baseURL:        base,
		timeout:        upstream.Timeout,
		connectTimeout: upstream.ConnectTimeout,
		maxBodyBytes:   maxBodyBytes,
	})
	return nil
}

// Target returns the active upstream base URL.
func (f *Forwarder) Target() *url.URL {
	u := *f.settings.Load().baseURL
	return &u
}

// MaxBodyBytes returns the active request body ceiling.
func (f *Forwarder) MaxBodyBytes() int64 {
	return f.settings.Load().maxBodyBytes
}

// CloseIdleConnections drops pooled upstream connections. Called after
// an identity reload so new handshakes present the new certificate.
func (f *Forwarder) CloseIdleConnections() {
	f.transport.CloseIdleConnections()
}

// dialTLS establishes the mTLS connection to the upstream. Dial and
// handshake failures come back wrapped in ConnectError so the caller
// can tell them apart from failures after the connection stood.
func (f *Forwarder) dialTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	settings := f.settings.Load()

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	dialer := &net.Dialer{Timeout: settings.connectTimeout}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}

	tlsConfig := f.identity.TLSConfig()
	tlsConfig.ServerName = host

	conn := tls.Client(rawConn, tlsConfig)

	handshakeCtx := ctx
	if settings.connectTimeout > 0 {
		var cancel context.CancelFunc
		handshakeCtx, cancel = context.WithTimeout(ctx, settings.connectTimeout)
		defer cancel()
	}
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		rawConn.Close()
		return nil, &ConnectError{Addr: addr, Err: err}
	}

	return conn, nil
}

// Forward relays one inbound request to the upstream and streams the
// response back. It owns the end-to-end deadline, hop-by-hop filtering
// in both directions, and error classification. Admission (rate, size,
// concurrency) has already happened by the time Forward runs.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request) *Result {
	settings := f.settings.Load()
	requestID := middleware.GetRequestID(r.Context())

	// One deadline covers connect, send, response wait, and streaming.
	ctx, cancel := context.WithTimeout(r.Context(), settings.timeout)
	defer cancel()

	body := &countingBody{rc: r.Body, remaining: settings.maxBodyBytes, limit: settings.maxBodyBytes}
	out := f.buildUpstreamRequest(ctx, r, settings, body, requestID)

	resp, err := f.transport.RoundTrip(out)
	if err != nil {
		category, status, code, message := classifyForwardError(r.Context(), ctx, err)
		res := &Result{BytesIn: body.read, Err: err, Category: category, Status: status}

		if category == CategoryClientDisconnected {
			f.log.Info("client disconnected before response",
				"request_id", requestID,
				"path", r.URL.Path,
			)
			return res
		}

		f.log.Error("forwarding failed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"category", string(category),
			"error", err,
		)
		types.WriteError(w, status, code, message, requestID)
		return res
	}
	defer resp.Body.Close()

	StripHopByHopHeaders(resp.Header)

	copyHeader(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	written, copyErr := f.streamResponse(w, resp.Body)

	res := &Result{
		Status:        resp.StatusCode,
		BytesIn:       body.read,
		BytesOut:      written,
		HeaderWritten: true,
	}

	if copyErr != nil {
		// Headers are out; all that is left is classifying how the
		// stream died and closing the upstream promptly (cancel via
		// defer aborts the transport's pending read).
		res.Err = copyErr
		res.Category, _, _, _ = classifyForwardError(r.Context(), ctx, copyErr)

		if res.Category == CategoryClientDisconnected {
			f.log.Info("client disconnected mid-stream",
				"request_id", requestID,
				"path", r.URL.Path,
				"bytes_sent", written,
			)
		} else {
			f.log.Warn("response stream aborted",
				"request_id", requestID,
				"path", r.URL.Path,
				"category", string(res.Category),
				"error", copyErr,
			)
		}
	}

	return res
}

// buildUpstreamRequest derives the outbound request: rewritten URL and
// Host, filtered headers, forwarding headers, wrapped body.
func (f *Forwarder) buildUpstreamRequest(ctx context.Context, r *http.Request, settings *targetSettings, body *countingBody, requestID string) *http.Request {
	out := r.Clone(ctx)

	target := *settings.baseURL
	target.Path = singleJoiningSlash(settings.baseURL.Path, r.URL.Path)
	target.RawQuery = r.URL.RawQuery

	out.URL = &target
	out.Host = target.Host
	out.RequestURI = ""
	out.Close = false

	if r.Body == nil || r.Body == http.NoBody {
		out.Body = http.NoBody
	} else {
		out.Body = body
	}

	StripHopByHopHeaders(out.Header)

	// Append the client to any forwarded chain a previous hop started.
	if clientIP, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if prior := r.Header.Get("X-Forwarded-For"); prior != "" {
			out.Header.Set("X-Forwarded-For", prior+", "+clientIP)
		} else {
			out.Header.Set("X-Forwarded-For", clientIP)
		}
	}
	if r.TLS != nil {
		out.Header.Set("X-Forwarded-Proto", "https")
	} else {
		out.Header.Set("X-Forwarded-Proto", "http")
	}
	if requestID != "" {
		out.Header.Set(middleware.RequestIDHeader, requestID)
	}

	return out
}

// streamResponse copies the upstream body to the client, flushing as
// bytes arrive so long-lived responses are not held back.
func (f *Forwarder) streamResponse(w http.ResponseWriter, body io.Reader) (int64, error) {
	flusher, _ := w.(http.Flusher)
	return io.Copy(&flushWriter{w: w, flusher: flusher}, body)
}

// singleJoiningSlash joins the upstream base path and the inbound path
// with exactly one slash between them.
func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}

// copyHeader copies all values from src into dst.
func copyHeader(dst, src http.Header) {
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}

// countingBody wraps the inbound request body, counting bytes and
// failing with RequestTooLargeError once the limit is crossed. The
// failure aborts the upstream write mid-stream, which is the only point
// a chunked body's size is knowable.
type countingBody struct {
	rc        io.ReadCloser
	remaining int64
	limit     int64
	read      int64
}

func (b *countingBody) Read(p []byte) (int, error) {
	if b.limit > 0 && b.remaining < 0 {
		return 0, &RequestTooLargeError{Limit: b.limit}
	}

	if b.limit > 0 && int64(len(p)) > b.remaining+1 {
		p = p[:b.remaining+1]
	}

	n, err := b.rc.Read(p)
	b.read += int64(n)
	if b.limit > 0 {
		b.remaining -= int64(n)
		if b.remaining < 0 {
			return n, &RequestTooLargeError{Limit: b.limit}
		}
	}
	return n, err
}

func (b *countingBody) Close() error {
	return b.rc.Close()
}

// flushWriter flushes after every write so response bytes reach the
// client as they arrive from the upstream.
type flushWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func (fw *flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if fw.flusher != nil {
		fw.flusher.Flush()
	}
	return n, err
}
