package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	"mercator-hq/ganymede/pkg/admin"
	"mercator-hq/ganymede/pkg/audit"
	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/limits/ratelimit"
	"mercator-hq/ganymede/pkg/proxy"
	securityTLS "mercator-hq/ganymede/pkg/security/tls"
	"mercator-hq/ganymede/pkg/telemetry/health"
	"mercator-hq/ganymede/pkg/telemetry/metrics"
	"mercator-hq/ganymede/pkg/telemetry/tracing"
	"mercator-hq/ganymede/pkg/traffic/recorder"
	"mercator-hq/ganymede/pkg/traffic/retention"
	"mercator-hq/ganymede/pkg/traffic/storage"
)

// Options carries build metadata and process-level collaborators into
// the server. ConfigPath is where config updates from the management
// API are persisted; empty disables persistence.
type Options struct {
	ConfigPath string
	Version    string
	Commit     string
	BuildTime  string
	Logger     *slog.Logger
}

// Server owns every subsystem of the proxy process: the forwarding
// path, the optional traffic and audit stores, the management
// interface, telemetry, and the certificate watcher. Start runs it
// until a signal, a context cancellation, or a fatal serve error.
type Server struct {
	cfg  *config.Config
	opts Options
	log  *slog.Logger

	identity     *securityTLS.Provider
	forwarder    *proxy.Forwarder
	rate         *ratelimit.TokenBucket
	concurrency  *ratelimit.ConcurrentLimiter
	proxyHandler *proxy.Handler

	store     *storage.SQLiteStore
	rec       *recorder.Recorder
	pruner    *retention.Pruner
	auditLog  *audit.Logger
	collector *metrics.Collector
	checker   *health.Checker
	tracer    *tracing.Tracer
	manager   *admin.ConfigManager
	adminUI   *admin.Handler
	watcher   *securityTLS.Watcher

	httpServer  *http.Server
	adminServer *http.Server

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	stopOnce     sync.Once
	closeOnce    sync.Once

	mu         sync.RWMutex
	isRunning  bool
	listenAddr net.Addr
	adminAddr  net.Addr
}

// New builds a server from a loaded configuration. Every enabled
// subsystem is constructed here; Start only binds listeners and runs.
func New(cfg *config.Config, opts Options) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		cfg:          cfg,
		opts:         opts,
		log:          log,
		shutdownChan: make(chan struct{}),
	}

	if err := s.buildComponents(); err != nil {
		s.closeStores()
		return nil, err
	}
	return s, nil
}

// buildComponents wires the subsystems in dependency order: identity
// before forwarder, stores before the recorder and the handlers that
// read them, everything before the proxy handler that ties the
// forwarding path together.
func (s *Server) buildComponents() error {
	cfg := s.cfg

	identity, err := securityTLS.NewProvider(&cfg.ClientTLS, s.log)
	if err != nil {
		return fmt.Errorf("loading client identity: %w", err)
	}
	s.identity = identity

	forwarder, err := proxy.NewForwarder(cfg, identity, s.log)
	if err != nil {
		return fmt.Errorf("building forwarder: %w", err)
	}
	s.forwarder = forwarder

	s.rate = ratelimit.NewTokenBucket(cfg.Limits.RateLimit.BurstSize, cfg.Limits.RateLimit.RequestsPerSecond)
	s.concurrency = ratelimit.NewConcurrentLimiter(cfg.Server.MaxConcurrentRequests)

	if cfg.Traffic.Enabled {
		store, err := storage.New(cfg.Traffic.DBPath, s.log)
		if err != nil {
			return fmt.Errorf("opening traffic store: %w", err)
		}
		s.store = store

		rcfg := recorder.DefaultConfig()
		rcfg.AsyncBuffer = cfg.Traffic.AsyncBuffer
		rcfg.Redact = cfg.Traffic.RedactHeaders
		s.rec = recorder.NewRecorder(store, rcfg, s.log)

		if cfg.Traffic.Retention.Days > 0 {
			s.pruner = retention.NewPruner(store, &retention.Config{
				RetentionDays: cfg.Traffic.Retention.Days,
				Schedule:      cfg.Traffic.Retention.Schedule,
				Vacuum:        cfg.Traffic.Retention.Vacuum,
			}, s.log)
		}
	}

	if cfg.Audit.Enabled {
		auditLog, err := audit.New(cfg.Audit.DBPath, s.log)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		s.auditLog = auditLog
	}

	if cfg.Telemetry.Metrics.Enabled {
		s.collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
		if s.rec != nil {
			s.collector.RegisterDroppedRecords(s.rec.Dropped)
		}
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, s.opts.Version)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	s.tracer = tracer

	if cfg.Telemetry.Health.Enabled {
		s.checker = health.New(0)
		s.registerHealthChecks()
	}

	hcfg := proxy.HandlerConfig{
		RateLimiter: s.rate,
		Concurrency: s.concurrency,
		Forwarder:   s.forwarder,
		Logger:      s.log,
	}
	// Assign optional collaborators only when present so the handler's
	// interface fields stay nil, not typed nils.
	if s.rec != nil {
		hcfg.Recorder = s.rec
	}
	if s.collector != nil {
		hcfg.Metrics = s.collector
	}
	s.proxyHandler = proxy.NewHandler(hcfg)

	if cfg.Admin.Enabled {
		manager, err := admin.NewConfigManager(admin.ManagerConfig{
			ConfigPath:  s.opts.ConfigPath,
			Config:      cfg,
			Forwarder:   s.forwarder,
			Concurrency: s.concurrency,
			Identity:    s.identity,
			Logger:      s.log,
		})
		if err != nil {
			return fmt.Errorf("building config manager: %w", err)
		}
		s.manager = manager

		acfg := admin.HandlerConfig{
			Manager: manager,
			Version: s.opts.Version,
			Logger:  s.log,
		}
		if s.store != nil {
			acfg.Traffic = s.store
		}
		if s.auditLog != nil {
			acfg.Audit = s.auditLog
		}
		s.adminUI = admin.NewHandler(acfg)
	}

	if cfg.ClientTLS.Reload.Enabled {
		paths := []string{cfg.ClientTLS.CertFile, cfg.ClientTLS.KeyFile, cfg.ClientTLS.CAFile}
		watcher, err := securityTLS.NewWatcher(paths, cfg.ClientTLS.Reload.Debounce, s.log)
		if err != nil {
			return fmt.Errorf("starting certificate watcher: %w", err)
		}
		s.watcher = watcher
	}

	return nil
}

// registerHealthChecks wires the readiness probe to the subsystems
// that can fail independently of the listener. The upstream is
// deliberately not probed: a health check must not generate upstream
// traffic.
func (s *Server) registerHealthChecks() {
	s.checker.RegisterCheck("client_identity", func(ctx context.Context) error {
		id := s.identity.Current()
		if id == nil {
			return errors.New("no client identity loaded")
		}
		leaf := id.Leaf()
		if leaf == nil {
			return errors.New("client identity has no leaf certificate")
		}
		if now := time.Now(); now.After(leaf.NotAfter) {
			return fmt.Errorf("client certificate expired %s", leaf.NotAfter.Format(time.RFC3339))
		}
		return nil
	})

	if s.store != nil {
		s.checker.RegisterCheck("traffic_store", s.store.Ping)
	}
	if s.auditLog != nil {
		s.checker.RegisterCheck("audit_log", s.auditLog.Ping)
	}
}

// Start binds the listeners, launches the background subsystems, and
// blocks until the context is cancelled, a termination signal arrives,
// Stop is called, or a listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	handler := s.buildHandler()

	s.httpServer = &http.Server{
		Handler:        handler,
		ReadTimeout:    s.cfg.Server.ReadTimeout,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
		IdleTimeout:    s.cfg.Server.IdleTimeout,
		MaxHeaderBytes: s.cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.log.Handler(), slog.LevelError),
	}

	if s.cfg.Server.TLS.Enabled {
		tlsConfig, err := securityTLS.BuildServerConfig(&s.cfg.Server.TLS)
		if err != nil {
			s.setRunning(false)
			return fmt.Errorf("configuring listener TLS: %w", err)
		}
		s.httpServer.TLSConfig = tlsConfig
	}

	ln, err := net.Listen("tcp", s.cfg.Server.ListenAddress)
	if err != nil {
		s.setRunning(false)
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.ListenAddress, err)
	}
	if s.cfg.Server.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.Server.MaxConnections)
	}

	// The dedicated management listener binds before anything starts
	// serving, so a bad admin address fails startup instead of
	// surfacing later as an async error.
	var adminLn net.Listener
	if s.adminUI != nil && s.cfg.Admin.ListenAddress != "" {
		adminLn, err = net.Listen("tcp", s.cfg.Admin.ListenAddress)
		if err != nil {
			ln.Close()
			s.setRunning(false)
			return fmt.Errorf("listening on %s: %w", s.cfg.Admin.ListenAddress, err)
		}
	}

	s.mu.Lock()
	s.listenAddr = ln.Addr()
	if adminLn != nil {
		s.adminAddr = adminLn.Addr()
	}
	s.mu.Unlock()

	if s.pruner != nil {
		if err := s.pruner.Start(ctx); err != nil {
			ln.Close()
			if adminLn != nil {
				adminLn.Close()
			}
			s.setRunning(false)
			return fmt.Errorf("starting retention pruner: %w", err)
		}
	}

	if s.watcher != nil {
		go func() {
			if err := s.watcher.Watch(ctx, s.reloadIdentity); err != nil {
				s.log.Error("certificate watcher stopped", "error", err)
			}
		}()
	}

	errChan := make(chan error, 2)

	go func() {
		s.log.Info("proxy server listening",
			"address", ln.Addr().String(),
			"tls", s.cfg.Server.TLS.Enabled,
			"target", s.forwarder.Target().Redacted(),
		)

		var serveErr error
		if s.cfg.Server.TLS.Enabled {
			serveErr = s.httpServer.ServeTLS(ln, "", "")
		} else {
			serveErr = s.httpServer.Serve(ln)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- fmt.Errorf("proxy server: %w", serveErr)
		}
	}()

	if adminLn != nil {
		s.adminServer = &http.Server{
			Handler:        s.buildAdminHandler(),
			ReadTimeout:    s.cfg.Server.ReadTimeout,
			WriteTimeout:   s.cfg.Server.WriteTimeout,
			IdleTimeout:    s.cfg.Server.IdleTimeout,
			MaxHeaderBytes: s.cfg.Server.MaxHeaderBytes,
			ErrorLog:       slog.NewLogLogger(s.log.Handler(), slog.LevelError),
		}
		go func() {
			s.log.Info("management interface listening", "address", adminLn.Addr().String())
			if err := s.adminServer.Serve(adminLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("management server: %w", err)
			}
		}()
	}

	s.auditEvent(ctx, audit.EventServerStart,
		fmt.Sprintf("server started on %s", ln.Addr().String()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.log.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.log.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.Shutdown(context.Background())
		return err
	case <-s.shutdownChan:
		s.log.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown drains the listeners within the configured timeout, then
// releases the background subsystems and stores. Safe to call more
// than once; only the first call does the work.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.log.Info("initiating graceful shutdown", "timeout", s.cfg.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
		defer cancel()

		s.auditEvent(shutdownCtx, audit.EventServerStop, "server stopping")

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.log.Error("error during server shutdown", "error", err)
				shutdownErr = errors.Join(shutdownErr, fmt.Errorf("proxy server shutdown: %w", err))
			}
		}
		if s.adminServer != nil {
			if err := s.adminServer.Shutdown(shutdownCtx); err != nil {
				s.log.Error("error during management server shutdown", "error", err)
				shutdownErr = errors.Join(shutdownErr, fmt.Errorf("management server shutdown: %w", err))
			}
		}

		if s.watcher != nil {
			if err := s.watcher.Stop(); err != nil {
				s.log.Warn("error stopping certificate watcher", "error", err)
			}
		}
		if s.pruner != nil {
			s.pruner.Stop()
		}
		if s.tracer != nil {
			if err := s.tracer.Shutdown(shutdownCtx); err != nil {
				s.log.Warn("error flushing traces", "error", err)
			}
		}

		// Stores close last so in-flight records and the stop event
		// still land.
		s.closeStores()

		s.setRunning(false)
		s.log.Info("proxy server stopped")
	})

	return shutdownErr
}

// Stop requests a shutdown from outside Start's select loop.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.shutdownChan)
	})
}

// closeStores flushes the recorder and closes the SQLite handles, at
// most once. Order matters: the recorder drains into the traffic
// store, so it goes first.
func (s *Server) closeStores() {
	s.closeOnce.Do(func() {
		if s.rec != nil {
			if err := s.rec.Close(); err != nil {
				s.log.Warn("error closing traffic recorder", "error", err)
			}
		}
		if s.store != nil {
			if err := s.store.Close(); err != nil {
				s.log.Warn("error closing traffic store", "error", err)
			}
		}
		if s.auditLog != nil {
			if err := s.auditLog.Close(); err != nil {
				s.log.Warn("error closing audit log", "error", err)
			}
		}
	})
}

// reloadIdentity is the certificate watcher callback: re-read the
// client identity from disk and drop pooled upstream connections so new
// handshakes present the new certificate.
func (s *Server) reloadIdentity() error {
	if err := s.identity.Reload(); err != nil {
		return err
	}
	s.forwarder.CloseIdleConnections()
	return nil
}

func (s *Server) auditEvent(ctx context.Context, typ audit.EventType, details string) {
	if s.auditLog == nil {
		return
	}
	if err := s.auditLog.Record(ctx, audit.Event{Type: typ, Details: details}); err != nil {
		s.log.Warn("failed to record audit event", "event_type", string(typ), "error", err)
	}
}

func (s *Server) setRunning(running bool) {
	s.mu.Lock()
	s.isRunning = running
	s.mu.Unlock()
}

// IsRunning reports whether Start is active.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound proxy listener address, or nil before Start.
// With a ":0" listen address this is where the ephemeral port shows up.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listenAddr
}

// AdminAddr returns the bound management listener address, or nil when
// the management interface shares the proxy listener or before Start.
func (s *Server) AdminAddr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adminAddr
}

// Handler returns the fully assembled HTTP handler without binding a
// listener.
func (s *Server) Handler() http.Handler {
	return s.buildHandler()
}
