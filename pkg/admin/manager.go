package admin

import (
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"mercator-hq/ganymede/pkg/config"
	securityTLS "mercator-hq/ganymede/pkg/security/tls"
)

var (
	// ErrInvalidCertificate is returned when an upload does not parse as
	// the PEM kind its slot expects.
	ErrInvalidCertificate = errors.New("invalid certificate content")

	// ErrUnknownCertificate is returned for file names outside the three
	// managed slots.
	ErrUnknownCertificate = errors.New("unknown certificate file")
)

// CertType names one of the three managed certificate slots.
type CertType string

const (
	CertTypeClient CertType = "client"
	CertTypeKey    CertType = "key"
	CertTypeCA     CertType = "ca"
)

// certFiles maps each slot to its fixed on-disk name. Uploads always land
// on these names so the identity paths in the config stay stable across
// rotations.
var certFiles = map[CertType]string{
	CertTypeClient: "client.crt",
	CertTypeKey:    "client.key",
	CertTypeCA:     "ca.crt",
}

// managedNames is the reverse view of certFiles: the file names the
// delete endpoint is allowed to touch.
var managedNames = map[string]bool{
	"client.crt": true,
	"client.key": true,
	"ca.crt":     true,
}

// ParseCertType validates a cert_type form value.
func ParseCertType(s string) (CertType, error) {
	switch CertType(s) {
	case CertTypeClient, CertTypeKey, CertTypeCA:
		return CertType(s), nil
	}
	return "", fmt.Errorf("invalid certificate type %q: must be client, key, or ca", s)
}

// UpdateRequest carries the runtime-adjustable settings of a config
// update. Everything else in the configuration requires a restart.
type UpdateRequest struct {
	TargetURL             string `json:"target_url"`
	TimeoutSecs           int    `json:"timeout_secs"`
	MaxConcurrentRequests int    `json:"max_concurrent_requests"`
}

// Applier receives validated upstream settings on the live forwarding
// path. Implemented by proxy.Forwarder.
type Applier interface {
	ApplyUpstream(upstream *config.UpstreamConfig, maxBodyBytes int64) error
}

// ConcurrencySetter adjusts the in-flight request cap at runtime.
// Implemented by ratelimit.ConcurrentLimiter.
type ConcurrencySetter interface {
	SetLimit(limit int)
}

// IdentityReloader re-reads the client TLS identity from disk.
// Implemented by tls.Provider.
type IdentityReloader interface {
	Reload() error
}

// ManagerConfig carries the collaborators of a ConfigManager. Forwarder,
// Concurrency, and Identity may be nil for tools that only validate or
// persist; nil collaborators skip the live apply. An empty ConfigPath
// skips persistence.
type ManagerConfig struct {
	ConfigPath  string
	Config      *config.Config
	Forwarder   Applier
	Concurrency ConcurrencySetter
	Identity    IdentityReloader
	Logger      *slog.Logger
}

// ConfigManager owns the running configuration and the certificate
// directory on behalf of the management API. All mutations go through
// it: validate first, persist, then swap the new config in.
type ConfigManager struct {
	configPath  string
	certDir     string
	forwarder   Applier
	concurrency ConcurrencySetter
	identity    IdentityReloader
	log         *slog.Logger

	mu  sync.RWMutex
	cfg *config.Config
}

// NewConfigManager builds a ConfigManager around the given running
// configuration.
func NewConfigManager(mc ManagerConfig) (*ConfigManager, error) {
	if mc.Config == nil {
		return nil, errors.New("config is nil")
	}
	log := mc.Logger
	if log == nil {
		log = slog.Default()
	}
	return &ConfigManager{
		configPath:  mc.ConfigPath,
		certDir:     mc.Config.Admin.CertDir,
		forwarder:   mc.Forwarder,
		concurrency: mc.Concurrency,
		identity:    mc.Identity,
		log:         log,
		cfg:         mc.Config,
	}, nil
}

// Current returns a copy of the running configuration.
func (m *ConfigManager) Current() config.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.cfg
}

// Update validates the requested changes against a copy of the running
// configuration, persists the result, applies it to the live forwarding
// path, and finally swaps the copy in as the new running config. A
// validation or persistence failure leaves the running config untouched.
func (m *ConfigManager) Update(req UpdateRequest) (config.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := *m.cfg
	applyUpdate(&next, req)

	if err := config.Validate(&next); err != nil {
		return config.Config{}, err
	}

	if m.configPath != "" {
		if err := config.Save(&next, m.configPath); err != nil {
			return config.Config{}, fmt.Errorf("failed to persist configuration: %w", err)
		}
	}

	if m.forwarder != nil {
		if err := m.forwarder.ApplyUpstream(&next.Upstream, next.Server.MaxRequestSizeBytes()); err != nil {
			return config.Config{}, fmt.Errorf("failed to apply upstream settings: %w", err)
		}
	}
	if m.concurrency != nil {
		m.concurrency.SetLimit(next.Server.MaxConcurrentRequests)
	}

	m.cfg = &next
	m.log.Info("configuration updated",
		"target_url", req.TargetURL,
		"timeout_secs", req.TimeoutSecs,
		"max_concurrent_requests", req.MaxConcurrentRequests,
	)
	return next, nil
}

// Validate checks the running configuration.
func (m *ConfigManager) Validate() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return config.Validate(m.cfg)
}

// ValidateUpdate runs the same validation as Update without touching the
// live path or disk.
func (m *ConfigManager) ValidateUpdate(req UpdateRequest) error {
	m.mu.RLock()
	next := *m.cfg
	m.mu.RUnlock()

	applyUpdate(&next, req)
	return config.Validate(&next)
}

func applyUpdate(cfg *config.Config, req UpdateRequest) {
	cfg.Upstream.BaseURL = req.TargetURL
	cfg.Upstream.Timeout = time.Duration(req.TimeoutSecs) * time.Second
	cfg.Server.MaxConcurrentRequests = req.MaxConcurrentRequests
}

// SaveCertificate validates and writes an uploaded PEM file into the
// certificate directory under its slot's fixed name. Private keys are
// written 0600, certificates 0644. On success the identity paths in the
// running config are pointed at the managed files, the config is
// persisted, and a live identity reload is attempted.
func (m *ConfigManager) SaveCertificate(certType CertType, content []byte) (string, error) {
	filename, ok := certFiles[certType]
	if !ok {
		return "", fmt.Errorf("invalid certificate type %q", certType)
	}
	if len(content) == 0 {
		return "", fmt.Errorf("%w: empty upload", ErrInvalidCertificate)
	}
	if err := validateCertContent(certType, content); err != nil {
		return "", err
	}

	if err := os.MkdirAll(m.certDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create certificate directory: %w", err)
	}

	mode := os.FileMode(0o644)
	if certType == CertTypeKey {
		mode = 0o600
	}
	path := filepath.Join(m.certDir, filename)
	if err := os.WriteFile(path, content, mode); err != nil {
		return "", fmt.Errorf("failed to write certificate file: %w", err)
	}
	// WriteFile applies the mode only on create; chmod covers overwrites
	// of an existing slot.
	if err := os.Chmod(path, mode); err != nil {
		return "", fmt.Errorf("failed to set certificate permissions: %w", err)
	}

	if err := m.adoptManagedPaths(); err != nil {
		return "", err
	}

	if m.identity != nil {
		if err := m.identity.Reload(); err != nil {
			// The pair may be incomplete mid-rotation (cert uploaded,
			// key still pending); the next upload retries.
			m.log.Warn("identity reload after certificate upload failed", "error", err)
		}
	}

	m.log.Info("certificate uploaded", "type", string(certType), "file", filename)
	return filename, nil
}

// adoptManagedPaths points the client identity at the managed
// certificate files and persists the change. Each path is adopted only
// once its file actually exists, so an upload order of key-before-cert
// never leaves the config pointing at missing files.
func (m *ConfigManager) adoptManagedPaths() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := *m.cfg
	if p := filepath.Join(m.certDir, certFiles[CertTypeClient]); fileExists(p) {
		next.ClientTLS.CertFile = p
	}
	if p := filepath.Join(m.certDir, certFiles[CertTypeKey]); fileExists(p) {
		next.ClientTLS.KeyFile = p
	}
	if p := filepath.Join(m.certDir, certFiles[CertTypeCA]); fileExists(p) {
		next.ClientTLS.CAFile = p
	}

	if m.configPath != "" {
		if err := config.Save(&next, m.configPath); err != nil {
			return fmt.Errorf("failed to persist certificate paths: %w", err)
		}
	}
	m.cfg = &next
	return nil
}

// validateCertContent checks that the upload parses as the PEM kind its
// slot expects before anything lands on disk.
func validateCertContent(certType CertType, content []byte) error {
	switch certType {
	case CertTypeClient, CertTypeCA:
		if _, err := securityTLS.ParsePEMCertificate(content); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
		}
	case CertTypeKey:
		block, _ := pem.Decode(content)
		if block == nil || !strings.HasSuffix(block.Type, "PRIVATE KEY") {
			return fmt.Errorf("%w: no PEM private key block found", ErrInvalidCertificate)
		}
	}
	return nil
}

// CertificateFile describes one file in the certificate directory.
type CertificateFile struct {
	Name     string                       `json:"name"`
	Size     int64                        `json:"size"`
	Modified time.Time                    `json:"modified"`
	Managed  bool                         `json:"managed"`
	Info     *securityTLS.CertificateInfo `json:"info,omitempty"`
}

// ListCertificates returns the contents of the certificate directory in
// name order. Certificate files that parse get their subject and expiry
// attached; a missing directory is an empty list, not an error.
func (m *ConfigManager) ListCertificates() ([]CertificateFile, error) {
	entries, err := os.ReadDir(m.certDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []CertificateFile{}, nil
		}
		return nil, fmt.Errorf("failed to read certificate directory: %w", err)
	}

	files := make([]CertificateFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		cf := CertificateFile{
			Name:     entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
			Managed:  managedNames[entry.Name()],
		}
		if strings.HasSuffix(entry.Name(), ".crt") {
			if data, err := os.ReadFile(filepath.Join(m.certDir, entry.Name())); err == nil {
				if cert, err := securityTLS.ParsePEMCertificate(data); err == nil {
					cf.Info = securityTLS.ExtractCertificateInfo(cert)
				}
			}
		}
		files = append(files, cf)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// DeleteCertificate removes a managed certificate file. Only the three
// managed names may be deleted; anything else in the directory is out of
// scope for the API. Deleting a file that is already gone is not an
// error.
func (m *ConfigManager) DeleteCertificate(filename string) error {
	if !managedNames[filename] {
		return fmt.Errorf("%w: %q", ErrUnknownCertificate, filename)
	}

	path := filepath.Join(m.certDir, filename)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			m.log.Warn("certificate file already absent", "file", filename)
			return nil
		}
		return fmt.Errorf("failed to delete certificate: %w", err)
	}

	m.log.Info("certificate deleted", "file", filename)
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
