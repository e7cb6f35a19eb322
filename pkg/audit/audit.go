// Package audit records management-plane actions (config updates,
// certificate changes, server lifecycle) in a SQLite log so operators
// can answer "who changed what, when".
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// EventType classifies an audit event.
type EventType string

const (
	EventConfigUpdate      EventType = "config_update"
	EventConfigValidation  EventType = "config_validation"
	EventCertificateUpload EventType = "certificate_upload"
	EventCertificateDelete EventType = "certificate_delete"
	EventServerStart       EventType = "server_start"
	EventServerStop        EventType = "server_stop"
)

// Event is one audit log entry.
type Event struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"event_type"`
	Details    string    `json:"details"`
	User       string    `json:"user,omitempty"`
	RemoteAddr string    `json:"ip_address,omitempty"`
}

// Stats summarizes the audit log for the dashboard.
type Stats struct {
	TotalEvents           int64 `json:"total_events"`
	EventsToday           int64 `json:"events_today"`
	ConfigUpdates         int64 `json:"config_updates"`
	CertificateOperations int64 `json:"certificate_operations"`
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TEXT NOT NULL,
    event_type TEXT NOT NULL,
    details TEXT NOT NULL,
    user TEXT,
    ip_address TEXT
);

CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_event_type ON audit_logs(event_type);
`

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// Logger writes and reads the audit log.
type Logger struct {
	db  *sql.DB
	log *slog.Logger
	mu  sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// New opens (creating if needed) the audit database at path.
func New(path string, log *slog.Logger) (*Logger, error) {
	if path == "" {
		return nil, fmt.Errorf("audit database path cannot be empty")
	}
	if log == nil {
		log = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		path, int((5 * time.Second).Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	return &Logger{db: db, log: log.With("component", "audit")}, nil
}

// Record appends one event to the audit log. Timestamp and ID are
// assigned here; values already set on ev are ignored.
func (l *Logger) Record(ctx context.Context, ev Event) error {
	ts := time.Now().UTC()

	l.mu.Lock()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_logs (timestamp, event_type, details, user, ip_address)
		 VALUES (?, ?, ?, ?, ?)`,
		ts.Format(time.RFC3339),
		string(ev.Type),
		ev.Details,
		nullable(ev.User),
		nullable(ev.RemoteAddr),
	)
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}

	l.log.Info("audit event",
		"event_type", ev.Type,
		"details", ev.Details,
	)
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Recent returns the newest audit events, up to limit (default 50,
// capped at 500).
func (l *Logger) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, timestamp, event_type, details, user, ip_address
		 FROM audit_logs
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev   Event
			ts   string
			user sql.NullString
			addr sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ts, &ev.Type, &ev.Details, &user, &addr); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("invalid audit timestamp %q: %w", ts, err)
		}
		ev.Timestamp = parsed
		ev.User = user.String
		ev.RemoteAddr = addr.String
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}

	return events, nil
}

// Stats summarizes the audit log.
func (l *Logger) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM audit_logs").Scan(&stats.TotalEvents)
	if err != nil {
		return stats, fmt.Errorf("failed to compute audit stats: %w", err)
	}

	err = l.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM audit_logs WHERE date(timestamp) = date('now')").
		Scan(&stats.EventsToday)
	if err != nil {
		return stats, fmt.Errorf("failed to compute audit stats: %w", err)
	}

	err = l.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM audit_logs WHERE event_type = ?",
		string(EventConfigUpdate)).Scan(&stats.ConfigUpdates)
	if err != nil {
		return stats, fmt.Errorf("failed to compute audit stats: %w", err)
	}

	err = l.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM audit_logs WHERE event_type IN (?, ?)",
		string(EventCertificateUpload), string(EventCertificateDelete)).
		Scan(&stats.CertificateOperations)
	if err != nil {
		return stats, fmt.Errorf("failed to compute audit stats: %w", err)
	}

	return stats, nil
}

// Ping verifies the database is reachable, for readiness checks.
func (l *Logger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Close releases the database handle.
func (l *Logger) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.db.Close()
	})
	return l.closeErr
}
