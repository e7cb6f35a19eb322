package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"mercator-hq/ganymede/pkg/traffic"
)

const (
	busyTimeout = 5 * time.Second

	// defaultSearchLimit and maxSearchLimit bound LEFT JOIN result sets.
	defaultSearchLimit = 100
	maxSearchLimit     = 1000
)

// SQLiteStore persists traffic records in a SQLite database. It is the
// storage behind the traffic history search, the dashboard stats, and
// retention pruning. One store serves all goroutines; writes are
// serialized on a single connection.
type SQLiteStore struct {
	db  *sql.DB
	log *slog.Logger
	mu  sync.Mutex

	saveRequestStmt  *sql.Stmt
	saveResponseStmt *sql.Stmt

	closeOnce sync.Once
	closeErr  error
}

// New opens (creating if needed) the traffic database at path.
func New(path string, log *slog.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, traffic.NewStorageError("open", fmt.Errorf("database path cannot be empty"))
	}
	if log == nil {
		log = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, traffic.NewStorageError("open", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, traffic.NewStorageError("open", err)
	}

	// SQLite supports a single writer; one connection avoids lock
	// contention and keeps the session pragmas in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db, log: log}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("traffic store opened", "path", path, "schema_version", SchemaVersion)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return traffic.NewStorageError("enable_wal", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeout.Milliseconds())); err != nil {
		return traffic.NewStorageError("set_busy_timeout", err)
	}
	if _, err := s.db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		return traffic.NewStorageError("set_synchronous", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return traffic.NewStorageError("create_schema", err)
	}
	if _, err := s.db.Exec(insertSchemaVersion, SchemaVersion); err != nil {
		return traffic.NewStorageError("insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(getSchemaVersion).Scan(&version); err != nil {
		return traffic.NewStorageError("get_schema_version", err)
	}
	if version != SchemaVersion {
		return traffic.NewStorageError("schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return s.prepareStatements()
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	// Request IDs may be client supplied and can collide; the first
	// record wins, replays never rewrite history.
	s.saveRequestStmt, err = s.db.Prepare(`
		INSERT INTO requests (id, timestamp, method, path, headers, body_size, client_addr)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return traffic.NewStorageError("prepare_save_request", err)
	}

	s.saveResponseStmt, err = s.db.Prepare(`
		INSERT INTO responses (request_id, timestamp, status_code, headers, body_size, duration_ms, error_category)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO NOTHING
	`)
	if err != nil {
		return traffic.NewStorageError("prepare_save_response", err)
	}

	return nil
}

// SaveRequest persists one request record.
func (s *SQLiteStore) SaveRequest(ctx context.Context, rec traffic.RequestRecord) error {
	headers, err := json.Marshal(rec.Headers)
	if err != nil {
		return traffic.NewStorageError("encode_request_headers", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.saveRequestStmt.ExecContext(ctx,
		rec.ID,
		rec.Timestamp.UnixMilli(),
		rec.Method,
		rec.Path,
		string(headers),
		rec.BodySize,
		rec.ClientAddr,
	)
	if err != nil {
		return traffic.NewStorageError("save_request", err)
	}
	return nil
}

// SaveResponse persists one response record.
func (s *SQLiteStore) SaveResponse(ctx context.Context, rec traffic.ResponseRecord) error {
	headers, err := json.Marshal(rec.Headers)
	if err != nil {
		return traffic.NewStorageError("encode_response_headers", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.saveResponseStmt.ExecContext(ctx,
		rec.RequestID,
		rec.Timestamp.UnixMilli(),
		rec.StatusCode,
		string(headers),
		rec.BodySize,
		rec.DurationMS,
		rec.ErrorCategory,
	)
	if err != nil {
		return traffic.NewStorageError("save_response", err)
	}
	return nil
}

// Search returns requests joined with their outcomes, newest first.
func (s *SQLiteStore) Search(ctx context.Context, q traffic.Query) ([]traffic.Entry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	query := `
		SELECT r.id, r.timestamp, r.method, r.path, r.headers, r.body_size, r.client_addr,
		       resp.timestamp, resp.status_code, resp.headers, resp.body_size, resp.duration_ms, resp.error_category
		FROM requests r
		LEFT JOIN responses resp ON r.id = resp.request_id
		WHERE 1=1`
	var args []any

	if !q.Start.IsZero() {
		query += " AND r.timestamp >= ?"
		args = append(args, q.Start.UnixMilli())
	}
	if !q.End.IsZero() {
		query += " AND r.timestamp <= ?"
		args = append(args, q.End.UnixMilli())
	}
	if q.Method != "" {
		query += " AND r.method = ?"
		args = append(args, q.Method)
	}
	if q.Status != 0 {
		query += " AND resp.status_code = ?"
		args = append(args, q.Status)
	}

	query += " ORDER BY r.timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, traffic.NewStorageError("search", err)
	}
	defer rows.Close()

	var entries []traffic.Entry
	for rows.Next() {
		var (
			req        traffic.RequestRecord
			reqTS      int64
			reqHeaders string

			respTS       sql.NullInt64
			respStatus   sql.NullInt64
			respHeaders  sql.NullString
			respBody     sql.NullInt64
			respDuration sql.NullInt64
			respCategory sql.NullString
		)

		err := rows.Scan(
			&req.ID, &reqTS, &req.Method, &req.Path, &reqHeaders, &req.BodySize, &req.ClientAddr,
			&respTS, &respStatus, &respHeaders, &respBody, &respDuration, &respCategory,
		)
		if err != nil {
			return nil, traffic.NewStorageError("scan", err)
		}

		req.Timestamp = time.UnixMilli(reqTS).UTC()
		req.Headers = decodeHeaders(reqHeaders)

		entry := traffic.Entry{Request: req}
		if respTS.Valid {
			entry.Response = &traffic.ResponseRecord{
				RequestID:     req.ID,
				Timestamp:     time.UnixMilli(respTS.Int64).UTC(),
				StatusCode:    int(respStatus.Int64),
				Headers:       decodeHeaders(respHeaders.String),
				BodySize:      respBody.Int64,
				DurationMS:    respDuration.Int64,
				ErrorCategory: respCategory.String,
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, traffic.NewStorageError("search", err)
	}

	return entries, nil
}

// decodeHeaders tolerates malformed stored header JSON; a corrupt row
// should not take the whole search down.
func decodeHeaders(raw string) http.Header {
	if raw == "" {
		return nil
	}
	var h http.Header
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return nil
	}
	return h
}

// Stats computes the dashboard summary.
func (s *SQLiteStore) Stats(ctx context.Context) (traffic.Stats, error) {
	now := time.Now().UTC()
	stats := traffic.Stats{LastUpdated: now}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM requests").Scan(&stats.TotalRequests)
	if err != nil {
		return stats, traffic.NewStorageError("stats", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status_code >= 100 AND status_code < 400 THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(duration_ms), 0)
		FROM responses
	`).Scan(&stats.TotalResponses, &stats.SuccessfulRequests, &stats.AvgDurationMS)
	if err != nil {
		return stats, traffic.NewStorageError("stats", err)
	}

	// Requests without a recorded outcome count as errors.
	stats.ErrorRequests = stats.TotalRequests - stats.SuccessfulRequests
	if stats.TotalRequests > 0 {
		stats.SuccessRate = float64(stats.SuccessfulRequests) / float64(stats.TotalRequests) * 100
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM requests WHERE timestamp >= ?",
		now.Add(-time.Hour).UnixMilli(),
	).Scan(&stats.RequestsLastHour)
	if err != nil {
		return stats, traffic.NewStorageError("stats", err)
	}

	return stats, nil
}

// Cleanup deletes requests older than cutoff along with their
// responses, returning the number of requests removed. With vacuum set
// the database file is compacted afterwards.
func (s *SQLiteStore) Cleanup(ctx context.Context, cutoff time.Time, vacuum bool) (int64, error) {
	cutoffMS := cutoff.UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Responses first so no row ever references a deleted request.
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM responses WHERE request_id IN (SELECT id FROM requests WHERE timestamp < ?)",
		cutoffMS,
	)
	if err != nil {
		return 0, traffic.NewStorageError("cleanup_responses", err)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM requests WHERE timestamp < ?", cutoffMS)
	if err != nil {
		return 0, traffic.NewStorageError("cleanup_requests", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, traffic.NewStorageError("cleanup_requests", err)
	}

	if vacuum {
		if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
			return deleted, traffic.NewStorageError("vacuum", err)
		}
	}

	return deleted, nil
}

// Ping verifies the database is reachable, for readiness checks.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return traffic.NewStorageError("ping", err)
	}
	return nil
}

// Close releases the prepared statements and the database handle.
func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() {
		if s.saveRequestStmt != nil {
			s.saveRequestStmt.Close()
		}
		if s.saveResponseStmt != nil {
			s.saveResponseStmt.Close()
		}
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
