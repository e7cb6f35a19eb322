package storage

// SchemaVersion is the current traffic database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the traffic database.
// Timestamps are stored as Unix milliseconds so range scans ride the
// index without string parsing.
const Schema = `
CREATE TABLE IF NOT EXISTS requests (
    id TEXT PRIMARY KEY,
    timestamp INTEGER NOT NULL,
    method TEXT NOT NULL,
    path TEXT NOT NULL,
    headers TEXT NOT NULL,
    body_size INTEGER NOT NULL,
    client_addr TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS responses (
    request_id TEXT PRIMARY KEY,
    timestamp INTEGER NOT NULL,
    status_code INTEGER NOT NULL,
    headers TEXT NOT NULL,
    body_size INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    error_category TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (request_id) REFERENCES requests (id)
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_requests_timestamp ON requests(timestamp);
CREATE INDEX IF NOT EXISTS idx_responses_timestamp ON responses(timestamp);
CREATE INDEX IF NOT EXISTS idx_responses_status ON responses(status_code);
`

const insertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

const getSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
