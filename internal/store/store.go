// Package store provides the SQLite-backed persistence layer for
// documents, action items, issues and personal tasks.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("store: not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS issues (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	title           TEXT NOT NULL,
	sender          TEXT,
	ref_number      TEXT,
	category        TEXT,
	status          TEXT DEFAULT 'open',
	first_seen      TEXT,
	latest_date     TEXT,
	latest_deadline TEXT,
	urgency         TEXT DEFAULT 'normal',
	notes           TEXT
);

CREATE TABLE IF NOT EXISTS documents (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	filename        TEXT UNIQUE NOT NULL,
	processed_at    TEXT NOT NULL,
	doc_type        TEXT,
	doc_date        TEXT,
	sender          TEXT,
	subject         TEXT,
	amount          REAL,
	deadline        TEXT,
	urgency         TEXT DEFAULT 'normal',
	letter_type     TEXT,
	summary_en      TEXT,
	recommendation  TEXT,
	json_path       TEXT,
	page_count      INTEGER DEFAULT 1,
	status          TEXT DEFAULT 'new',
	issue_id        INTEGER REFERENCES issues(id)
);

CREATE INDEX IF NOT EXISTS idx_documents_issue ON documents(issue_id);

CREATE TABLE IF NOT EXISTS action_items (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	doc_id          INTEGER REFERENCES documents(id),
	action_text     TEXT NOT NULL,
	deadline        TEXT,
	done            INTEGER DEFAULT 0,
	done_at         TEXT,
	notes           TEXT
);

CREATE INDEX IF NOT EXISTS idx_action_items_doc ON action_items(doc_id);

CREATE TABLE IF NOT EXISTS personal_tasks (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	task_text       TEXT NOT NULL,
	deadline        TEXT,
	done            INTEGER DEFAULT 0,
	done_at         TEXT,
	created_at      TEXT NOT NULL,
	notes           TEXT
);
`

// Store wraps a sql.DB with document-tracking operations.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
// WAL and a busy timeout keep concurrent readers (dashboard, watcher,
// CLI) from blocking each other.
func Open(path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func strOrEmpty(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func strPtr(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if nf.Valid {
		return &nf.Float64
	}
	return nil
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if ni.Valid {
		return &ni.Int64
	}
	return nil
}

func derefOrNil[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
