// Package storage persists templates and settings snapshots in sqlite.
package storage

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS templates (
  id               TEXT PRIMARY KEY,
  platform_id      TEXT NOT NULL,
  version          INTEGER NOT NULL,
  categories       TEXT NOT NULL,
  active           INTEGER NOT NULL CHECK (active IN (0,1)),
  previous_version TEXT,
  usage_count      INTEGER NOT NULL DEFAULT 0,
  annotation       TEXT,
  created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(platform_id, version)
);
CREATE INDEX IF NOT EXISTS idx_templates_platform ON templates(platform_id, active);
CREATE TABLE IF NOT EXISTS snapshots (
  id                 INTEGER PRIMARY KEY,
  user_id            TEXT NOT NULL,
  platform_id        TEXT NOT NULL,
  template_id        TEXT,
  template_optimized INTEGER NOT NULL CHECK (template_optimized IN (0,1)),
  settings           TEXT NOT NULL,
  method             TEXT NOT NULL,
  duration_ms        INTEGER NOT NULL DEFAULT 0,
  completion_rate    REAL NOT NULL DEFAULT 0,
  confidence         REAL NOT NULL DEFAULT 0,
  risk_score         INTEGER NOT NULL DEFAULT 0,
  risk_factors       TEXT,
  recommendations    TEXT,
  changes            TEXT,
  created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_snapshots_user_platform ON snapshots(user_id, platform_id, created_at);
CREATE INDEX IF NOT EXISTS idx_snapshots_time ON snapshots(created_at);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
