package storage

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS relationship_states (
	user_id    TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS emotional_momentum (
	user_id    TEXT PRIMARY KEY,
	momentum   TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS behavior_patterns (
	user_id    TEXT PRIMARY KEY,
	pattern    TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS milestone_events (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	milestone   TEXT NOT NULL,
	occurred_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_milestone_events_user ON milestone_events (user_id, occurred_at);
CREATE TABLE IF NOT EXISTS open_loops (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	item        TEXT NOT NULL,
	detected_at TIMESTAMP NOT NULL,
	resolved_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_open_loops_user_open ON open_loops (user_id, resolved_at);
`

// NewSQLiteStores creates SQLite-backed stores at the given path, creating
// the schema on first open. Use ":memory:" for an ephemeral database.
func NewSQLiteStores(path string) (StoreSet, error) {
	if strings.TrimSpace(path) == "" {
		return StoreSet{}, fmt.Errorf("path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return StoreSet{}, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return StoreSet{}, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return newSQLStores(db, bindQuestion), nil
}
