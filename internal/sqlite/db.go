package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/davidkramnik/telegram-bot-calculation/internal/clock"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection. Bookkeeping columns such as
// updated_at and created_at are stamped from its clock.
type DB struct {
	*sql.DB
	clock clock.Clock
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite has a single writer and ":memory:" is per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return &DB{DB: db, clock: clock.Real()}, nil
}

// SetClock replaces the clock used for bookkeeping timestamps.
func (db *DB) SetClock(c clock.Clock) {
	if c == nil {
		c = clock.Real()
	}
	db.clock = c
}

func (db *DB) now() time.Time {
	return db.clock.Now()
}

// RunMigrations creates the schema if it does not exist yet. It is safe to
// call on every start.
func (db *DB) RunMigrations() error {
	migration := `
-- Open intervals, at most one per person in a group
CREATE TABLE IF NOT EXISTS open_sessions (
    group_id INTEGER NOT NULL,
    person_id INTEGER NOT NULL,
    code TEXT NOT NULL CHECK(code IN ('restroom', 'meal', 'errand')),
    started_at INTEGER NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (group_id, person_id)
);

-- Append-only event log
CREATE TABLE IF NOT EXISTS events (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    group_id INTEGER NOT NULL,
    person_id INTEGER NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    code TEXT NOT NULL,
    label TEXT NOT NULL,
    occurred_at INTEGER NOT NULL,
    started_at INTEGER,
    ended_at INTEGER,
    duration_ns INTEGER NOT NULL DEFAULT 0,
    close_reason TEXT NOT NULL DEFAULT '',
    origin TEXT NOT NULL,
    message_ref TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_group_time ON events(group_id, occurred_at);
CREATE INDEX IF NOT EXISTS idx_events_person_time ON events(group_id, person_id, occurred_at);

-- The log is never rewritten
CREATE TRIGGER IF NOT EXISTS events_no_update BEFORE UPDATE ON events BEGIN
    SELECT RAISE(ABORT, 'events are append-only');
END;
CREATE TRIGGER IF NOT EXISTS events_no_delete BEFORE DELETE ON events BEGIN
    SELECT RAISE(ABORT, 'events are append-only');
END;
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
