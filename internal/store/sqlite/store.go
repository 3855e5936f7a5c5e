// Package sqlite implements the event repositories on an embedded SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register driver

	"github.com/gosuda/agentboard/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS hook_events (
	id             INTEGER PRIMARY KEY,
	project_id     TEXT    NOT NULL,
	event_type     TEXT    NOT NULL,
	agent_name     TEXT    NOT NULL,
	tool_name      TEXT,
	status         TEXT    NOT NULL,
	duration_ms    INTEGER,
	summary        TEXT    NOT NULL DEFAULT '',
	correlation_id TEXT,
	payload        TEXT    NOT NULL,
	ts_us          INTEGER NOT NULL,
	UNIQUE (project_id, correlation_id, event_type)
);
CREATE INDEX IF NOT EXISTS hook_events_project_ts ON hook_events (project_id, ts_us, id);

CREATE TABLE IF NOT EXISTS activity_entries (
	id         INTEGER PRIMARY KEY,
	project_id TEXT    NOT NULL,
	agent_name TEXT    NOT NULL,
	level      TEXT    NOT NULL,
	message    TEXT    NOT NULL,
	ts_us      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS activity_entries_project_ts ON activity_entries (project_id, ts_us, id);
`

type Store struct {
	db       *sql.DB
	events   *HookEventRepo
	activity *ActivityRepo
}

// Open opens (or creates) the database at path with WAL journaling and a
// five second busy timeout, and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite.Open: %s: %w", path, err)
	}

	// SQLite serializes writers; one connection keeps batch transactions
	// from fighting over the write lock.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite.Open: ping %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite.Open: migrate %s: %w", path, err)
	}

	return &Store{
		db:       db,
		events:   NewHookEventRepo(db),
		activity: NewActivityRepo(db),
	}, nil
}

func dsn(path string) string {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path
	}
	return path + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("sqlite.Store.Close: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) HookEvents() domain.HookEventRepository { return s.events }
func (s *Store) Activity() domain.ActivityRepository   { return s.activity }

func toMicros(t time.Time) int64 { return t.UnixMicro() }

func fromMicros(us int64) time.Time { return time.UnixMicro(us).UTC() }
