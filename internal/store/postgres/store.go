package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/agentboard/internal/domain"
)

// Schema is applied on startup. The unique constraint on
// (project_id, correlation_id, event_type) is what makes concurrent duplicate
// submissions collapse to one row; NULL correlation ids never collide.
const Schema = `
CREATE TABLE IF NOT EXISTS hook_events (
	id             BIGSERIAL PRIMARY KEY,
	project_id     TEXT        NOT NULL,
	event_type     TEXT        NOT NULL,
	agent_name     TEXT        NOT NULL,
	tool_name      TEXT,
	status         TEXT        NOT NULL,
	duration_ms    BIGINT,
	summary        TEXT        NOT NULL DEFAULT '',
	correlation_id TEXT,
	payload        JSONB       NOT NULL,
	ts             TIMESTAMPTZ NOT NULL,
	CONSTRAINT hook_events_dedup UNIQUE (project_id, correlation_id, event_type)
);
CREATE INDEX IF NOT EXISTS hook_events_project_ts ON hook_events (project_id, ts, id);

CREATE TABLE IF NOT EXISTS activity_entries (
	id         BIGSERIAL PRIMARY KEY,
	project_id TEXT        NOT NULL,
	agent_name TEXT        NOT NULL,
	level      TEXT        NOT NULL,
	message    TEXT        NOT NULL,
	ts         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS activity_entries_project_ts ON activity_entries (project_id, ts, id);
`

type Store struct {
	pool     *pgxpool.Pool
	events   *HookEventRepo
	activity *ActivityRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	if _, err = pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: migrate: %w", err)
	}

	return &Store{
		pool:     pool,
		events:   NewHookEventRepo(pool),
		activity: NewActivityRepo(pool),
	}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) HookEvents() domain.HookEventRepository { return s.events }
func (s *Store) Activity() domain.ActivityRepository   { return s.activity }
