package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/agentboard/internal/domain"
)

type ActivityRepo struct {
	pool *pgxpool.Pool
}

func NewActivityRepo(pool *pgxpool.Pool) *ActivityRepo {
	return &ActivityRepo{pool: pool}
}

func (r *ActivityRepo) Append(ctx context.Context, entries []*domain.LogEntry) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("activityRepo.Append: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, e := range entries {
		err = tx.QueryRow(ctx,
			`INSERT INTO activity_entries (project_id, agent_name, level, message, ts)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			e.ProjectID, e.AgentName, string(e.Level), e.Message, e.Timestamp,
		).Scan(&e.ID)
		if err != nil {
			return 0, fmt.Errorf("activityRepo.Append: insert: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("activityRepo.Append: commit: %w", err)
	}
	return len(entries), nil
}

func (r *ActivityRepo) ListSince(ctx context.Context, projectID string, after time.Time, limit int) ([]*domain.LogEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, project_id, agent_name, level, message, ts
		 FROM activity_entries WHERE project_id = $1 AND ts > $2
		 ORDER BY ts ASC, id ASC
		 LIMIT $3`,
		projectID, after, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("activityRepo.ListSince: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LogEntry
	for rows.Next() {
		var (
			e     domain.LogEntry
			level string
		)

		err = rows.Scan(&e.ID, &e.ProjectID, &e.AgentName, &level, &e.Message, &e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("activityRepo.ListSince: scan: %w", err)
		}
		e.Level = domain.LogLevel(level)
		e.Timestamp = e.Timestamp.UTC()
		entries = append(entries, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("activityRepo.ListSince: rows: %w", err)
	}

	return entries, nil
}

func (r *ActivityRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM activity_entries WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("activityRepo.PruneBefore: %w", err)
	}
	return tag.RowsAffected(), nil
}
