package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gosuda/agentboard/internal/domain"
)

type ActivityRepo struct {
	db *sql.DB
}

func NewActivityRepo(db *sql.DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

func (r *ActivityRepo) Append(ctx context.Context, entries []*domain.LogEntry) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("activityRepo.Append: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range entries {
		result, execErr := tx.ExecContext(ctx,
			`INSERT INTO activity_entries (project_id, agent_name, level, message, ts_us)
			 VALUES (?, ?, ?, ?, ?)`,
			e.ProjectID, e.AgentName, string(e.Level), e.Message, toMicros(e.Timestamp),
		)
		if execErr != nil {
			return 0, fmt.Errorf("activityRepo.Append: insert: %w", execErr)
		}
		if id, idErr := result.LastInsertId(); idErr == nil {
			e.ID = id
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("activityRepo.Append: commit: %w", err)
	}
	return len(entries), nil
}

func (r *ActivityRepo) ListSince(ctx context.Context, projectID string, after time.Time, limit int) ([]*domain.LogEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, project_id, agent_name, level, message, ts_us
		 FROM activity_entries WHERE project_id = ? AND ts_us > ?
		 ORDER BY ts_us ASC, id ASC
		 LIMIT ?`,
		projectID, toMicros(after), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("activityRepo.ListSince: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LogEntry
	for rows.Next() {
		var (
			e        domain.LogEntry
			level    string
			tsMicros int64
		)
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.AgentName, &level, &e.Message, &tsMicros); err != nil {
			return nil, fmt.Errorf("activityRepo.ListSince: scan: %w", err)
		}
		e.Level = domain.LogLevel(level)
		e.Timestamp = fromMicros(tsMicros)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("activityRepo.ListSince: rows: %w", err)
	}

	return entries, nil
}

func (r *ActivityRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM activity_entries WHERE ts_us < ?`, toMicros(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("activityRepo.PruneBefore: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
