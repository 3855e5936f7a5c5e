package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/gosuda/agentboard/internal/domain"
)

type HookEventRepo struct {
	db *sql.DB
}

func NewHookEventRepo(db *sql.DB) *HookEventRepo {
	return &HookEventRepo{db: db}
}

func (r *HookEventRepo) InsertBatch(ctx context.Context, events []*domain.HookEvent) (domain.InsertResult, error) {
	var res domain.InsertResult

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("hookEventRepo.InsertBatch: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO hook_events (project_id, event_type, agent_name, tool_name, status, duration_ms,
		                          summary, correlation_id, payload, ts_us)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`)
	if err != nil {
		return res, fmt.Errorf("hookEventRepo.InsertBatch: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		result, execErr := stmt.ExecContext(ctx,
			e.ProjectID, string(e.EventType), e.AgentName, e.ToolName, string(e.Status), e.DurationMs,
			e.Summary, e.CorrelationID, string(e.Payload), toMicros(e.Timestamp),
		)
		if execErr != nil {
			return domain.InsertResult{}, fmt.Errorf("hookEventRepo.InsertBatch: insert: %w", execErr)
		}

		n, _ := result.RowsAffected()
		if n == 0 {
			res.Skipped++
			continue
		}
		res.Created++
		if id, idErr := result.LastInsertId(); idErr == nil {
			e.ID = id
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.InsertResult{}, fmt.Errorf("hookEventRepo.InsertBatch: commit: %w", err)
	}

	return res, nil
}

const summaryColumns = `id, project_id, event_type, agent_name, tool_name, status, duration_ms,
	summary, correlation_id, ts_us`

func (r *HookEventRepo) ListSince(ctx context.Context, projectID string, after time.Time, limit int) ([]*domain.HookEventSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+summaryColumns+`
		 FROM hook_events WHERE project_id = ? AND ts_us > ?
		 ORDER BY ts_us ASC, id ASC
		 LIMIT ?`,
		projectID, toMicros(after), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("hookEventRepo.ListSince: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows, "hookEventRepo.ListSince")
}

// ListRecent returns the newest events in ascending order.
func (r *HookEventRepo) ListRecent(ctx context.Context, projectID string, limit int) ([]*domain.HookEventSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+summaryColumns+`
		 FROM hook_events WHERE project_id = ?
		 ORDER BY ts_us DESC, id DESC
		 LIMIT ?`,
		projectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("hookEventRepo.ListRecent: %w", err)
	}
	defer rows.Close()

	events, err := scanSummaries(rows, "hookEventRepo.ListRecent")
	if err != nil {
		return nil, err
	}
	slices.Reverse(events)
	return events, nil
}

func (r *HookEventRepo) Count(ctx context.Context, projectID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM hook_events WHERE project_id = ?`, projectID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("hookEventRepo.Count: %w", err)
	}
	return count, nil
}

func (r *HookEventRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM hook_events WHERE ts_us < ?`, toMicros(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("hookEventRepo.PruneBefore: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

func scanSummaries(rows *sql.Rows, caller string) ([]*domain.HookEventSummary, error) {
	var events []*domain.HookEventSummary
	for rows.Next() {
		var (
			e         domain.HookEventSummary
			eventType string
			status    string
			tsMicros  int64
		)
		if err := rows.Scan(
			&e.ID, &e.ProjectID, &eventType, &e.AgentName, &e.ToolName, &status, &e.DurationMs,
			&e.Summary, &e.CorrelationID, &tsMicros,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		e.EventType = domain.EventType(eventType)
		e.Status = domain.HookStatus(status)
		e.Timestamp = fromMicros(tsMicros)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return events, nil
}
