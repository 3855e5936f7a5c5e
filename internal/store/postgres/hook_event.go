package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/agentboard/internal/domain"
)

type HookEventRepo struct {
	pool *pgxpool.Pool
}

func NewHookEventRepo(pool *pgxpool.Pool) *HookEventRepo {
	return &HookEventRepo{pool: pool}
}

func (r *HookEventRepo) InsertBatch(ctx context.Context, events []*domain.HookEvent) (domain.InsertResult, error) {
	var res domain.InsertResult

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("hookEventRepo.InsertBatch: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, e := range events {
		var id int64
		err = tx.QueryRow(ctx,
			`INSERT INTO hook_events (project_id, event_type, agent_name, tool_name, status, duration_ms,
			                          summary, correlation_id, payload, ts)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT DO NOTHING
			 RETURNING id`,
			e.ProjectID, string(e.EventType), e.AgentName, e.ToolName, string(e.Status), e.DurationMs,
			e.Summary, e.CorrelationID, string(e.Payload), e.Timestamp,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			res.Skipped++
			continue
		}
		if err != nil {
			return domain.InsertResult{}, fmt.Errorf("hookEventRepo.InsertBatch: insert: %w", err)
		}
		e.ID = id
		res.Created++
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.InsertResult{}, fmt.Errorf("hookEventRepo.InsertBatch: commit: %w", err)
	}

	return res, nil
}

const summaryColumns = `id, project_id, event_type, agent_name, tool_name, status, duration_ms,
	summary, correlation_id, ts`

func (r *HookEventRepo) ListSince(ctx context.Context, projectID string, after time.Time, limit int) ([]*domain.HookEventSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+summaryColumns+`
		 FROM hook_events WHERE project_id = $1 AND ts > $2
		 ORDER BY ts ASC, id ASC
		 LIMIT $3`,
		projectID, after, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("hookEventRepo.ListSince: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows, "hookEventRepo.ListSince")
}

func (r *HookEventRepo) ListRecent(ctx context.Context, projectID string, limit int) ([]*domain.HookEventSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+summaryColumns+`
		 FROM hook_events WHERE project_id = $1
		 ORDER BY ts DESC, id DESC
		 LIMIT $2`,
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

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM hook_events WHERE project_id = $1`,
		projectID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("hookEventRepo.Count: %w", err)
	}

	return count, nil
}

func (r *HookEventRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM hook_events WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("hookEventRepo.PruneBefore: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanSummaries(rows pgx.Rows, caller string) ([]*domain.HookEventSummary, error) {
	var events []*domain.HookEventSummary
	for rows.Next() {
		var (
			e         domain.HookEventSummary
			eventType string
			status    string
		)
		if err := rows.Scan(
			&e.ID, &e.ProjectID, &eventType, &e.AgentName, &e.ToolName, &status, &e.DurationMs,
			&e.Summary, &e.CorrelationID, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		e.EventType = domain.EventType(eventType)
		e.Status = domain.HookStatus(status)
		e.Timestamp = e.Timestamp.UTC()
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return events, nil
}
