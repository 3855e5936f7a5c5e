// Package ingest validates and stores hook-event and activity submissions.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/agentboard/internal/domain"
)

// Service is the write path for hook events and activity entries.
type Service struct {
	events   domain.HookEventRepository
	activity domain.ActivityRepository
	now      func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source used for missing timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(events domain.HookEventRepository, activity domain.ActivityRepository, opts ...Option) *Service {
	s := &Service{
		events:   events,
		activity: activity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func requireProject(projectID string) (string, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return "", invalid(-1, "X-Project-ID header is required")
	}
	return projectID, nil
}

// IngestHookEvents validates every submission before writing any of them,
// then stores the batch atomically. Duplicates of an existing
// (project, correlation id, event type) are counted as skipped.
func (s *Service) IngestHookEvents(ctx context.Context, projectID string, inputs []HookEventInput) (domain.InsertResult, error) {
	projectID, err := requireProject(projectID)
	if err != nil {
		return domain.InsertResult{}, err
	}
	if len(inputs) == 0 {
		return domain.InsertResult{}, invalid(-1, "batch must contain at least one item")
	}
	if len(inputs) > MaxBatchSize {
		return domain.InsertResult{}, invalid(-1, "batch of %d exceeds the limit of %d", len(inputs), MaxBatchSize)
	}

	now := s.now()
	events := make([]*domain.HookEvent, 0, len(inputs))
	for i, in := range inputs {
		ev, convErr := toHookEvent(i, projectID, in, now)
		if convErr != nil {
			return domain.InsertResult{}, convErr
		}
		events = append(events, ev)
	}

	res, err := s.events.InsertBatch(ctx, events)
	if err != nil {
		return domain.InsertResult{}, fmt.Errorf("ingest.Service.IngestHookEvents: %w", err)
	}

	log.Debug().
		Str("project_id", projectID).
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Msg("hook events ingested")

	return res, nil
}

// IngestActivity stores activity entries. Entries have no dedup key.
func (s *Service) IngestActivity(ctx context.Context, projectID string, inputs []ActivityInput) (int, error) {
	projectID, err := requireProject(projectID)
	if err != nil {
		return 0, err
	}
	if len(inputs) == 0 {
		return 0, invalid(-1, "batch must contain at least one item")
	}
	if len(inputs) > MaxBatchSize {
		return 0, invalid(-1, "batch of %d exceeds the limit of %d", len(inputs), MaxBatchSize)
	}

	now := s.now()
	entries := make([]*domain.LogEntry, 0, len(inputs))
	for i, in := range inputs {
		entry, convErr := toLogEntry(i, projectID, in, now)
		if convErr != nil {
			return 0, convErr
		}
		entries = append(entries, entry)
	}

	n, err := s.activity.Append(ctx, entries)
	if err != nil {
		return 0, fmt.Errorf("ingest.Service.IngestActivity: %w", err)
	}
	return n, nil
}
