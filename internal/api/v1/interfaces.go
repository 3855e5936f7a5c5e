package v1

import (
	"context"

	"github.com/gosuda/agentboard/internal/domain"
	"github.com/gosuda/agentboard/internal/ingest"
)

// IngestService abstracts the write path for handler testing.
// *ingest.Service satisfies this interface.
type IngestService interface {
	IngestHookEvents(ctx context.Context, projectID string, inputs []ingest.HookEventInput) (domain.InsertResult, error)
	IngestActivity(ctx context.Context, projectID string, inputs []ingest.ActivityInput) (int, error)
}

// HookEventLister serves the initial paint of the hook-event timeline.
// domain.HookEventRepository satisfies this interface.
type HookEventLister interface {
	ListRecent(ctx context.Context, projectID string, limit int) ([]*domain.HookEventSummary, error)
}
