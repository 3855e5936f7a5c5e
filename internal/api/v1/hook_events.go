package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/agentboard/internal/domain"
	"github.com/gosuda/agentboard/internal/ingest"
)

// maxIngestBody fits a full batch of maximum-size payloads.
const maxIngestBody = int64(ingest.MaxBatchSize) * (domain.MaxPayloadBytes + 4<<10)

type IngestHookEventsInput struct {
	ProjectID string `header:"X-Project-ID" doc:"Project the events belong to"`
	RawBody   []byte `contentType:"application/json" doc:"One hook event or an array of at most 100"`
}

type ListHookEventsInput struct {
	ProjectID string `header:"X-Project-ID" doc:"Project to list"`
	Limit     int    `query:"limit" default:"50" minimum:"1" maximum:"500" doc:"Maximum number of events"`
}

func RegisterHookEventRoutes(api huma.API, svc IngestService, events HookEventLister) {
	huma.Register(api, huma.Operation{
		OperationID:  "ingest-hook-events",
		Method:       http.MethodPost,
		Path:         "/hook-events",
		Summary:      "Record hook events from an agent",
		Tags:         []string{"Hook Events"},
		MaxBodyBytes: maxIngestBody,
	}, func(ctx context.Context, input *IngestHookEventsInput) (*EnvelopeOutput, error) {
		projectID, bad := projectScope(input.ProjectID)
		if bad != nil {
			return bad, nil
		}

		batch, err := ingest.DecodeBatch[ingest.HookEventInput](input.RawBody)
		if err != nil {
			return fromError(err, "invalid hook event batch"), nil
		}

		res, err := svc.IngestHookEvents(ctx, projectID, batch)
		if err != nil {
			return fromError(err, "failed to store hook events"), nil
		}

		return ok(http.StatusCreated, res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-hook-events",
		Method:      http.MethodGet,
		Path:        "/hook-events",
		Summary:     "List the most recent hook events of a project",
		Tags:        []string{"Hook Events"},
	}, func(ctx context.Context, input *ListHookEventsInput) (*EnvelopeOutput, error) {
		projectID, bad := projectScope(input.ProjectID)
		if bad != nil {
			return bad, nil
		}

		list, err := events.ListRecent(ctx, projectID, input.Limit)
		if err != nil {
			return fromError(err, "failed to list hook events"), nil
		}
		if list == nil {
			list = make([]*domain.HookEventSummary, 0)
		}

		return ok(http.StatusOK, list), nil
	})
}
