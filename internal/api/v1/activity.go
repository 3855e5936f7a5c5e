package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/agentboard/internal/ingest"
)

type IngestActivityInput struct {
	ProjectID string `header:"X-Project-ID" doc:"Project the entries belong to"`
	RawBody   []byte `contentType:"application/json" doc:"One activity entry or an array of at most 100"`
}

type ActivityResult struct {
	Created int `json:"created"`
}

func RegisterActivityRoutes(api huma.API, svc IngestService) {
	huma.Register(api, huma.Operation{
		OperationID: "ingest-activity",
		Method:      http.MethodPost,
		Path:        "/activity",
		Summary:     "Append entries to the agent activity feed",
		Tags:        []string{"Activity"},
	}, func(ctx context.Context, input *IngestActivityInput) (*EnvelopeOutput, error) {
		projectID, bad := projectScope(input.ProjectID)
		if bad != nil {
			return bad, nil
		}

		batch, err := ingest.DecodeBatch[ingest.ActivityInput](input.RawBody)
		if err != nil {
			return fromError(err, "invalid activity batch"), nil
		}

		n, err := svc.IngestActivity(ctx, projectID, batch)
		if err != nil {
			return fromError(err, "failed to store activity"), nil
		}

		return ok(http.StatusCreated, ActivityResult{Created: n}), nil
	})
}
