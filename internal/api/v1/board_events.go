package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/agentboard/internal/domain"
	"github.com/gosuda/agentboard/internal/stream"
)

type PublishBoardEventInput struct {
	ProjectID string `header:"X-Project-ID" doc:"Project scope; overrides projectId in the body"`
	RawBody   []byte `contentType:"application/json" doc:"A board event: {projectId, message:{type, timestamp, data}}"`
}

// RegisterBoardEventRoutes exposes the hook the board service calls after
// every item or board change.
func RegisterBoardEventRoutes(api huma.API, broker stream.Broker) {
	huma.Register(api, huma.Operation{
		OperationID: "publish-board-event",
		Method:      http.MethodPost,
		Path:        "/board-events",
		Summary:     "Fan a board change out to connected dashboards",
		Tags:        []string{"Board Events"},
	}, func(ctx context.Context, input *PublishBoardEventInput) (*EnvelopeOutput, error) {
		var ev domain.BoardEvent
		if err := json.Unmarshal(input.RawBody, &ev); err != nil {
			return failure(http.StatusBadRequest, CodeValidation, "malformed board event"), nil
		}
		if id := strings.TrimSpace(input.ProjectID); id != "" {
			ev.ProjectID = id
		}
		if ev.Message.Timestamp.IsZero() {
			ev.Message.Timestamp = time.Now().UTC()
		}
		if len(ev.Message.Data) == 0 {
			ev.Message.Data = json.RawMessage("{}")
		}

		if err := stream.PublishBoardEvent(ctx, broker, ev); err != nil {
			if errors.Is(err, domain.ErrValidation) {
				return failure(http.StatusBadRequest, CodeValidation,
					"board event needs a project and one of item-added, item-moved, item-updated, item-deleted, board-updated"), nil
			}
			return fromError(err, "failed to publish board event"), nil
		}

		return ok(http.StatusAccepted, nil), nil
	})
}
