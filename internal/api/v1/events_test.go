package v1_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/agentboard/internal/api/v1"
	"github.com/gosuda/agentboard/internal/domain"
	"github.com/gosuda/agentboard/internal/ingest"
	"github.com/gosuda/agentboard/internal/stream"
)

// ---------------------------------------------------------------------------
// POST /activity
// ---------------------------------------------------------------------------

func TestIngestActivity(t *testing.T) {
	t.Parallel()

	t.Run("batch", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		svc := &mockIngestService{
			ingestActivityFunc: func(_ context.Context, projectID string, inputs []ingest.ActivityInput) (int, error) {
				assert.Equal(t, "p", projectID)
				require.Len(t, inputs, 2)
				assert.Equal(t, "warn", inputs[1].Level)
				return len(inputs), nil
			},
		}
		v1.RegisterActivityRoutes(api, svc)

		resp := api.Post("/activity", "X-Project-ID: p", jsonCT,
			strings.NewReader(`[{"message":"started"},{"message":"slow tool","level":"warn"}]`))

		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
		assert.JSONEq(t, `{"created":2}`, string(decodeEnvelope(t, resp.Body.Bytes()).Data))
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		svc := &mockIngestService{
			ingestActivityFunc: func(context.Context, string, []ingest.ActivityInput) (int, error) {
				return 0, &ingest.ValidationError{Index: 0, Message: "message is required"}
			},
		}
		v1.RegisterActivityRoutes(api, svc)

		resp := api.Post("/activity", "X-Project-ID: p", jsonCT, strings.NewReader(`{"message":""}`))
		require.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "item 0: message is required", decodeEnvelope(t, resp.Body.Bytes()).Error.Message)
	})
}

// ---------------------------------------------------------------------------
// POST /board-events
// ---------------------------------------------------------------------------

func TestPublishBoardEvent(t *testing.T) {
	t.Parallel()

	t.Run("published_to_project_channel", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		broker := &recordingBroker{}
		v1.RegisterBoardEventRoutes(api, broker)

		resp := api.Post("/board-events", jsonCT, strings.NewReader(
			`{"projectId":"p","message":{"type":"item-moved","data":{"itemId":"i","fromStage":"todo","toStage":"doing"}}}`))

		require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())
		assert.True(t, decodeEnvelope(t, resp.Body.Bytes()).Success)

		got := broker.published()
		require.Len(t, got, 1)
		assert.Equal(t, stream.BoardChannel("p"), got[0].channel)

		var msg domain.Message
		require.NoError(t, json.Unmarshal(got[0].payload, &msg))
		assert.Equal(t, domain.MessageItemMoved, msg.Type)
		assert.False(t, msg.Timestamp.IsZero(), "missing timestamp is filled in")
	})

	t.Run("header_overrides_body_project", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		broker := &recordingBroker{}
		v1.RegisterBoardEventRoutes(api, broker)

		resp := api.Post("/board-events", "X-Project-ID: from-header", jsonCT,
			strings.NewReader(`{"projectId":"from-body","message":{"type":"board-updated"}}`))

		require.Equal(t, http.StatusAccepted, resp.Code)
		got := broker.published()
		require.Len(t, got, 1)
		assert.Equal(t, stream.BoardChannel("from-header"), got[0].channel)
		assert.Contains(t, string(got[0].payload), `"data":{}`)
	})

	t.Run("rejects_polled_types", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		broker := &recordingBroker{}
		v1.RegisterBoardEventRoutes(api, broker)

		resp := api.Post("/board-events", jsonCT,
			strings.NewReader(`{"projectId":"p","message":{"type":"hook-event","data":[]}}`))

		require.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, v1.CodeValidation, decodeEnvelope(t, resp.Body.Bytes()).Error.Code)
		assert.Empty(t, broker.published())
	})

	t.Run("malformed", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterBoardEventRoutes(api, &recordingBroker{})

		resp := api.Post("/board-events", jsonCT, strings.NewReader(`{"projectId":`))
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("broker_down", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterBoardEventRoutes(api, &recordingBroker{err: errors.New("redis: connection refused")})

		resp := api.Post("/board-events", jsonCT,
			strings.NewReader(`{"projectId":"p","message":{"type":"item-deleted","data":{"itemId":"i"}}}`))

		require.Equal(t, http.StatusInternalServerError, resp.Code)
		assert.Equal(t, v1.CodeInternal, decodeEnvelope(t, resp.Body.Bytes()).Error.Code)
	})
}
