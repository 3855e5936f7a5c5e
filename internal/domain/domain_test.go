package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/agentboard/internal/domain"
)

// ---------------------------------------------------------------------------
// 1. EventType validity and status defaults.
// ---------------------------------------------------------------------------

func TestEventType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		eventType domain.EventType
		valid     bool
		status    domain.HookStatus
	}{
		{domain.EventPreToolUse, true, domain.HookStatusPending},
		{domain.EventPostToolUse, true, domain.HookStatusSuccess},
		{domain.EventPostToolUseFailure, true, domain.HookStatusFailure},
		{domain.EventSubagentStart, true, domain.HookStatusUnknown},
		{domain.EventSubagentStop, true, domain.HookStatusUnknown},
		{domain.EventStop, true, domain.HookStatusUnknown},
		{"PreToolUse", false, domain.HookStatusUnknown},
		{"", false, domain.HookStatusUnknown},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.valid, tt.eventType.Valid())
			assert.Equal(t, tt.status, tt.eventType.DefaultStatus())
		})
	}
}

// ---------------------------------------------------------------------------
// 2. Enum validity.
// ---------------------------------------------------------------------------

func TestHookStatus_Valid(t *testing.T) {
	t.Parallel()

	for _, s := range []domain.HookStatus{
		domain.HookStatusPending, domain.HookStatusSuccess, domain.HookStatusFailure,
		domain.HookStatusDenied, domain.HookStatusUnknown,
	} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, domain.HookStatus("ok").Valid())
}

func TestLogLevel_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, domain.LogLevelInfo.Valid())
	assert.True(t, domain.LogLevelWarn.Valid())
	assert.True(t, domain.LogLevelError.Valid())
	assert.False(t, domain.LogLevel("debug").Valid())
}

func TestMessageType_IsBoardEvent(t *testing.T) {
	t.Parallel()

	pushed := []domain.MessageType{
		domain.MessageItemAdded, domain.MessageItemMoved, domain.MessageItemUpdated,
		domain.MessageItemDeleted, domain.MessageBoardUpdated,
	}
	for _, mt := range pushed {
		assert.True(t, mt.IsBoardEvent(), mt)
	}
	assert.False(t, domain.MessageHookEvent.IsBoardEvent())
	assert.False(t, domain.MessageActivityEntry.IsBoardEvent())
}

// ---------------------------------------------------------------------------
// 3. Projections and envelopes.
// ---------------------------------------------------------------------------

func TestHookEvent_ToSummary(t *testing.T) {
	t.Parallel()

	tool := "Edit"
	ts := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	e := &domain.HookEvent{
		ID:        7,
		ProjectID: "p",
		EventType: domain.EventPreToolUse,
		AgentName: "coder",
		ToolName:  &tool,
		Status:    domain.HookStatusPending,
		Payload:   json.RawMessage(`{"secret":"not streamed"}`),
		Timestamp: ts,
	}

	s := e.ToSummary()
	assert.Equal(t, int64(7), s.ID)
	assert.Equal(t, &tool, s.ToolName)
	assert.Equal(t, ts, s.Timestamp)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "not streamed", "payload stays out of the stream")
	assert.NotContains(t, string(raw), "durationMs", "absent optional fields are omitted")
}

func TestNewMessage(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	msg, err := domain.NewMessage(domain.MessageItemMoved, ts, domain.ItemMoved{ItemID: "i", FromStage: "a", ToStage: "b"})
	require.NoError(t, err)

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"item-moved","timestamp":"2026-05-01T09:30:00Z","data":{"itemId":"i","fromStage":"a","toStage":"b"}}`,
		string(raw))

	_, err = domain.NewMessage(domain.MessageBoardUpdated, ts, make(chan int))
	assert.Error(t, err)
}

func TestDecodeOneOrMany(t *testing.T) {
	t.Parallel()

	one, err := domain.DecodeOneOrMany[domain.LogEntry](json.RawMessage(` {"id":1,"message":"a"}`))
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "a", one[0].Message)

	many, err := domain.DecodeOneOrMany[domain.LogEntry](json.RawMessage(`[{"id":1},{"id":2}]`))
	require.NoError(t, err)
	assert.Len(t, many, 2)

	empty, err := domain.DecodeOneOrMany[domain.LogEntry](json.RawMessage(`[]`))
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = domain.DecodeOneOrMany[domain.LogEntry](json.RawMessage(`"nope"`))
	assert.Error(t, err)
}
