package client_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/agentboard/internal/client"
	"github.com/gosuda/agentboard/internal/domain"
)

func message(t domain.MessageType, data string) domain.Message {
	return domain.Message{Type: t, Timestamp: time.Now().UTC(), Data: json.RawMessage(data)}
}

func TestDispatcher_HookEventsSingleOrBatch(t *testing.T) {
	t.Parallel()

	d := client.NewDispatcher()
	var batches [][]domain.HookEventSummary
	d.OnHookEvents(func(events []domain.HookEventSummary) { batches = append(batches, events) })

	require.NoError(t, d.Dispatch(message(domain.MessageHookEvent, `{"id":7,"eventType":"pre_tool_use"}`)))
	require.NoError(t, d.Dispatch(message(domain.MessageHookEvent, ` [{"id":8},{"id":9}]`)))

	require.Len(t, batches, 2)
	require.Len(t, batches[0], 1, "a single object is delivered as a one-element slice")
	assert.Equal(t, int64(7), batches[0][0].ID)
	require.Len(t, batches[1], 2)
	assert.Equal(t, int64(9), batches[1][1].ID)
}

func TestDispatcher_ActivitySingleOrBatch(t *testing.T) {
	t.Parallel()

	d := client.NewDispatcher()
	var got []domain.LogEntry
	d.OnActivity(func(entries []domain.LogEntry) { got = append(got, entries...) })

	require.NoError(t, d.Dispatch(message(domain.MessageActivityEntry, `{"message":"one","level":"info"}`)))
	require.NoError(t, d.Dispatch(message(domain.MessageActivityEntry, `[{"message":"two"},{"message":"three","level":"warn"}]`)))

	require.Len(t, got, 3)
	assert.Equal(t, "one", got[0].Message)
	assert.Equal(t, domain.LogLevelWarn, got[2].Level)
}

func TestDispatcher_BoardEvents(t *testing.T) {
	t.Parallel()

	d := client.NewDispatcher()

	var (
		added   domain.ItemAdded
		moved   domain.ItemMoved
		updated domain.ItemUpdated
		deleted domain.ItemDeleted
		board   domain.BoardUpdated
	)
	d.OnItemAdded(func(v domain.ItemAdded) { added = v })
	d.OnItemMoved(func(v domain.ItemMoved) { moved = v })
	d.OnItemUpdated(func(v domain.ItemUpdated) { updated = v })
	d.OnItemDeleted(func(v domain.ItemDeleted) { deleted = v })
	d.OnBoardUpdated(func(v domain.BoardUpdated) { board = v })

	require.NoError(t, d.Dispatch(message(domain.MessageItemAdded, `{"itemId":"a","item":{"title":"t"}}`)))
	require.NoError(t, d.Dispatch(message(domain.MessageItemMoved, `{"itemId":"b","fromStage":"todo","toStage":"done"}`)))
	require.NoError(t, d.Dispatch(message(domain.MessageItemUpdated, `{"itemId":"c","item":{"title":"u"}}`)))
	require.NoError(t, d.Dispatch(message(domain.MessageItemDeleted, `{"itemId":"d"}`)))
	require.NoError(t, d.Dispatch(message(domain.MessageBoardUpdated, `{"board":{"stages":["todo"]}}`)))

	assert.Equal(t, "a", added.ItemID)
	assert.JSONEq(t, `{"title":"t"}`, string(added.Item))
	assert.Equal(t, domain.ItemMoved{ItemID: "b", FromStage: "todo", ToStage: "done"}, moved)
	assert.Equal(t, "c", updated.ItemID)
	assert.Equal(t, "d", deleted.ItemID)
	assert.JSONEq(t, `{"stages":["todo"]}`, string(board.Board))
}

func TestDispatcher_UnknownTypeIgnored(t *testing.T) {
	t.Parallel()

	d := client.NewDispatcher()
	called := false
	d.OnItemAdded(func(domain.ItemAdded) { called = true })

	require.NoError(t, d.Dispatch(message("agent-spawned", `{}`)))
	assert.False(t, called)
}

func TestDispatcher_Errors(t *testing.T) {
	t.Parallel()

	d := client.NewDispatcher()
	d.OnItemMoved(func(domain.ItemMoved) {})

	require.Error(t, d.Dispatch(domain.Message{Data: json.RawMessage(`{}`)}), "type is required")
	require.Error(t, d.Dispatch(message(domain.MessageItemMoved, `[1,2]`)))

	sentinel := errors.New("handler failed")
	d.On(domain.MessageBoardUpdated, func(domain.Message) error { return sentinel })
	require.ErrorIs(t, d.Dispatch(message(domain.MessageBoardUpdated, `{}`)), sentinel)
}

func TestDispatcher_OnAnyRunsAfterTyped(t *testing.T) {
	t.Parallel()

	d := client.NewDispatcher()
	var order []string
	d.OnAny(func(domain.Message) error {
		order = append(order, "any")
		return nil
	})
	d.On(domain.MessageItemDeleted, func(domain.Message) error {
		order = append(order, "typed")
		return nil
	})

	require.NoError(t, d.Dispatch(message(domain.MessageItemDeleted, `{"itemId":"x"}`)))
	assert.Equal(t, []string{"typed", "any"}, order)
}
