package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// MessageType names a channel on the event stream.
type MessageType string

const (
	MessageItemAdded     MessageType = "item-added"
	MessageItemMoved     MessageType = "item-moved"
	MessageItemUpdated   MessageType = "item-updated"
	MessageItemDeleted   MessageType = "item-deleted"
	MessageBoardUpdated  MessageType = "board-updated"
	MessageHookEvent     MessageType = "hook-event"
	MessageActivityEntry MessageType = "activity-entry"
)

// IsBoardEvent reports whether t is pushed by the board service rather than
// polled from storage.
func (t MessageType) IsBoardEvent() bool {
	switch t {
	case MessageItemAdded, MessageItemMoved, MessageItemUpdated, MessageItemDeleted, MessageBoardUpdated:
		return true
	default:
		return false
	}
}

// Message is the envelope carried by every stream frame.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewMessage marshals data into a Message envelope.
func NewMessage(t MessageType, ts time.Time, data any) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Timestamp: ts, Data: raw}, nil
}

// Board event payloads. Items and boards are owned by the board service and
// pass through as raw JSON.

type ItemAdded struct {
	ItemID string          `json:"itemId"`
	Item   json.RawMessage `json:"item"`
}

type ItemMoved struct {
	ItemID    string `json:"itemId"`
	FromStage string `json:"fromStage"`
	ToStage   string `json:"toStage"`
}

type ItemUpdated struct {
	ItemID string          `json:"itemId"`
	Item   json.RawMessage `json:"item"`
}

type ItemDeleted struct {
	ItemID string `json:"itemId"`
}

type BoardUpdated struct {
	Board json.RawMessage `json:"board"`
}

// BoardEvent is a board service notification scoped to one project.
type BoardEvent struct {
	ProjectID string  `json:"projectId"`
	Message   Message `json:"message"`
}

// DecodeOneOrMany decodes hook-event and activity-entry data, which may be a
// single object or an array of them.
func DecodeOneOrMany[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var many []T
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return nil, err
		}
		return many, nil
	}

	var one T
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}
