package domain

import (
	"context"
	"encoding/json"
	"time"
)

type EventType string

const (
	EventPreToolUse         EventType = "pre_tool_use"
	EventPostToolUse        EventType = "post_tool_use"
	EventPostToolUseFailure EventType = "post_tool_use_failure"
	EventSubagentStart      EventType = "subagent_start"
	EventSubagentStop       EventType = "subagent_stop"
	EventStop               EventType = "stop"
)

// Valid reports whether t is one of the known hook event types.
func (t EventType) Valid() bool {
	switch t {
	case EventPreToolUse, EventPostToolUse, EventPostToolUseFailure,
		EventSubagentStart, EventSubagentStop, EventStop:
		return true
	default:
		return false
	}
}

// DefaultStatus is the status recorded when a submission omits one.
func (t EventType) DefaultStatus() HookStatus {
	switch t {
	case EventPreToolUse:
		return HookStatusPending
	case EventPostToolUse:
		return HookStatusSuccess
	case EventPostToolUseFailure:
		return HookStatusFailure
	default:
		return HookStatusUnknown
	}
}

type HookStatus string

const (
	HookStatusPending HookStatus = "pending"
	HookStatusSuccess HookStatus = "success"
	HookStatusFailure HookStatus = "failure"
	HookStatusDenied  HookStatus = "denied"
	HookStatusUnknown HookStatus = "unknown"
)

func (s HookStatus) Valid() bool {
	switch s {
	case HookStatusPending, HookStatusSuccess, HookStatusFailure, HookStatusDenied, HookStatusUnknown:
		return true
	default:
		return false
	}
}

// MaxPayloadBytes bounds the encoded size of HookEvent.Payload.
const MaxPayloadBytes = 1 << 20

// HookEvent is one step of an agent tool-call lifecycle. ID comes from a
// storage counter that may restart after pruning; Timestamp is the only
// field used for ordering and novelty.
type HookEvent struct {
	ID            int64
	ProjectID     string
	EventType     EventType
	AgentName     string
	ToolName      *string
	Status        HookStatus
	DurationMs    *int64
	Summary       string
	CorrelationID *string
	Payload       json.RawMessage
	Timestamp     time.Time
}

// ToSummary returns the payload-free projection streamed to dashboards.
func (e *HookEvent) ToSummary() HookEventSummary {
	return HookEventSummary{
		ID:            e.ID,
		ProjectID:     e.ProjectID,
		EventType:     e.EventType,
		AgentName:     e.AgentName,
		ToolName:      e.ToolName,
		Status:        e.Status,
		DurationMs:    e.DurationMs,
		Summary:       e.Summary,
		CorrelationID: e.CorrelationID,
		Timestamp:     e.Timestamp,
	}
}

// HookEventSummary is the hook-event shape sent over the event stream.
type HookEventSummary struct {
	ID            int64      `json:"id"`
	ProjectID     string     `json:"projectId"`
	EventType     EventType  `json:"eventType"`
	AgentName     string     `json:"agentName"`
	ToolName      *string    `json:"toolName,omitempty"`
	Status        HookStatus `json:"status"`
	DurationMs    *int64     `json:"durationMs,omitempty"`
	Summary       string     `json:"summary"`
	CorrelationID *string    `json:"correlationId,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}

// InsertResult counts the outcome of a batch insert.
type InsertResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// HookEventRepository persists hook events.
//
// InsertBatch stores all events in one transaction. A row whose
// (ProjectID, CorrelationID, EventType) already exists is skipped by the
// storage engine, not by a prior read. ListSince returns events with
// Timestamp strictly after the cursor ordered by (Timestamp, ID).
type HookEventRepository interface {
	InsertBatch(ctx context.Context, events []*HookEvent) (InsertResult, error)
	ListSince(ctx context.Context, projectID string, after time.Time, limit int) ([]*HookEventSummary, error)
	ListRecent(ctx context.Context, projectID string, limit int) ([]*HookEventSummary, error)
	Count(ctx context.Context, projectID string) (int64, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
