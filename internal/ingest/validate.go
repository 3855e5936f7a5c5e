package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gosuda/agentboard/internal/domain"
)

// MaxBatchSize is the largest number of submissions accepted per call.
const MaxBatchSize = 100

// ValidationError reports a submission rejected before any write.
type ValidationError struct {
	Index   int // -1 when the error is not tied to one item
	Message string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return e.Message
	}
	return fmt.Sprintf("item %d: %s", e.Index, e.Message)
}

func (e *ValidationError) Unwrap() error { return domain.ErrValidation }

func invalid(index int, format string, args ...any) *ValidationError {
	return &ValidationError{Index: index, Message: fmt.Sprintf(format, args...)}
}

// HookEventInput is one hook-event submission as sent by agent hooks.
type HookEventInput struct {
	EventType     string          `json:"eventType"`
	AgentName     string          `json:"agentName,omitempty"`
	ToolName      string          `json:"toolName,omitempty"`
	Status        string          `json:"status,omitempty"`
	DurationMs    *int64          `json:"durationMs,omitempty"`
	Summary       string          `json:"summary,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Timestamp     string          `json:"timestamp,omitempty"`
}

// ActivityInput is one activity-feed submission.
type ActivityInput struct {
	AgentName string `json:"agentName,omitempty"`
	Level     string `json:"level,omitempty"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// DecodeBatch parses a body holding either one JSON object or an array of
// them. Arrays longer than MaxBatchSize are rejected as a whole.
func DecodeBatch[T any](body []byte) ([]T, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, invalid(-1, "request body is empty")
	}

	if body[0] == '[' {
		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, invalid(-1, "malformed JSON array: %v", err)
		}
		if len(items) == 0 {
			return nil, invalid(-1, "batch must contain at least one item")
		}
		if len(items) > MaxBatchSize {
			return nil, invalid(-1, "batch of %d exceeds the limit of %d", len(items), MaxBatchSize)
		}
		return items, nil
	}

	var item T
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, invalid(-1, "malformed JSON object: %v", err)
	}
	return []T{item}, nil
}

// parseTimestamp accepts RFC 3339 strings and falls back to now when empty.
// Storage keeps microseconds, so the value is truncated to match.
func parseTimestamp(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now.UTC().Truncate(time.Microsecond), nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, errors.New("timestamp must be RFC 3339")
	}
	return ts.UTC().Truncate(time.Microsecond), nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// toHookEvent validates in and converts it into a storable event.
func toHookEvent(index int, projectID string, in HookEventInput, now time.Time) (*domain.HookEvent, error) {
	eventType := domain.EventType(in.EventType)
	if !eventType.Valid() {
		return nil, invalid(index, "invalid eventType %q", in.EventType)
	}

	ts, err := parseTimestamp(in.Timestamp, now)
	if err != nil {
		return nil, invalid(index, "%v", err)
	}

	status := eventType.DefaultStatus()
	if in.Status != "" {
		status = domain.HookStatus(in.Status)
		if !status.Valid() {
			return nil, invalid(index, "invalid status %q", in.Status)
		}
	}

	if in.DurationMs != nil && *in.DurationMs < 0 {
		return nil, invalid(index, "durationMs must not be negative")
	}

	payload := in.Payload
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		payload = json.RawMessage("{}")
	}
	if len(payload) > domain.MaxPayloadBytes {
		return nil, invalid(index, "payload of %d bytes exceeds %d", len(payload), domain.MaxPayloadBytes)
	}

	agent := strings.TrimSpace(in.AgentName)
	if agent == "" {
		agent = "unknown"
	}

	return &domain.HookEvent{
		ProjectID:     projectID,
		EventType:     eventType,
		AgentName:     agent,
		ToolName:      optional(in.ToolName),
		Status:        status,
		DurationMs:    in.DurationMs,
		Summary:       in.Summary,
		CorrelationID: optional(in.CorrelationID),
		Payload:       payload,
		Timestamp:     ts,
	}, nil
}

func toLogEntry(index int, projectID string, in ActivityInput, now time.Time) (*domain.LogEntry, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, invalid(index, "message is required")
	}

	level := domain.LogLevelInfo
	if in.Level != "" {
		level = domain.LogLevel(in.Level)
		if !level.Valid() {
			return nil, invalid(index, "invalid level %q", in.Level)
		}
	}

	ts, err := parseTimestamp(in.Timestamp, now)
	if err != nil {
		return nil, invalid(index, "%v", err)
	}

	agent := strings.TrimSpace(in.AgentName)
	if agent == "" {
		agent = "unknown"
	}

	return &domain.LogEntry{
		ProjectID: projectID,
		AgentName: agent,
		Level:     level,
		Message:   in.Message,
		Timestamp: ts,
	}, nil
}
