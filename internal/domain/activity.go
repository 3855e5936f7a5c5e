package domain

import (
	"context"
	"time"
)

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

func (l LogLevel) Valid() bool {
	switch l {
	case LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// LogEntry is a human-readable line in a project's agent activity feed.
type LogEntry struct {
	ID        int64     `json:"id"`
	ProjectID string    `json:"projectId"`
	AgentName string    `json:"agentName"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ActivityRepository stores the activity feed. ListSince follows the same
// timestamp-cursor contract as HookEventRepository.ListSince.
type ActivityRepository interface {
	Append(ctx context.Context, entries []*LogEntry) (int, error)
	ListSince(ctx context.Context, projectID string, after time.Time, limit int) ([]*LogEntry, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
