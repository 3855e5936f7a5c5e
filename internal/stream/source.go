package stream

import (
	"context"
	"time"

	"github.com/gosuda/agentboard/internal/domain"
)

// Item is one polled record and the timestamp that orders it.
type Item struct {
	Timestamp time.Time
	Value     any
}

// Source is a polled channel of the event stream.
type Source interface {
	Channel() domain.MessageType
	// Since returns items stamped strictly after `after`, ascending by
	// (timestamp, id), at most limit of them.
	Since(ctx context.Context, projectID string, after time.Time, limit int) ([]Item, error)
}

type hookEventSource struct {
	repo domain.HookEventRepository
}

// HookEventSource polls hook events for the hook-event channel.
func HookEventSource(repo domain.HookEventRepository) Source {
	return &hookEventSource{repo: repo}
}

func (s *hookEventSource) Channel() domain.MessageType { return domain.MessageHookEvent }

func (s *hookEventSource) Since(ctx context.Context, projectID string, after time.Time, limit int) ([]Item, error) {
	events, err := s.repo.ListSince(ctx, projectID, after, limit)
	if err != nil {
		return nil, err
	}
	items := make([]Item, len(events))
	for i, e := range events {
		items[i] = Item{Timestamp: e.Timestamp, Value: e}
	}
	return items, nil
}

type activitySource struct {
	repo domain.ActivityRepository
}

// ActivitySource polls the activity feed for the activity-entry channel.
func ActivitySource(repo domain.ActivityRepository) Source {
	return &activitySource{repo: repo}
}

func (s *activitySource) Channel() domain.MessageType { return domain.MessageActivityEntry }

func (s *activitySource) Since(ctx context.Context, projectID string, after time.Time, limit int) ([]Item, error) {
	entries, err := s.repo.ListSince(ctx, projectID, after, limit)
	if err != nil {
		return nil, err
	}
	items := make([]Item, len(entries))
	for i, e := range entries {
		items[i] = Item{Timestamp: e.Timestamp, Value: e}
	}
	return items, nil
}
