package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gosuda/agentboard/internal/domain"
)

// Broker fans pushed board events out to every session of a project.
// *redis.PubSub satisfies this interface.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// BoardChannel returns the broker channel name for a project board.
func BoardChannel(projectID string) string {
	return "board:" + projectID
}

// PublishBoardEvent validates a board service notification and fans it out.
func PublishBoardEvent(ctx context.Context, broker Broker, ev domain.BoardEvent) error {
	if ev.ProjectID == "" {
		return fmt.Errorf("stream.PublishBoardEvent: missing project: %w", domain.ErrValidation)
	}
	if !ev.Message.Type.IsBoardEvent() {
		return fmt.Errorf("stream.PublishBoardEvent: type %q: %w", ev.Message.Type, domain.ErrValidation)
	}

	payload, err := json.Marshal(ev.Message)
	if err != nil {
		return fmt.Errorf("stream.PublishBoardEvent: marshal: %w", err)
	}
	if err := broker.Publish(ctx, BoardChannel(ev.ProjectID), payload); err != nil {
		return fmt.Errorf("stream.PublishBoardEvent: %w", err)
	}
	return nil
}

// LocalBroker is an in-process Broker for single-instance deployments.
// Slow subscribers drop messages rather than block publishers.
type LocalBroker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[string]map[chan []byte]struct{})}
}

func (b *LocalBroker) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (b *LocalBroker) Subscribe(_ context.Context, channel string) (<-chan []byte, func(), error) {
	ch := make(chan []byte, 64)

	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[chan []byte]struct{})
	}
	b.subs[channel][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.subs[channel]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, channel)
				}
			}
			close(ch)
		})
	}

	return ch, cleanup, nil
}

// Subscribers reports the number of live subscriptions on channel.
func (b *LocalBroker) Subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}
