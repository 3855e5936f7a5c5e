package client

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gosuda/agentboard/internal/domain"
)

type HandlerFunc func(msg domain.Message) error

// Dispatcher routes messages to the handlers registered for their type.
// Messages with no handler are ignored.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[domain.MessageType][]HandlerFunc
	any      []HandlerFunc
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[domain.MessageType][]HandlerFunc)}
}

// On registers fn for messages of type t.
func (d *Dispatcher) On(t domain.MessageType, fn HandlerFunc) {
	d.mu.Lock()
	d.handlers[t] = append(d.handlers[t], fn)
	d.mu.Unlock()
}

// OnAny registers fn for every message, after the typed handlers.
func (d *Dispatcher) OnAny(fn HandlerFunc) {
	d.mu.Lock()
	d.any = append(d.any, fn)
	d.mu.Unlock()
}

// Dispatch calls every matching handler and returns the first error.
func (d *Dispatcher) Dispatch(msg domain.Message) error {
	return d.dispatchWhile(msg, nil)
}

// dispatchWhile is Dispatch that stops before the next handler once live
// reports false. A nil live never stops.
func (d *Dispatcher) dispatchWhile(msg domain.Message, live func() bool) error {
	if msg.Type == "" {
		return fmt.Errorf("client.Dispatcher.Dispatch: message without type")
	}

	d.mu.RLock()
	handlers := append(append([]HandlerFunc(nil), d.handlers[msg.Type]...), d.any...)
	d.mu.RUnlock()

	var first error
	for _, fn := range handlers {
		if live != nil && !live() {
			break
		}
		if err := fn(msg); err != nil && first == nil {
			first = fmt.Errorf("client.Dispatcher.Dispatch: %s: %w", msg.Type, err)
		}
	}
	return first
}

// OnHookEvents registers fn for hook-event messages. A single event is
// delivered as a one-element slice.
func (d *Dispatcher) OnHookEvents(fn func([]domain.HookEventSummary)) {
	d.On(domain.MessageHookEvent, func(msg domain.Message) error {
		events, err := domain.DecodeOneOrMany[domain.HookEventSummary](msg.Data)
		if err != nil {
			return err
		}
		fn(events)
		return nil
	})
}

// OnActivity registers fn for activity-entry messages, single or batched.
func (d *Dispatcher) OnActivity(fn func([]domain.LogEntry)) {
	d.On(domain.MessageActivityEntry, func(msg domain.Message) error {
		entries, err := domain.DecodeOneOrMany[domain.LogEntry](msg.Data)
		if err != nil {
			return err
		}
		fn(entries)
		return nil
	})
}

func (d *Dispatcher) OnItemAdded(fn func(domain.ItemAdded)) {
	onTyped(d, domain.MessageItemAdded, fn)
}

func (d *Dispatcher) OnItemMoved(fn func(domain.ItemMoved)) {
	onTyped(d, domain.MessageItemMoved, fn)
}

func (d *Dispatcher) OnItemUpdated(fn func(domain.ItemUpdated)) {
	onTyped(d, domain.MessageItemUpdated, fn)
}

func (d *Dispatcher) OnItemDeleted(fn func(domain.ItemDeleted)) {
	onTyped(d, domain.MessageItemDeleted, fn)
}

func (d *Dispatcher) OnBoardUpdated(fn func(domain.BoardUpdated)) {
	onTyped(d, domain.MessageBoardUpdated, fn)
}

func onTyped[T any](d *Dispatcher, t domain.MessageType, fn func(T)) {
	d.On(t, func(msg domain.Message) error {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return err
		}
		fn(v)
		return nil
	})
}

