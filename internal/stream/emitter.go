// Package stream pushes new hook events, activity entries and board events
// to connected dashboards.
//
// Every connection owns one Cursor per polled channel, set to the connect
// time, so a newly joined client never receives history. Novelty is decided
// by timestamp only.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/agentboard/internal/domain"
)

// Config tunes the per-connection loop.
type Config struct {
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	QueryTimeout      time.Duration
	BatchLimit        int
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		PollInterval:      time.Second,
		HeartbeatInterval: 25 * time.Second,
		QueryTimeout:      5 * time.Second,
		BatchLimit:        500,
	}
}

// Sink receives the messages of one connection.
type Sink interface {
	Send(msg domain.Message) error
	Heartbeat() error
}

// Emitter creates sessions over a fixed set of sources.
type Emitter struct {
	sources []Source
	broker  Broker
	cfg     Config
	now     func() time.Time
}

type Option func(*Emitter)

// WithClock overrides the time source, used for cursor baselines.
func WithClock(now func() time.Time) Option {
	return func(e *Emitter) { e.now = now }
}

func NewEmitter(broker Broker, cfg Config, sources []Source, opts ...Option) *Emitter {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = def.QueryTimeout
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = def.BatchLimit
	}

	e := &Emitter{
		sources: sources,
		broker:  broker,
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Session is the state of one connection.
type Session struct {
	ID        uuid.UUID
	ProjectID string

	emitter *Emitter
	cursors []Cursor
}

// Open starts a session for projectID with every cursor at the current time.
func (e *Emitter) Open(projectID string) *Session {
	now := e.now()
	cursors := make([]Cursor, len(e.sources))
	for i := range cursors {
		cursors[i] = NewCursor(now)
	}
	return &Session{
		ID:        uuid.New(),
		ProjectID: projectID,
		emitter:   e,
		cursors:   cursors,
	}
}

// Cursor returns the watermark for channel, mainly for diagnostics.
func (s *Session) Cursor(channel domain.MessageType) (Cursor, bool) {
	for i, src := range s.emitter.sources {
		if src.Channel() == channel {
			return s.cursors[i], true
		}
	}
	return Cursor{}, false
}

// Poll runs one cycle over every source and returns at most one batched
// message per channel. A failing source keeps its cursor and is retried on
// the next cycle; the other sources are unaffected.
func (s *Session) Poll(ctx context.Context) []domain.Message {
	var out []domain.Message

	for i, src := range s.emitter.sources {
		cur := &s.cursors[i]
		if !cur.Established() {
			cur.Establish(s.emitter.now())
			continue
		}

		qctx, cancel := context.WithTimeout(ctx, s.emitter.cfg.QueryTimeout)
		items, err := src.Since(qctx, s.ProjectID, cur.Value(), s.emitter.cfg.BatchLimit)
		cancel()
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).
					Str("project_id", s.ProjectID).
					Str("channel", string(src.Channel())).
					Msg("stream: poll failed, keeping cursor")
			}
			continue
		}

		items = holdBoundary(items, s.emitter.cfg.BatchLimit)
		if len(items) == 0 {
			continue
		}

		values := make([]any, 0, len(items))
		latest := cur.Value()
		for _, it := range items {
			// Guard against a source that ignores the cursor.
			if !cur.IsNew(it.Timestamp) {
				continue
			}
			values = append(values, it.Value)
			if it.Timestamp.After(latest) {
				latest = it.Timestamp
			}
		}
		if len(values) == 0 {
			continue
		}

		msg, err := domain.NewMessage(src.Channel(), s.emitter.now().UTC(), values)
		if err != nil {
			log.Error().Err(err).Str("channel", string(src.Channel())).Msg("stream: encode batch")
			continue
		}
		cur.Advance(latest)
		out = append(out, msg)
	}

	return out
}

// holdBoundary drops the trailing run of items sharing the last timestamp
// when the batch was cut by the limit, so those rows are fetched whole on the
// next cycle instead of being skipped by the cursor.
func holdBoundary(items []Item, limit int) []Item {
	if limit <= 0 || len(items) < limit {
		return items
	}
	last := items[len(items)-1].Timestamp
	n := len(items)
	for n > 0 && items[n-1].Timestamp.Equal(last) {
		n--
	}
	if n == 0 {
		// The whole page shares one timestamp; deliver it rather than stall.
		log.Warn().Int("limit", limit).Msg("stream: batch limit reached within a single timestamp")
		return items
	}
	return items[:n]
}

// Run drives the session until ctx ends or the sink fails: it polls on
// PollInterval, forwards pushed board events and sends heartbeats.
func (s *Session) Run(ctx context.Context, sink Sink) error {
	var board <-chan []byte
	if s.emitter.broker != nil {
		ch, cleanup, err := s.emitter.broker.Subscribe(ctx, BoardChannel(s.ProjectID))
		if err != nil {
			// Hook events and activity still flow without board events.
			log.Warn().Err(err).Str("project_id", s.ProjectID).Msg("stream: board subscribe failed")
		} else {
			defer cleanup()
			board = ch
		}
	}

	poll := time.NewTicker(s.emitter.cfg.PollInterval)
	defer poll.Stop()
	heartbeat := time.NewTicker(s.emitter.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	log.Debug().Str("session_id", s.ID.String()).Str("project_id", s.ProjectID).Msg("stream: session opened")
	defer log.Debug().Str("session_id", s.ID.String()).Msg("stream: session closed")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-poll.C:
			for _, msg := range s.Poll(ctx) {
				if err := sink.Send(msg); err != nil {
					return err
				}
			}
		case raw, ok := <-board:
			if !ok {
				board = nil
				continue
			}
			var msg domain.Message
			if err := json.Unmarshal(raw, &msg); err != nil || !msg.Type.IsBoardEvent() {
				log.Warn().Err(err).Str("project_id", s.ProjectID).Msg("stream: dropping malformed board event")
				continue
			}
			if err := sink.Send(msg); err != nil {
				return err
			}
		case <-heartbeat.C:
			if err := sink.Heartbeat(); err != nil {
				return err
			}
		}
	}
}

// ErrMissingProject is returned when a stream request names no project.
var ErrMissingProject = errors.New("stream: project id is required") //nolint:gochecknoglobals // sentinel error
