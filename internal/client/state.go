// Package client keeps a dashboard subscribed to the event stream and hands
// each message to the handler registered for its type.
//
// Connection state is driven by a pure reducer over transport and timer
// events; Manager owns the transport, the single reconnect timer and the
// observers, and applies the reducer's effects.
package client

import (
	"errors"
	"time"
)

type ConnectionState string

const (
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
	StateError        ConnectionState = "error"
)

func (s ConnectionState) IsConnected() bool { return s == StateConnected }

// RetrySchedule is the delay before each automatic reconnect. Running out of
// slots moves the manager to StateError.
var RetrySchedule = []time.Duration{ //nolint:gochecknoglobals // fixed protocol table
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
	30 * time.Second,
	30 * time.Second,
	30 * time.Second,
	30 * time.Second,
	30 * time.Second,
}

// MaxAttempts is the number of consecutive transport errors tolerated.
var MaxAttempts = len(RetrySchedule) //nolint:gochecknoglobals // derived from RetrySchedule

var ErrMaxRetries = errors.New("maximum retries exceeded")

// snapshot is everything the reducer decides on.
type snapshot struct {
	State    ConnectionState
	Enabled  bool
	Attempts int
	Err      error
}

type eventKind int

const (
	evEnable eventKind = iota
	evDisable
	evOpen
	evError
	evRetry
)

type event struct {
	kind eventKind
	err  error
}

type effectKind int

const (
	effDial effectKind = iota
	effCloseConn
	effSchedule
	effCancelTimer
)

type effect struct {
	kind  effectKind
	delay time.Duration
}

func initialSnapshot() snapshot {
	return snapshot{State: StateDisconnected}
}

// reduce returns the next snapshot and the side effects the manager must run,
// in order. It never touches the transport or the clock itself.
func reduce(s snapshot, ev event) (snapshot, []effect) {
	switch ev.kind {
	case evEnable:
		if s.Enabled {
			return s, nil
		}
		return snapshot{State: StateConnecting, Enabled: true},
			[]effect{{kind: effCancelTimer}, {kind: effDial}}

	case evDisable:
		if !s.Enabled {
			return s, nil
		}
		next := s
		next.Enabled = false
		if s.State != StateError {
			next.State = StateDisconnected
		}
		return next, []effect{{kind: effCancelTimer}, {kind: effCloseConn}}

	case evOpen:
		if !s.Enabled || s.State != StateConnecting {
			return s, nil
		}
		return snapshot{State: StateConnected, Enabled: true}, nil

	case evError:
		if !s.Enabled || s.State == StateError {
			return s, nil
		}
		next := s
		next.Attempts++
		if next.Attempts >= MaxAttempts {
			next.State = StateError
			next.Err = ErrMaxRetries
			return next, []effect{{kind: effCloseConn}, {kind: effCancelTimer}}
		}
		next.State = StateConnecting
		next.Err = nil
		return next, []effect{
			{kind: effCloseConn},
			{kind: effSchedule, delay: RetrySchedule[next.Attempts-1]},
		}

	case evRetry:
		if !s.Enabled || s.State != StateConnecting {
			return s, nil
		}
		return s, []effect{{kind: effDial}}
	}

	return s, nil
}
