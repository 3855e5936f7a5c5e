package client

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/agentboard/internal/domain"
)

// StateFunc observes state transitions. err is non-nil only in StateError.
type StateFunc func(state ConnectionState, err error)

// Manager owns one dashboard connection. It starts disabled; call
// SetEnabled(true) to connect.
//
// Callbacks from a closed transport or a cancelled timer are dropped using
// generation counters, so once Close or SetEnabled(false) returns no new
// handler or observer call starts. Calls already running may still finish.
type Manager struct {
	dialer   Dialer
	clock    Clock
	dispatch *Dispatcher

	mu        sync.Mutex
	st        snapshot
	conn      Conn
	connGen   uint64
	timer     Timer
	timerGen  uint64
	closed    bool
	observers []StateFunc
}

type Option func(*Manager)

func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func WithDispatcher(d *Dispatcher) Option {
	return func(m *Manager) { m.dispatch = d }
}

func New(dialer Dialer, opts ...Option) *Manager {
	m := &Manager{
		dialer: dialer,
		clock:  realClock{},
		st:     initialSnapshot(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dispatch == nil {
		m.dispatch = NewDispatcher()
	}
	return m
}

// Dispatcher returns the table messages are routed through.
func (m *Manager) Dispatcher() *Dispatcher { return m.dispatch }

// OnStateChange registers fn for every subsequent transition.
func (m *Manager) OnStateChange(fn StateFunc) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.State
}

func (m *Manager) IsConnected() bool { return m.State().IsConnected() }

// Err returns ErrMaxRetries once the retry schedule is exhausted.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.Err
}

// Attempts is the number of consecutive transport errors since the last
// successful open.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.Attempts
}

// SetEnabled connects or disconnects. Re-enabling after StateError starts a
// fresh retry schedule.
func (m *Manager) SetEnabled(enabled bool) {
	ev := event{kind: evDisable}
	if enabled {
		ev = event{kind: evEnable}
	}
	m.handle(func() bool { return true }, ev)
}

// Close tears the manager down for good. It is safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.stopTimerLocked()
	m.closeConnLocked()
	m.closed = true
	m.st.Enabled = false
	m.mu.Unlock()
}

type transition struct {
	state ConnectionState
	err   error
}

// handle runs ev through the reducer if valid still holds under the lock.
func (m *Manager) handle(valid func() bool, ev event) {
	m.mu.Lock()
	if m.closed || !valid() {
		m.mu.Unlock()
		return
	}
	changes := m.applyLocked(ev)
	observers := m.observers
	m.mu.Unlock()

	for _, c := range changes {
		for _, fn := range observers {
			fn(c.state, c.err)
		}
	}
}

func (m *Manager) applyLocked(ev event) []transition {
	var changes []transition

	queue := []event{ev}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		prev := m.st
		next, effects := reduce(prev, cur)
		m.st = next

		for _, eff := range effects {
			if follow, ok := m.runLocked(eff); ok {
				queue = append(queue, follow)
			}
		}

		if next.State != prev.State {
			log.Debug().
				Str("from", string(prev.State)).
				Str("to", string(next.State)).
				Int("attempts", next.Attempts).
				Msg("client: state change")
			changes = append(changes, transition{state: next.State, err: next.Err})
		}
	}

	return changes
}

// runLocked performs one effect. A synchronous dial failure is fed back as a
// transport error.
func (m *Manager) runLocked(eff effect) (event, bool) {
	switch eff.kind {
	case effDial:
		m.closeConnLocked()
		m.connGen++
		conn, err := m.dialer.Dial(&link{m: m, gen: m.connGen})
		if err != nil {
			return event{kind: evError, err: err}, true
		}
		m.conn = conn

	case effCloseConn:
		m.closeConnLocked()

	case effSchedule:
		m.stopTimerLocked()
		gen := m.timerGen
		m.timer = m.clock.AfterFunc(eff.delay, func() {
			m.handle(func() bool { return m.timerGen == gen }, event{kind: evRetry})
		})
		log.Debug().Dur("delay", eff.delay).Int("attempt", m.st.Attempts).Msg("client: reconnect scheduled")

	case effCancelTimer:
		m.stopTimerLocked()
	}
	return event{}, false
}

func (m *Manager) closeConnLocked() {
	m.connGen++
	if m.conn == nil {
		return
	}
	if err := m.conn.Close(); err != nil {
		log.Debug().Err(err).Msg("client: close transport")
	}
	m.conn = nil
}

func (m *Manager) stopTimerLocked() {
	m.timerGen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// link binds transport callbacks to the connection generation that created
// them.
type link struct {
	m   *Manager
	gen uint64
}

func (l *link) current() bool { return l.m.connGen == l.gen }

func (l *link) OnOpen() {
	l.m.handle(l.current, event{kind: evOpen})
}

func (l *link) OnError(err error) {
	l.m.handle(l.current, event{kind: evError, err: err})
	log.Debug().Err(err).Msg("client: transport error")
}

// live reports whether this link may still deliver. It is checked before
// every handler, so teardown during a slow handler stops the rest.
func (l *link) live() bool {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	return !l.m.closed && l.current() && l.m.st.Enabled
}

func (l *link) OnMessage(msg domain.Message) {
	if !l.live() {
		return
	}

	if err := l.m.dispatch.dispatchWhile(msg, l.live); err != nil {
		log.Warn().Err(err).Str("type", string(msg.Type)).Msg("client: dropping message")
	}
}
