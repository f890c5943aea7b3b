package presence

import "sync/atomic"

// sessionBuffer bounds how many undelivered events a session may hold before
// further events are dropped.
const sessionBuffer = 64

// Session is one live transport connection as seen by the presence layer.
// It has no room affiliation until the membership manager registers one.
type Session struct {
	ID     string
	events chan Event
	closed atomic.Bool
}

// NewSession constructs a session with a buffered event channel.
func NewSession(id string) *Session {
	return &Session{
		ID:     id,
		events: make(chan Event, sessionBuffer),
	}
}

// Events returns the channel the transport drains to push events to the client.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Close marks the session terminal. Deliveries to a closed session are no-ops.
// Safe to call more than once.
func (s *Session) Close() {
	s.closed.Store(true)
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// deliver enqueues an event without blocking.
func (s *Session) deliver(ev Event) {
	if s.closed.Load() {
		return
	}
	select {
	case s.events <- ev:
	default:
		// Drop if slow consumer.
	}
}
