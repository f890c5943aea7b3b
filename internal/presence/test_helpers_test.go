package presence

import (
	"testing"

	"github.com/rs/zerolog"
)

type fixture struct {
	reg    *Registry
	mgr    *Manager
	router *Router
}

func newFixture() *fixture {
	disabled := zerolog.New(nil)
	reg := NewRegistry()
	return &fixture{
		reg:    reg,
		mgr:    NewManager(reg, &disabled),
		router: NewRouter(reg, &disabled),
	}
}

// mustEvent pops the next buffered event from the session and checks its kind.
func mustEvent(t *testing.T, s *Session, kind Kind) Event {
	t.Helper()

	select {
	case ev := <-s.Events():
		if ev.Kind != kind {
			t.Fatalf("expected event kind %v, got %v (%+v)", kind, ev.Kind, ev)
		}
		return ev
	default:
		t.Fatalf("expected event kind %v, none buffered", kind)
	}
	return Event{}
}

// mustNoEvent asserts the session has nothing buffered.
func mustNoEvent(t *testing.T, s *Session) {
	t.Helper()

	select {
	case ev := <-s.Events():
		t.Fatalf("expected no event, got %+v", ev)
	default:
	}
}

// drain discards everything currently buffered on the session.
func drain(s *Session) {
	for {
		select {
		case <-s.Events():
		default:
			return
		}
	}
}

func hasMember(members []Member, userID string) bool {
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
