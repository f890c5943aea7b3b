package presence

import "github.com/rs/zerolog"

// Manager implements the join/leave/disconnect transitions against the
// registry. It keeps no state of its own: each call reads and mutates the
// registry's current view and returns the broadcasts the transition produced.
// Callers pass the result to Send after the registry lock has been released.
type Manager struct {
	reg *Registry
	log *zerolog.Logger
}

// NewManager creates a membership manager over the given registry.
func NewManager(reg *Registry, logger *zerolog.Logger) *Manager {
	return &Manager{reg: reg, log: logger}
}

// Join registers s in the room under the given identity and announces the
// join to every member, the joiner included, carrying the full membership
// snapshot. Joining the same room twice replaces the record (last join wins).
func (m *Manager) Join(s *Session, room string, user Member) []Delivery {
	if s.Closed() {
		return nil
	}

	members, recipients := m.reg.Upsert(room, s, user)

	m.log.Info().
		Str("room", room).
		Str("session_id", s.ID).
		Str("user_id", user.UserID).
		Int("members", len(members)).
		Msg("member joined")

	return []Delivery{{
		To: recipients,
		Event: Event{
			Kind:    KindMemberJoined,
			Room:    room,
			User:    user,
			Members: members,
		},
	}}
}

// Leave removes s from the room and announces the departure to the remaining
// members only. Leaving a room the session never joined is a no-op.
func (m *Manager) Leave(s *Session, room string, user Member) []Delivery {
	members, recipients, ok := m.reg.Remove(room, s)
	if !ok {
		return nil
	}

	m.log.Info().
		Str("room", room).
		Str("session_id", s.ID).
		Str("user_id", user.UserID).
		Int("members", len(members)).
		Msg("member left")

	if len(recipients) == 0 {
		return nil
	}

	return []Delivery{{
		To: recipients,
		Event: Event{
			Kind:    KindMemberLeft,
			Room:    room,
			User:    user,
			Members: members,
		},
	}}
}

// Disconnect sweeps s out of every room it joined, announcing one departure
// per room to that room's remaining members. A session with no memberships is
// a clean no-op.
func (m *Manager) Disconnect(s *Session) []Delivery {
	evictions := m.reg.RemoveEverywhere(s)
	if len(evictions) == 0 {
		return nil
	}

	deliveries := make([]Delivery, 0, len(evictions))
	for _, ev := range evictions {
		m.log.Info().
			Str("room", ev.Room).
			Str("session_id", s.ID).
			Str("user_id", ev.User.UserID).
			Msg("member disconnected")

		if len(ev.Recipients) == 0 {
			continue
		}
		deliveries = append(deliveries, Delivery{
			To: ev.Recipients,
			Event: Event{
				Kind:    KindMemberLeft,
				Room:    ev.Room,
				User:    ev.User,
				Members: ev.Members,
			},
		})
	}

	return deliveries
}
