package presence

import "sync"

// Registry is the in-memory presence store: which sessions, under which
// identity, are currently in which room. It is the only shared mutable state
// of the presence layer and owns every membership record. Rooms materialize on
// first upsert and are reclaimed when the last member goes.
//
// Every method that mutates the map also computes the snapshot and recipient
// set the caller needs for the resulting broadcast, so that mutation and
// recipient selection are one atomic step. No I/O happens under the lock.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[*Session]Member
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[*Session]Member)}
}

// Upsert inserts or replaces the membership record for (room, session).
// Re-joining replaces the identity, never duplicates the record. Returns the
// membership snapshot after the insert and the sessions now in the room,
// including s.
func (r *Registry) Upsert(room string, s *Session, m Member) (members []Member, recipients []*Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	occupants, ok := r.rooms[room]
	if !ok {
		occupants = make(map[*Session]Member)
		r.rooms[room] = occupants
	}
	occupants[s] = m

	return snapshot(occupants)
}

// Remove deletes the membership record for (room, session) if present.
// Returns the remaining snapshot and remaining sessions; ok is false when the
// record did not exist, in which case nothing changed.
func (r *Registry) Remove(room string, s *Session) (members []Member, recipients []*Session, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	occupants, exists := r.rooms[room]
	if !exists {
		return nil, nil, false
	}
	if _, exists = occupants[s]; !exists {
		return nil, nil, false
	}

	delete(occupants, s)
	if len(occupants) == 0 {
		delete(r.rooms, room)
		return nil, nil, true
	}

	members, recipients = snapshot(occupants)
	return members, recipients, true
}

// Eviction records one room a disconnecting session was removed from.
type Eviction struct {
	Room       string
	User       Member
	Members    []Member
	Recipients []*Session
}

// RemoveEverywhere deletes every membership record held by s, across all
// rooms, and reports each eviction with the remaining snapshot of its room.
// A session with no memberships yields nil.
func (r *Registry) RemoveEverywhere(s *Session) []Eviction {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evictions []Eviction
	for room, occupants := range r.rooms {
		m, exists := occupants[s]
		if !exists {
			continue
		}

		delete(occupants, s)
		ev := Eviction{Room: room, User: m}
		if len(occupants) == 0 {
			delete(r.rooms, room)
		} else {
			ev.Members, ev.Recipients = snapshot(occupants)
		}
		evictions = append(evictions, ev)
	}

	return evictions
}

// MembersOf returns the current membership snapshot for a room. An unknown
// room yields an empty result, not an error.
func (r *Registry) MembersOf(room string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	occupants, ok := r.rooms[room]
	if !ok {
		return nil
	}
	members, _ := snapshot(occupants)
	return members
}

// Peers returns the sessions in the room other than sender. member reports
// whether sender itself currently holds a membership record there.
func (r *Registry) Peers(room string, sender *Session) (peers []*Session, member bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	occupants, ok := r.rooms[room]
	if !ok {
		return nil, false
	}
	if _, member = occupants[sender]; !member {
		return nil, false
	}

	peers = make([]*Session, 0, len(occupants)-1)
	for s := range occupants {
		if s != sender {
			peers = append(peers, s)
		}
	}
	return peers, true
}

// Everyone returns all sessions in the room, sender included. member reports
// whether sender currently holds a membership record there.
func (r *Registry) Everyone(room string, sender *Session) (all []*Session, member bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	occupants, ok := r.rooms[room]
	if !ok {
		return nil, false
	}
	if _, member = occupants[sender]; !member {
		return nil, false
	}

	all = make([]*Session, 0, len(occupants))
	for s := range occupants {
		all = append(all, s)
	}
	return all, true
}

// Rooms returns how many rooms currently have members.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// snapshot must be called with the lock held.
func snapshot(occupants map[*Session]Member) ([]Member, []*Session) {
	members := make([]Member, 0, len(occupants))
	recipients := make([]*Session, 0, len(occupants))
	for s, m := range occupants {
		members = append(members, m)
		recipients = append(recipients, s)
	}
	return members, recipients
}
