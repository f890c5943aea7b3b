package presence

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Router forwards typed room events from a sending session to the right
// subset of its peers. Every event requires the sender to currently hold
// membership in the target room; if it does not (a race with leave or
// disconnect, not a fault), the event is dropped and logged at debug level.
//
// Edits, cursors and typing state are not echoed back to the sender, which
// already holds the authoritative local copy. Chat goes to everyone so each
// client's transcript stays identical regardless of who sent what.
//
// No ordering or merge is applied to concurrent edits of the same file:
// events are forwarded in arrival order and the last broadcast wins.
type Router struct {
	reg *Registry
	log *zerolog.Logger
	now func() time.Time
}

// NewRouter creates an event router over the given registry.
func NewRouter(reg *Registry, logger *zerolog.Logger) *Router {
	return &Router{reg: reg, log: logger, now: time.Now}
}

// ContentEdit is an inbound file-content edit.
type ContentEdit struct {
	Room    string
	FileID  string
	Content string
	UserID  string
}

// ContentEdit forwards an edit to every member except the sender, stamped
// with the server receive time.
func (r *Router) ContentEdit(s *Session, e ContentEdit) []Delivery {
	peers, ok := r.senderPeers(s, e.Room, "content-edit")
	if !ok || len(peers) == 0 {
		return nil
	}

	return []Delivery{{
		To: peers,
		Event: Event{
			Kind:      KindContentUpdate,
			Room:      e.Room,
			FileID:    e.FileID,
			Content:   e.Content,
			User:      Member{UserID: e.UserID},
			Timestamp: r.now().UnixMilli(),
		},
	}}
}

// CursorMove is an inbound cursor position change. Position is opaque to the
// server and forwarded verbatim.
type CursorMove struct {
	Room     string
	FileID   string
	Position json.RawMessage
	UserID   string
	UserName string
}

// CursorMove forwards a cursor position to every member except the sender.
func (r *Router) CursorMove(s *Session, e CursorMove) []Delivery {
	peers, ok := r.senderPeers(s, e.Room, "cursor-move")
	if !ok || len(peers) == 0 {
		return nil
	}

	return []Delivery{{
		To: peers,
		Event: Event{
			Kind:     KindCursorUpdate,
			Room:     e.Room,
			FileID:   e.FileID,
			Position: e.Position,
			User:     Member{UserID: e.UserID, UserName: e.UserName},
		},
	}}
}

// Chat is an inbound chat message.
type Chat struct {
	Room     string
	Message  string
	UserID   string
	UserName string
}

// Chat forwards a message to every member of the room, the sender included.
func (r *Router) Chat(s *Session, e Chat) []Delivery {
	all, ok := r.reg.Everyone(e.Room, s)
	if !ok {
		r.dropped(s, e.Room, "chat-message")
		return nil
	}

	return []Delivery{{
		To: all,
		Event: Event{
			Kind:      KindChatReceived,
			Room:      e.Room,
			Message:   e.Message,
			User:      Member{UserID: e.UserID, UserName: e.UserName},
			Timestamp: r.now().UnixMilli(),
		},
	}}
}

// TypingStart marks the sender as typing for every other member.
func (r *Router) TypingStart(s *Session, room, userID, userName string) []Delivery {
	peers, ok := r.senderPeers(s, room, "typing-start")
	if !ok || len(peers) == 0 {
		return nil
	}

	return []Delivery{{
		To: peers,
		Event: Event{
			Kind: KindTypingIndicator,
			Room: room,
			User: Member{UserID: userID, UserName: userName},
		},
	}}
}

// TypingStop clears the sender's typing state for every other member.
func (r *Router) TypingStop(s *Session, room, userID string) []Delivery {
	peers, ok := r.senderPeers(s, room, "typing-stop")
	if !ok || len(peers) == 0 {
		return nil
	}

	return []Delivery{{
		To: peers,
		Event: Event{
			Kind: KindTypingCleared,
			Room: room,
			User: Member{UserID: userID},
		},
	}}
}

// FileCreated forwards a new file descriptor to every member except the
// sender. The descriptor is opaque to the server.
func (r *Router) FileCreated(s *Session, room string, file json.RawMessage) []Delivery {
	peers, ok := r.senderPeers(s, room, "file-created")
	if !ok || len(peers) == 0 {
		return nil
	}

	return []Delivery{{
		To: peers,
		Event: Event{
			Kind:     KindFileAdded,
			Room:     room,
			FileDesc: file,
		},
	}}
}

// FileDeleted forwards a file removal to every member except the sender.
func (r *Router) FileDeleted(s *Session, room, fileID string) []Delivery {
	peers, ok := r.senderPeers(s, room, "file-deleted")
	if !ok || len(peers) == 0 {
		return nil
	}

	return []Delivery{{
		To: peers,
		Event: Event{
			Kind:   KindFileRemoved,
			Room:   room,
			FileID: fileID,
		},
	}}
}

// FileRenamed forwards a file rename to every member except the sender.
func (r *Router) FileRenamed(s *Session, room, fileID, newName string) []Delivery {
	peers, ok := r.senderPeers(s, room, "file-renamed")
	if !ok || len(peers) == 0 {
		return nil
	}

	return []Delivery{{
		To: peers,
		Event: Event{
			Kind:    KindFileNameChanged,
			Room:    room,
			FileID:  fileID,
			NewName: newName,
		},
	}}
}

func (r *Router) senderPeers(s *Session, room, eventType string) ([]*Session, bool) {
	peers, ok := r.reg.Peers(room, s)
	if !ok {
		r.dropped(s, room, eventType)
		return nil, false
	}
	return peers, true
}

func (r *Router) dropped(s *Session, room, eventType string) {
	r.log.Debug().
		Str("room", room).
		Str("session_id", s.ID).
		Str("event", eventType).
		Msg("event from non-member dropped")
}
