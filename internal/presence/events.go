package presence

import "encoding/json"

// Kind is a notification the presence layer emits to sessions.
type Kind int

const (
	// KindMemberJoined notifies room members that someone joined.
	KindMemberJoined Kind = iota
	// KindMemberLeft notifies remaining members that someone left.
	KindMemberLeft
	// KindContentUpdate carries a file edit to the other members.
	KindContentUpdate
	// KindCursorUpdate carries a cursor position to the other members.
	KindCursorUpdate
	// KindChatReceived carries a chat message to every member.
	KindChatReceived
	// KindTypingIndicator marks a member as typing.
	KindTypingIndicator
	// KindTypingCleared clears a member's typing state.
	KindTypingCleared
	// KindFileAdded notifies members about a new file in the tree.
	KindFileAdded
	// KindFileRemoved notifies members about a deleted file.
	KindFileRemoved
	// KindFileNameChanged notifies members about a renamed file.
	KindFileNameChanged
)

// Member identifies a user present in a room. Supplied by the caller at join
// time and treated as opaque; never validated here.
type Member struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// Event describes what happened in a room. Members is the full membership
// snapshot and is only set on join/leave events so late clients can resync.
type Event struct {
	Kind    Kind
	Room    string
	User    Member
	Members []Member

	FileID   string
	Content  string
	NewName  string
	Position json.RawMessage
	FileDesc json.RawMessage
	Message  string

	// Timestamp is the server receive time in unix milliseconds, set on
	// content and chat events.
	Timestamp int64
}

// Delivery pairs an outbound event with its recipient set. Computed under the
// registry lock, sent after it is released.
type Delivery struct {
	To    []*Session
	Event Event
}

// Send delivers each event to its recipients. Sends never block: a session
// whose buffer is full misses the event.
func Send(deliveries []Delivery) {
	for _, d := range deliveries {
		for _, s := range d.To {
			s.deliver(d.Event)
		}
	}
}
