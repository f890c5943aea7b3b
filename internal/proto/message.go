package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoinRoom    = "join-room"
	InboundTypeLeaveRoom   = "leave-room"
	InboundTypeContentEdit = "content-edit"
	InboundTypeCursorMove  = "cursor-move"
	InboundTypeChatMessage = "chat-message"
	InboundTypeTypingStart = "typing-start"
	InboundTypeTypingStop  = "typing-stop"
	InboundTypeFileCreated = "file-created"
	InboundTypeFileDeleted = "file-deleted"
	InboundTypeFileRenamed = "file-renamed"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventMemberJoined    = "member-joined"
	EventMemberLeft      = "member-left"
	EventContentUpdate   = "content-update"
	EventCursorUpdate    = "cursor-update"
	EventChatReceived    = "chat-received"
	EventTypingIndicator = "typing-indicator"
	EventTypingCleared   = "typing-cleared"
	EventFileAdded       = "file-added"
	EventFileRemoved     = "file-removed"
	EventFileNameChanged = "file-name-changed"
)

// Member is one present identity inside a room snapshot.
type Member struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// JoinRoomData requests to join a project room.
type JoinRoomData struct {
	Room     string `json:"room"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// LeaveRoomData requests to leave a project room.
type LeaveRoomData struct {
	Room     string `json:"room"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// ContentEditData carries an edit to a file's content.
type ContentEditData struct {
	Room    string `json:"room"`
	FileID  string `json:"fileId"`
	Content string `json:"content"`
	UserID  string `json:"userId"`
}

// CursorMoveData carries a cursor position. Position is client-defined and
// forwarded verbatim.
type CursorMoveData struct {
	Room     string          `json:"room"`
	FileID   string          `json:"fileId"`
	Position json.RawMessage `json:"position"`
	UserID   string          `json:"userId"`
	UserName string          `json:"userName"`
}

// ChatMessageData carries a chat message.
type ChatMessageData struct {
	Room     string `json:"room"`
	Message  string `json:"message"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// TypingData marks the start or stop of typing.
type TypingData struct {
	Room     string `json:"room"`
	UserID   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
}

// FileCreatedData announces a new file; the descriptor is forwarded verbatim.
type FileCreatedData struct {
	Room string          `json:"room"`
	File json.RawMessage `json:"file"`
}

// FileDeletedData announces a deleted file.
type FileDeletedData struct {
	Room   string `json:"room"`
	FileID string `json:"fileId"`
}

// FileRenamedData announces a renamed file.
type FileRenamedData struct {
	Room    string `json:"room"`
	FileID  string `json:"fileId"`
	NewName string `json:"newName"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// MemberEvent notifies about a join or leave, carrying the full current
// membership snapshot for resynchronization.
type MemberEvent struct {
	Room     string   `json:"room"`
	UserID   string   `json:"userId"`
	UserName string   `json:"userName"`
	Members  []Member `json:"members"`
}

// ContentUpdateEvent carries an edit to the other members.
type ContentUpdateEvent struct {
	Room      string `json:"room"`
	FileID    string `json:"fileId"`
	Content   string `json:"content"`
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"`
}

// CursorUpdateEvent carries a peer's cursor position.
type CursorUpdateEvent struct {
	Room     string          `json:"room"`
	FileID   string          `json:"fileId"`
	Position json.RawMessage `json:"position"`
	UserID   string          `json:"userId"`
	UserName string          `json:"userName"`
}

// ChatReceivedEvent carries a chat message to every member.
type ChatReceivedEvent struct {
	Room      string `json:"room"`
	Message   string `json:"message"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Timestamp int64  `json:"timestamp"`
}

// TypingEvent marks a member as typing or no longer typing.
type TypingEvent struct {
	Room     string `json:"room"`
	UserID   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
}

// FileAddedEvent announces a new file in the project tree.
type FileAddedEvent struct {
	Room string          `json:"room"`
	File json.RawMessage `json:"file"`
}

// FileRemovedEvent announces a deleted file.
type FileRemovedEvent struct {
	Room   string `json:"room"`
	FileID string `json:"fileId"`
}

// FileNameChangedEvent announces a renamed file.
type FileNameChangedEvent struct {
	Room    string `json:"room"`
	FileID  string `json:"fileId"`
	NewName string `json:"newName"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
