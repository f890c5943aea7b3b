package http

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/codesync/codesync-server/internal/proto"
)

// outboundFrame mirrors proto.Outbound with raw data so tests can decode the
// payload per event.
type outboundFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func (e *testEnv) dialWS(t *testing.T, token string) *websocket.Conn {
	t.Helper()

	url := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws?token=" + token
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("failed to dial ws: %v", err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func sendWS(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("failed to marshal %s payload: %v", msgType, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: raw}); err != nil {
		t.Fatalf("failed to send %s: %v", msgType, err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) outboundFrame {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var frame outboundFrame
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	return frame
}

// expectEvent reads the next frame and asserts it is the given event,
// decoding its payload into out.
func expectEvent(t *testing.T, conn *websocket.Conn, event string, out any) {
	t.Helper()

	frame := readFrame(t, conn)
	if frame.Type != proto.OutboundTypeEvent || frame.Event != event {
		t.Fatalf("expected event %s, got type=%s event=%s error=%+v", event, frame.Type, frame.Event, frame.Error)
	}
	if out != nil {
		if err := json.Unmarshal(frame.Data, out); err != nil {
			t.Fatalf("failed to decode %s payload: %v", event, err)
		}
	}
}

func TestWSRejectsInvalidToken(t *testing.T) {
	env := startTestServer(t)

	url := strings.Replace(env.ts.URL, "http", "ws", 1) + "/ws?token=not-a-jwt"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err == nil {
		conn.CloseNow()
		t.Fatal("expected dial to fail with an invalid token")
	}
}

func TestWSJoinRequiresProjectAccess(t *testing.T) {
	env := startTestServer(t)
	alice := env.register(t, "alice")
	charlie := env.register(t, "charlie")

	project := env.createProject(t, alice, CreateProjectRequest{Name: "private"})

	conn := env.dialWS(t, charlie)
	sendWS(t, conn, proto.InboundTypeJoinRoom, proto.JoinRoomData{Room: project.ID})

	frame := readFrame(t, conn)
	if frame.Type != proto.OutboundTypeError || frame.Error == nil || frame.Error.Code != "not_authorized" {
		t.Fatalf("expected not_authorized error, got %+v", frame)
	}
}

func TestWSRejectsUnknownMessageType(t *testing.T) {
	env := startTestServer(t)
	alice := env.register(t, "alice")

	conn := env.dialWS(t, alice)
	sendWS(t, conn, "bogus", struct{}{})

	frame := readFrame(t, conn)
	if frame.Type != proto.OutboundTypeError || frame.Error == nil || frame.Error.Code != "invalid_message" {
		t.Fatalf("expected invalid_message error, got %+v", frame)
	}
}

func TestWSCollaborationSession(t *testing.T) {
	env := startTestServer(t)
	aliceToken := env.register(t, "alice")
	bobToken := env.register(t, "bob")

	project := env.createProject(t, aliceToken, CreateProjectRequest{Name: "pair-session"})
	resp := env.doJSON(t, "POST", "/api/projects/"+project.ID+"/members", aliceToken, AddMemberRequest{Username: "bob"})
	resp.Body.Close()

	aliceConn := env.dialWS(t, aliceToken)
	bobConn := env.dialWS(t, bobToken)
	room := project.ID

	// Alice joins and receives the snapshot with herself in it.
	sendWS(t, aliceConn, proto.InboundTypeJoinRoom, proto.JoinRoomData{Room: room})
	var joined proto.MemberEvent
	expectEvent(t, aliceConn, proto.EventMemberJoined, &joined)
	if len(joined.Members) != 1 || joined.UserName != "alice" {
		t.Fatalf("expected alice alone in the room, got %+v", joined)
	}

	// Bob joins. Both sides get the two-member snapshot.
	sendWS(t, bobConn, proto.InboundTypeJoinRoom, proto.JoinRoomData{Room: room})
	expectEvent(t, aliceConn, proto.EventMemberJoined, &joined)
	if len(joined.Members) != 2 || joined.UserName != "bob" {
		t.Fatalf("expected bob's join with two members, got %+v", joined)
	}
	expectEvent(t, bobConn, proto.EventMemberJoined, &joined)
	if len(joined.Members) != 2 {
		t.Fatalf("expected two members in bob's snapshot, got %+v", joined)
	}

	// An edit reaches bob but never echoes back to alice.
	sendWS(t, aliceConn, proto.InboundTypeContentEdit, proto.ContentEditData{
		Room:    room,
		FileID:  "file-1",
		Content: "package main",
	})
	var update proto.ContentUpdateEvent
	expectEvent(t, bobConn, proto.EventContentUpdate, &update)
	if update.Content != "package main" || update.FileID != "file-1" {
		t.Fatalf("unexpected content update: %+v", update)
	}
	if update.Timestamp == 0 {
		t.Fatal("expected a server-side timestamp on the update")
	}

	// Chat goes to everyone, sender included. Alice's very next frame being
	// the chat message proves the edit was not echoed back to her.
	sendWS(t, aliceConn, proto.InboundTypeChatMessage, proto.ChatMessageData{Room: room, Message: "hello"})
	var chat proto.ChatReceivedEvent
	expectEvent(t, aliceConn, proto.EventChatReceived, &chat)
	if chat.Message != "hello" || chat.UserName != "alice" {
		t.Fatalf("unexpected chat event on sender: %+v", chat)
	}
	expectEvent(t, bobConn, proto.EventChatReceived, &chat)
	if chat.Message != "hello" {
		t.Fatalf("unexpected chat event on peer: %+v", chat)
	}

	// Cursor positions are forwarded verbatim to peers only.
	sendWS(t, bobConn, proto.InboundTypeCursorMove, proto.CursorMoveData{
		Room:     room,
		FileID:   "file-1",
		Position: json.RawMessage(`{"line":3,"column":7}`),
	})
	var cursor proto.CursorUpdateEvent
	expectEvent(t, aliceConn, proto.EventCursorUpdate, &cursor)
	if string(cursor.Position) != `{"line":3,"column":7}` || cursor.UserName != "bob" {
		t.Fatalf("unexpected cursor update: %+v", cursor)
	}

	// Typing indicators.
	sendWS(t, bobConn, proto.InboundTypeTypingStart, proto.TypingData{Room: room})
	var typing proto.TypingEvent
	expectEvent(t, aliceConn, proto.EventTypingIndicator, &typing)
	if typing.UserName != "bob" {
		t.Fatalf("unexpected typing event: %+v", typing)
	}
	sendWS(t, bobConn, proto.InboundTypeTypingStop, proto.TypingData{Room: room})
	expectEvent(t, aliceConn, proto.EventTypingCleared, nil)

	// File tree mutation, descriptor forwarded as-is.
	sendWS(t, aliceConn, proto.InboundTypeFileCreated, proto.FileCreatedData{
		Room: room,
		File: json.RawMessage(`{"id":"file-2","name":"util.go"}`),
	})
	var added proto.FileAddedEvent
	expectEvent(t, bobConn, proto.EventFileAdded, &added)
	if string(added.File) != `{"id":"file-2","name":"util.go"}` {
		t.Fatalf("unexpected file descriptor: %s", added.File)
	}

	// Alice drops the connection; bob learns about it.
	aliceConn.Close(websocket.StatusNormalClosure, "")
	var left proto.MemberEvent
	expectEvent(t, bobConn, proto.EventMemberLeft, &left)
	if left.UserName != "alice" || len(left.Members) != 1 {
		t.Fatalf("expected alice's departure with bob remaining, got %+v", left)
	}
}

func TestWSLeaveRoom(t *testing.T) {
	env := startTestServer(t)
	aliceToken := env.register(t, "alice")
	bobToken := env.register(t, "bob")

	project := env.createProject(t, aliceToken, CreateProjectRequest{Name: "demo", IsPublic: true})

	aliceConn := env.dialWS(t, aliceToken)
	bobConn := env.dialWS(t, bobToken)

	sendWS(t, aliceConn, proto.InboundTypeJoinRoom, proto.JoinRoomData{Room: project.ID})
	expectEvent(t, aliceConn, proto.EventMemberJoined, nil)
	sendWS(t, bobConn, proto.InboundTypeJoinRoom, proto.JoinRoomData{Room: project.ID})
	expectEvent(t, aliceConn, proto.EventMemberJoined, nil)
	expectEvent(t, bobConn, proto.EventMemberJoined, nil)

	// An explicit leave notifies the remaining members, not the leaver.
	sendWS(t, bobConn, proto.InboundTypeLeaveRoom, proto.LeaveRoomData{Room: project.ID})
	var left proto.MemberEvent
	expectEvent(t, aliceConn, proto.EventMemberLeft, &left)
	if left.UserName != "bob" || len(left.Members) != 1 {
		t.Fatalf("expected bob's departure, got %+v", left)
	}

	// Bob is gone from the room: his edits no longer reach alice. The chat
	// alice sends afterwards must be her next frame.
	sendWS(t, bobConn, proto.InboundTypeContentEdit, proto.ContentEditData{Room: project.ID, FileID: "f", Content: "x"})
	sendWS(t, aliceConn, proto.InboundTypeChatMessage, proto.ChatMessageData{Room: project.ID, Message: "still here"})
	var chat proto.ChatReceivedEvent
	expectEvent(t, aliceConn, proto.EventChatReceived, &chat)
	if chat.Message != "still here" {
		t.Fatalf("expected alice's own chat, got %+v", chat)
	}
}
