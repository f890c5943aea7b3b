package presence

import (
	"encoding/json"
	"testing"
)

func joinPair(t *testing.T, f *fixture) (alice, bob *Session) {
	t.Helper()

	alice = NewSession("a")
	bob = NewSession("b")
	Send(f.mgr.Join(alice, "p1", Member{UserID: "u1", UserName: "alice"}))
	Send(f.mgr.Join(bob, "p1", Member{UserID: "u2", UserName: "bob"}))
	drain(alice)
	drain(bob)
	return alice, bob
}

func TestContentEditExcludesSender(t *testing.T) {
	f := newFixture()
	alice, bob := joinPair(t, f)

	Send(f.router.ContentEdit(alice, ContentEdit{
		Room: "p1", FileID: "f1", Content: "x", UserID: "u1",
	}))

	ev := mustEvent(t, bob, KindContentUpdate)
	if ev.FileID != "f1" || ev.Content != "x" || ev.User.UserID != "u1" {
		t.Fatalf("unexpected content update: %+v", ev)
	}
	if ev.Timestamp == 0 {
		t.Fatalf("expected server timestamp on content update")
	}

	// The sender never hears its own edit back.
	mustNoEvent(t, alice)
}

func TestChatIncludesSender(t *testing.T) {
	f := newFixture()
	alice, bob := joinPair(t, f)

	Send(f.router.Chat(alice, Chat{
		Room: "p1", Message: "hello", UserID: "u1", UserName: "alice",
	}))

	for _, s := range []*Session{alice, bob} {
		ev := mustEvent(t, s, KindChatReceived)
		if ev.Message != "hello" || ev.User.UserID != "u1" || ev.User.UserName != "alice" {
			t.Fatalf("unexpected chat event: %+v", ev)
		}
		if ev.Timestamp == 0 {
			t.Fatalf("expected timestamp on chat event")
		}
	}
}

func TestCursorMoveCarriesIdentityAndPosition(t *testing.T) {
	f := newFixture()
	alice, bob := joinPair(t, f)

	pos := json.RawMessage(`{"line":3,"column":7}`)
	Send(f.router.CursorMove(alice, CursorMove{
		Room: "p1", FileID: "f1", Position: pos, UserID: "u1", UserName: "alice",
	}))

	ev := mustEvent(t, bob, KindCursorUpdate)
	if ev.FileID != "f1" || string(ev.Position) != string(pos) || ev.User.UserName != "alice" {
		t.Fatalf("unexpected cursor update: %+v", ev)
	}
	mustNoEvent(t, alice)
}

func TestTypingIndicators(t *testing.T) {
	f := newFixture()
	alice, bob := joinPair(t, f)

	Send(f.router.TypingStart(alice, "p1", "u1", "alice"))
	ev := mustEvent(t, bob, KindTypingIndicator)
	if ev.User.UserID != "u1" || ev.User.UserName != "alice" {
		t.Fatalf("unexpected typing event: %+v", ev)
	}
	mustNoEvent(t, alice)

	Send(f.router.TypingStop(alice, "p1", "u1"))
	ev = mustEvent(t, bob, KindTypingCleared)
	if ev.User.UserID != "u1" {
		t.Fatalf("unexpected typing-cleared event: %+v", ev)
	}
}

func TestFileTreeMutations(t *testing.T) {
	f := newFixture()
	alice, bob := joinPair(t, f)

	desc := json.RawMessage(`{"id":"f2","name":"main.go"}`)
	Send(f.router.FileCreated(alice, "p1", desc))
	ev := mustEvent(t, bob, KindFileAdded)
	if string(ev.FileDesc) != string(desc) {
		t.Fatalf("unexpected file-added event: %+v", ev)
	}

	Send(f.router.FileRenamed(alice, "p1", "f2", "app.go"))
	ev = mustEvent(t, bob, KindFileNameChanged)
	if ev.FileID != "f2" || ev.NewName != "app.go" {
		t.Fatalf("unexpected rename event: %+v", ev)
	}

	Send(f.router.FileDeleted(alice, "p1", "f2"))
	ev = mustEvent(t, bob, KindFileRemoved)
	if ev.FileID != "f2" {
		t.Fatalf("unexpected file-removed event: %+v", ev)
	}

	mustNoEvent(t, alice)
}

func TestEventFromNonMemberIsDropped(t *testing.T) {
	f := newFixture()

	alice := NewSession("a")
	bob := NewSession("b")
	Send(f.mgr.Join(bob, "p1", Member{UserID: "u2", UserName: "bob"}))
	drain(bob)

	// Alice never joined p1; her events go nowhere.
	if deliveries := f.router.ContentEdit(alice, ContentEdit{Room: "p1", FileID: "f1", Content: "x", UserID: "u1"}); deliveries != nil {
		t.Fatalf("expected drop, got %+v", deliveries)
	}
	if deliveries := f.router.Chat(alice, Chat{Room: "p1", Message: "hi", UserID: "u1"}); deliveries != nil {
		t.Fatalf("expected drop, got %+v", deliveries)
	}
	mustNoEvent(t, bob)
}

// Full scenario from the presence contract: two members, an edit, a disconnect.
func TestEditAndDisconnectScenario(t *testing.T) {
	f := newFixture()

	alice := NewSession("a")
	bob := NewSession("b")

	Send(f.mgr.Join(alice, "p1", Member{UserID: "u1", UserName: "alice"}))
	Send(f.mgr.Join(bob, "p1", Member{UserID: "u2", UserName: "bob"}))

	drain(alice)
	ev := mustEvent(t, bob, KindMemberJoined)
	if len(ev.Members) != 2 {
		t.Fatalf("expected two members after both join, got %+v", ev.Members)
	}

	Send(f.router.ContentEdit(alice, ContentEdit{Room: "p1", FileID: "f1", Content: "x", UserID: "u1"}))
	ev = mustEvent(t, bob, KindContentUpdate)
	if ev.FileID != "f1" || ev.Content != "x" || ev.User.UserID != "u1" || ev.Timestamp == 0 {
		t.Fatalf("unexpected content update: %+v", ev)
	}
	mustNoEvent(t, alice)

	alice.Close()
	Send(f.mgr.Disconnect(alice))
	ev = mustEvent(t, bob, KindMemberLeft)
	if ev.User.UserID != "u1" || len(ev.Members) != 1 || !hasMember(ev.Members, "u2") {
		t.Fatalf("unexpected member-left after disconnect: %+v", ev)
	}
}

func TestSlowConsumerDropsInsteadOfBlocking(t *testing.T) {
	f := newFixture()
	alice, bob := joinPair(t, f)

	// Overrun bob's buffer; sends must not block.
	for i := 0; i < sessionBuffer*2; i++ {
		Send(f.router.Chat(alice, Chat{Room: "p1", Message: "spam", UserID: "u1"}))
	}

	drained := 0
	for {
		select {
		case <-bob.Events():
			drained++
			continue
		default:
		}
		break
	}
	if drained != sessionBuffer {
		t.Fatalf("expected %d buffered events, got %d", sessionBuffer, drained)
	}
}
