package presence

import (
	"fmt"
	"sync"
	"testing"
)

func TestMembersOfUnknownRoomIsEmpty(t *testing.T) {
	reg := NewRegistry()
	if got := reg.MembersOf("nope"); len(got) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", got)
	}
}

func TestRemoveEverywhereReportsPriorIdentities(t *testing.T) {
	reg := NewRegistry()

	s := NewSession("s")
	peer := NewSession("p")
	reg.Upsert("r1", s, Member{UserID: "u1", UserName: "one"})
	reg.Upsert("r2", s, Member{UserID: "u1", UserName: "one"})
	reg.Upsert("r1", peer, Member{UserID: "u2", UserName: "two"})

	evictions := reg.RemoveEverywhere(s)
	if len(evictions) != 2 {
		t.Fatalf("expected 2 evictions, got %d", len(evictions))
	}
	for _, ev := range evictions {
		if ev.User.UserID != "u1" {
			t.Fatalf("expected prior identity u1, got %+v", ev.User)
		}
		switch ev.Room {
		case "r1":
			if len(ev.Recipients) != 1 || ev.Recipients[0] != peer {
				t.Fatalf("expected peer as remaining recipient in r1")
			}
		case "r2":
			if len(ev.Recipients) != 0 {
				t.Fatalf("expected no recipients in emptied r2")
			}
		default:
			t.Fatalf("unexpected room %q", ev.Room)
		}
	}

	// r2 emptied out and was reclaimed; r1 still has the peer.
	if reg.Rooms() != 1 {
		t.Fatalf("expected 1 room left, got %d", reg.Rooms())
	}
}

func TestConcurrentChurn(t *testing.T) {
	reg := NewRegistry()

	const workers = 16
	const iterations = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			s := NewSession(fmt.Sprintf("s%d", w))
			m := Member{UserID: fmt.Sprintf("u%d", w)}
			room := fmt.Sprintf("room%d", w%4)
			for i := 0; i < iterations; i++ {
				reg.Upsert(room, s, m)
				reg.MembersOf(room)
				reg.Peers(room, s)
				if i%3 == 0 {
					reg.Remove(room, s)
				} else {
					reg.RemoveEverywhere(s)
				}
			}
		}(w)
	}
	wg.Wait()

	if reg.Rooms() != 0 {
		t.Fatalf("expected all rooms reclaimed, have %d", reg.Rooms())
	}
}

func benchmarkBroadcast(b *testing.B, recipients int) {
	disabled := newFixture()

	sender := NewSession("sender")
	Send(disabled.mgr.Join(sender, "bench", Member{UserID: "sender"}))

	clients := make([]*Session, 0, recipients)
	for i := 0; i < recipients; i++ {
		c := NewSession(fmt.Sprintf("c%d", i))
		Send(disabled.mgr.Join(c, "bench", Member{UserID: fmt.Sprintf("u%d", i)}))
		clients = append(clients, c)
	}
	for _, c := range clients {
		drain(c)
	}
	drain(sender)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		Send(disabled.router.ContentEdit(sender, ContentEdit{
			Room: "bench", FileID: "f", Content: "payload", UserID: "sender",
		}))
		for _, c := range clients {
			drain(c)
		}
	}
}

func BenchmarkBroadcast_10(b *testing.B)  { benchmarkBroadcast(b, 10) }
func BenchmarkBroadcast_100(b *testing.B) { benchmarkBroadcast(b, 100) }
func BenchmarkBroadcast_500(b *testing.B) { benchmarkBroadcast(b, 500) }
