package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type evictCall struct {
	participantID string
	roomID        string
}

func TestBindSupersedesTransport(t *testing.T) {
	svc := newTestService(clockwork.NewFakeClock())
	d := svc.directory

	s1 := newSession(svc, nil)
	s2 := newSession(svc, nil)

	d.Bind("p1", s1, "ROOM0001", "Alice")
	d.Bind("p1", s2, "ROOM0001", "Alice")

	got, ok := d.SessionFor("p1")
	if !ok || got != s2 {
		t.Error("newer transport should supersede the old binding")
	}
	if d.Connections() != 1 {
		t.Errorf("got %d connections, want 1", d.Connections())
	}
}

func TestRoomForUnknownParticipant(t *testing.T) {
	svc := newTestService(clockwork.NewFakeClock())
	if _, ok := svc.directory.RoomFor("nobody"); ok {
		t.Error("lookup of unknown participant should fail")
	}
}

func TestEvictionFiresOnlyForStaleBinding(t *testing.T) {
	clock := clockwork.NewFakeClock()
	svc := newTestService(clock)
	d := svc.directory

	s1 := newSession(svc, nil)
	d.Bind("p1", s1, "ROOM0001", "Alice")

	calls := make(chan evictCall, 1)
	d.ScheduleEviction(context.Background(), "p1", s1, func(pid, roomID string) {
		calls <- evictCall{pid, roomID}
	})

	clock.Advance(10 * time.Second)

	select {
	case c := <-calls:
		if c.participantID != "p1" || c.roomID != "ROOM0001" {
			t.Errorf("bad eviction call: %+v", c)
		}
	case <-time.After(time.Second):
		t.Fatal("eviction never fired for a stale binding")
	}

	if _, ok := d.RoomFor("p1"); ok {
		t.Error("binding should be dropped on eviction")
	}
}

func TestEvictionSkippedWhenBindingMovedOn(t *testing.T) {
	clock := clockwork.NewFakeClock()
	svc := newTestService(clock)
	d := svc.directory

	s1 := newSession(svc, nil)
	s2 := newSession(svc, nil)
	d.Bind("p1", s1, "ROOM0001", "Alice")

	calls := make(chan evictCall, 1)
	d.ScheduleEviction(context.Background(), "p1", s1, func(pid, roomID string) {
		calls <- evictCall{pid, roomID}
	})

	// The id is taken over by a new transport before the timer fires.
	d.Bind("p1", s2, "ROOM0001", "Alice")

	clock.Advance(time.Minute)

	select {
	case c := <-calls:
		t.Fatalf("eviction fired despite rebind: %+v", c)
	case <-time.After(100 * time.Millisecond):
	}

	if got, _ := d.SessionFor("p1"); got != s2 {
		t.Error("binding should survive a cancelled eviction")
	}
}

func TestRearmReplacesPendingTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	svc := newTestService(clock)
	d := svc.directory

	s1 := newSession(svc, nil)
	d.Bind("p1", s1, "ROOM0001", "Alice")

	calls := make(chan evictCall, 2)
	evict := func(pid, roomID string) { calls <- evictCall{pid, roomID} }

	d.ScheduleEviction(context.Background(), "p1", s1, evict)
	d.ScheduleEviction(context.Background(), "p1", s1, evict)

	clock.Advance(time.Minute)

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("eviction never fired")
	}
	select {
	case c := <-calls:
		t.Fatalf("participant evicted twice: %+v", c)
	case <-time.After(100 * time.Millisecond):
	}
}
