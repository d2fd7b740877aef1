package room

import (
	"strings"
	"testing"
)

func strptr(s string) *string { return &s }

func TestCreateRoomGeneratesCanonicalCode(t *testing.T) {
	r := NewRegistry()

	code := r.CreateRoom()
	if len(code) != roomCodeLength {
		t.Errorf("expected %d-character code, got %q", roomCodeLength, code)
	}
	if code != strings.ToUpper(code) {
		t.Errorf("expected uppercase code, got %q", code)
	}
	if !r.Exists(code) {
		t.Error("created room not found in registry")
	}

	other := r.CreateRoom()
	if other == code {
		t.Errorf("two rooms share code %q", code)
	}
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abcd1234", "ABCD1234"},
		{"ABCD1234", "ABCD1234"},
		{"  abCD1234 ", "ABCD1234"},
	}
	for _, tt := range tests {
		if got := NormalizeID(tt.in); got != tt.want {
			t.Errorf("NormalizeID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEmptyRoomIsDeletedImmediately(t *testing.T) {
	r := NewRegistry()
	code := r.CreateRoom()
	r.AddParticipant(code, "p1", "Alice")
	r.AddParticipant(code, "p2", "Bob")

	if stillExists := r.RemoveParticipant(code, "p1"); !stillExists {
		t.Fatal("room should survive while a participant remains")
	}
	if stillExists := r.RemoveParticipant(code, "p2"); stillExists {
		t.Fatal("room should be deleted with its last participant")
	}
	if r.Exists(code) {
		t.Error("empty room still present in registry")
	}
}

func TestAddParticipantUnknownRoom(t *testing.T) {
	r := NewRegistry()
	if r.AddParticipant("NOPE1234", "p1", "Alice") {
		t.Error("expected add to fail for unknown room")
	}
}

func TestAddParticipantResetsVote(t *testing.T) {
	r := NewRegistry()
	code := r.CreateRoom()
	r.AddParticipant(code, "p1", "Alice")
	r.SetVote(code, "p1", strptr("5"))

	// Re-adding models a reconnect after eviction: the seat comes back clean.
	r.AddParticipant(code, "p1", "Alice")

	view, _ := r.View(code, "p1")
	if view.Participants[0].HasVoted {
		t.Error("re-added participant should have no vote")
	}
}

func TestVoteVisibility(t *testing.T) {
	tests := []struct {
		name       string
		revealed   bool
		viewer     string
		wantVote   map[string]*string
	}{
		{
			name:     "owner sees own pending vote",
			viewer:   "p1",
			wantVote: map[string]*string{"p1": strptr("5"), "p2": nil},
		},
		{
			name:     "peer never sees another pending vote",
			viewer:   "p2",
			wantVote: map[string]*string{"p1": nil, "p2": strptr("8")},
		},
		{
			name:     "anonymous view hides everything before reveal",
			viewer:   "",
			wantVote: map[string]*string{"p1": nil, "p2": nil},
		},
		{
			name:     "reveal exposes all votes to everyone",
			revealed: true,
			viewer:   "p2",
			wantVote: map[string]*string{"p1": strptr("5"), "p2": strptr("8")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			code := r.CreateRoom()
			r.AddParticipant(code, "p1", "Alice")
			r.AddParticipant(code, "p2", "Bob")
			r.SetVote(code, "p1", strptr("5"))
			r.SetVote(code, "p2", strptr("8"))
			if tt.revealed {
				r.Reveal(code)
			}

			view, ok := r.View(code, tt.viewer)
			if !ok {
				t.Fatal("room vanished")
			}
			for _, p := range view.Participants {
				want := tt.wantVote[p.ID]
				switch {
				case want == nil && p.Vote != nil:
					t.Errorf("viewer %q sees %s's vote %q before entitled", tt.viewer, p.ID, *p.Vote)
				case want != nil && p.Vote == nil:
					t.Errorf("viewer %q missing %s's vote", tt.viewer, p.ID)
				case want != nil && p.Vote != nil && *want != *p.Vote:
					t.Errorf("viewer %q sees vote %q for %s, want %q", tt.viewer, *p.Vote, p.ID, *want)
				}
				if !p.HasVoted {
					t.Errorf("hasVoted should always be visible for %s", p.ID)
				}
			}
		})
	}
}

func TestUnknownTokenIsAnOrdinaryVote(t *testing.T) {
	r := NewRegistry()
	code := r.CreateRoom()
	r.AddParticipant(code, "p1", "Alice")
	r.SetVote(code, "p1", strptr("?"))

	view, _ := r.View(code, "p2")
	if !view.Participants[0].HasVoted {
		t.Error("? counts as a cast vote")
	}
	if view.Participants[0].Vote != nil {
		t.Error("? stays hidden from peers like any other vote")
	}
}

func TestNilVoteRetracts(t *testing.T) {
	r := NewRegistry()
	code := r.CreateRoom()
	r.AddParticipant(code, "p1", "Alice")
	r.SetVote(code, "p1", strptr("3"))
	r.SetVote(code, "p1", nil)

	view, _ := r.View(code, "p1")
	if view.Participants[0].HasVoted || view.Participants[0].Vote != nil {
		t.Error("nil vote should clear the participant's vote")
	}
}

func TestRevealIsIdempotent(t *testing.T) {
	r := NewRegistry()
	code := r.CreateRoom()
	r.AddParticipant(code, "p1", "Alice")
	r.Reveal(code)
	r.Reveal(code)

	view, _ := r.View(code, "")
	if !view.VotesRevealed {
		t.Error("votes should stay revealed")
	}
}

func TestResetStartsNewRound(t *testing.T) {
	r := NewRegistry()
	code := r.CreateRoom()
	r.AddParticipant(code, "p1", "Alice")
	r.AddParticipant(code, "p2", "Bob")
	r.SetVote(code, "p1", strptr("5"))
	r.SetVote(code, "p2", strptr("8"))
	r.Reveal(code)

	r.Reset(code)

	view, _ := r.View(code, "p1")
	if view.VotesRevealed {
		t.Error("reset should hide votes again")
	}
	for _, p := range view.Participants {
		if p.HasVoted || p.Vote != nil {
			t.Errorf("reset should clear %s's vote", p.ID)
		}
	}
}

func TestOpsOnUnknownRoomAreNoOps(t *testing.T) {
	r := NewRegistry()

	// None of these may panic or create state.
	r.SetVote("NOPE1234", "p1", strptr("5"))
	r.Reveal("NOPE1234")
	r.Reset("NOPE1234")
	r.RemoveParticipant("NOPE1234", "p1")

	if rooms, _ := r.Counts(); rooms != 0 {
		t.Errorf("expected no rooms, got %d", rooms)
	}
}

func TestCounts(t *testing.T) {
	r := NewRegistry()
	a := r.CreateRoom()
	b := r.CreateRoom()
	r.AddParticipant(a, "p1", "Alice")
	r.AddParticipant(a, "p2", "Bob")
	r.AddParticipant(b, "p3", "Carol")

	rooms, participants := r.Counts()
	if rooms != 2 || participants != 3 {
		t.Errorf("got %d rooms / %d participants, want 2 / 3", rooms, participants)
	}
}
