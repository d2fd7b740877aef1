package room

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	roomCodeLength  = 8
	maxCodeAttempts = 10
)

// Registry owns every live room and serializes all room and participant
// mutations behind a single mutex. A room with zero participants is deleted
// from the registry in the same critical section that emptied it.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
	}
}

// NormalizeID converts a client-entered room code to its canonical form so
// codes compare correctly regardless of input casing.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// CreateRoom allocates a fresh room with a unique code and returns the code.
// Codes are the first 8 hex characters of a uuid, uppercased; collisions are
// practically impossible but generation retries on one anyway.
func (r *Registry) CreateRoom() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var code string
	for i := 0; i < maxCodeAttempts; i++ {
		code = strings.ToUpper(uuid.NewString()[:roomCodeLength])
		if _, exists := r.rooms[code]; !exists {
			break
		}
	}

	r.rooms[code] = &Room{
		ID:           code,
		Participants: make(map[string]*Participant),
		CreatedAt:    time.Now(),
	}

	log.Info().Str("room_id", code).Msg("room created")
	return code
}

// Exists reports whether a room with the given id is live.
func (r *Registry) Exists(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.rooms[roomID]
	return ok
}

// HasParticipant reports whether the participant currently holds a seat in
// the room. False if the room does not exist.
func (r *Registry) HasParticipant(roomID, participantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	_, ok = room.Participants[participantID]
	return ok
}

// AddParticipant inserts or overwrites a participant with no vote cast.
// Used for first joins and for reconnects that arrive after the seat was
// reclaimed. Returns false if the room does not exist.
func (r *Registry) AddParticipant(roomID, participantID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}

	room.Participants[participantID] = &Participant{
		ID:   participantID,
		Name: name,
	}
	return true
}

// RemoveParticipant deletes the participant's seat. If that empties the
// room, the room is deleted as well. Returns whether the room still exists
// afterwards.
func (r *Registry) RemoveParticipant(roomID, participantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}

	delete(room.Participants, participantID)

	if len(room.Participants) == 0 {
		delete(r.rooms, roomID)
		log.Info().Str("room_id", roomID).Msg("last participant left, room deleted")
		return false
	}
	return true
}

// SetVote records the participant's vote for the current round. A nil vote
// retracts any previous one. No-op if the room or participant is unknown.
func (r *Registry) SetVote(roomID, participantID string, vote *string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return
	}
	p, ok := room.Participants[participantID]
	if !ok {
		return
	}

	p.Vote = vote
	p.HasVoted = vote != nil
}

// Reveal exposes all current votes. Idempotent; no-op on an unknown room.
func (r *Registry) Reveal(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[roomID]; ok {
		room.VotesRevealed = true
	}
}

// Reset starts a new round: hides votes again and clears every seat's vote.
func (r *Registry) Reset(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return
	}

	room.VotesRevealed = false
	for _, p := range room.Participants {
		p.Vote = nil
		p.HasVoted = false
	}
}

// View renders the room for the given viewer, applying the vote-visibility
// rule. Recomputed per call; the same state renders differently per viewer.
func (r *Registry) View(roomID, viewerID string) (View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return View{}, false
	}
	return room.view(viewerID), true
}

// MemberIDs returns a snapshot of the participant ids seated in the room.
func (r *Registry) MemberIDs(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(room.Participants))
	for id := range room.Participants {
		ids = append(ids, id)
	}
	return ids
}

// Counts returns the number of live rooms and total seated participants.
func (r *Registry) Counts() (rooms, participants int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, room := range r.rooms {
		participants += len(room.Participants)
	}
	return len(r.rooms), participants
}
