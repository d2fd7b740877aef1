package room

import "time"

// Room is one live estimation session: a short shareable code, the seats
// keyed by participant id, and the round's reveal flag.
type Room struct {
	ID            string
	Participants  map[string]*Participant
	VotesRevealed bool
	CreatedAt     time.Time
}

// Participant is one logical user's seat in a room. The vote is an opaque
// estimate token; nil means no vote has been cast this round.
type Participant struct {
	ID       string
	Name     string
	Vote     *string
	HasVoted bool
}

// View is the wire representation of a room as rendered for one viewer.
type View struct {
	ID            string            `json:"id"`
	VotesRevealed bool              `json:"votesRevealed"`
	Participants  []ParticipantView `json:"participants"`
}

// ParticipantView is one participant as seen by a specific viewer. Vote is
// null unless votes are revealed or the viewer is looking at their own seat.
type ParticipantView struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	HasVoted bool    `json:"hasVoted"`
	Vote     *string `json:"vote"`
}

// view renders the room for viewerID. An empty viewerID produces the
// anonymous rendering: no vote values until the round is revealed.
// HasVoted is always included so progress is visible without leaking votes.
func (r *Room) view(viewerID string) View {
	participants := make([]ParticipantView, 0, len(r.Participants))
	for _, p := range r.Participants {
		pv := ParticipantView{
			ID:       p.ID,
			Name:     p.Name,
			HasVoted: p.HasVoted,
		}
		if r.VotesRevealed || (viewerID != "" && p.ID == viewerID) {
			pv.Vote = p.Vote
		}
		participants = append(participants, pv)
	}

	return View{
		ID:            r.ID,
		VotesRevealed: r.VotesRevealed,
		Participants:  participants,
	}
}
