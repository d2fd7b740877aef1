package gateway

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pointdeck/pointdeck/internal/room"
)

// Broadcaster fans room state out to the connected members of a room.
// Delivery is per-session buffered and never blocks on a slow recipient;
// members without a live transport are skipped. A single mutex serializes
// broadcasts so every transport sees them in generation order.
type Broadcaster struct {
	mu        sync.Mutex
	registry  *room.Registry
	directory *Directory
}

// NewBroadcaster creates a broadcaster over the given registry and directory.
func NewBroadcaster(registry *room.Registry, directory *Directory) *Broadcaster {
	return &Broadcaster{registry: registry, directory: directory}
}

// RoomUpdated sends the anonymous room view to every connected member. Used
// after membership changes, reveal and reset, where every recipient is
// entitled to the same rendering; the payload is marshalled once.
func (b *Broadcaster) RoomUpdated(roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	view, ok := b.registry.View(roomID, "")
	if !ok {
		return
	}

	data, err := encodeRoomUpdated(view)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to encode room view")
		return
	}

	sent := 0
	for _, id := range b.registry.MemberIDs(roomID) {
		if s, ok := b.directory.SessionFor(id); ok {
			s.enqueue(data)
			sent++
		}
	}

	log.Debug().
		Str("room_id", roomID).
		Int("recipients", sent).
		Msg("room update broadcast")
}

// RoomUpdatedPersonalized recomputes the room view per member so each
// recipient sees exactly the votes the visibility rule entitles them to.
// The view must be re-derived here, not cached, because the same underlying
// state renders differently per viewer.
func (b *Broadcaster) RoomUpdatedPersonalized(roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range b.registry.MemberIDs(roomID) {
		s, ok := b.directory.SessionFor(id)
		if !ok {
			continue
		}

		view, ok := b.registry.View(roomID, id)
		if !ok {
			return
		}

		data, err := encodeRoomUpdated(view)
		if err != nil {
			log.Error().Err(err).Str("room_id", roomID).Msg("failed to encode room view")
			return
		}
		s.enqueue(data)
	}
}
