package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// binding ties a durable participant identity to its current live transport
// and room membership. At most one binding exists per participant id; a new
// connection for the same id supersedes the old one.
type binding struct {
	session *Session
	roomID  string
	name    string
}

// Directory maps participant ids to their live bindings and owns the
// grace-period eviction timers that reclaim seats from gone participants.
type Directory struct {
	mu       sync.Mutex
	bindings map[string]binding
	timers   map[string]*evictionTimer

	clock clockwork.Clock
	grace time.Duration
}

type evictionTimer struct {
	timer     clockwork.Timer
	cancelled chan struct{}
}

// NewDirectory creates a directory whose eviction timers run on the given
// clock with the given grace period.
func NewDirectory(clock clockwork.Clock, grace time.Duration) *Directory {
	return &Directory{
		bindings: make(map[string]binding),
		timers:   make(map[string]*evictionTimer),
		clock:    clock,
		grace:    grace,
	}
}

// Bind points the participant id at the given session, room and name,
// superseding any previous transport. A pending eviction for the id is
// cancelled: the participant came back within the grace period.
func (d *Directory) Bind(participantID string, s *Session, roomID, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if et, ok := d.timers[participantID]; ok {
		stopAndDrainTimer(et.timer)
		close(et.cancelled)
		delete(d.timers, participantID)
		log.Debug().
			Str("participant_id", participantID).
			Msg("pending eviction cancelled by rebind")
	}

	d.bindings[participantID] = binding{session: s, roomID: roomID, name: name}
}

// RoomFor returns the room the participant is currently bound to.
func (d *Directory) RoomFor(participantID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.bindings[participantID]
	return b.roomID, ok
}

// SessionFor returns the live transport currently bound to the participant.
func (d *Directory) SessionFor(participantID string) (*Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.bindings[participantID]
	return b.session, ok
}

// Connections returns the number of distinct sessions currently bound.
func (d *Directory) Connections() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	seen := make(map[*Session]bool, len(d.bindings))
	for _, b := range d.bindings {
		seen[b.session] = true
	}
	return len(seen)
}

// ScheduleEviction arms a one-shot grace timer for the participant. When it
// fires, the binding is re-checked: if a newer transport has taken over the
// id in the interim the seat is kept, otherwise the binding is dropped and
// evict is invoked with the participant's room. The stale-session check
// happens at fire time, not arm time, so a reconnect landing in the same
// instant is never evicted.
func (d *Directory) ScheduleEviction(ctx context.Context, participantID string, stale *Session, evict func(participantID, roomID string)) {
	d.mu.Lock()
	if existing, ok := d.timers[participantID]; ok {
		stopAndDrainTimer(existing.timer)
		close(existing.cancelled)
	}
	et := &evictionTimer{
		timer:     d.clock.NewTimer(d.grace),
		cancelled: make(chan struct{}),
	}
	d.timers[participantID] = et
	d.mu.Unlock()

	log.Debug().
		Str("participant_id", participantID).
		Dur("grace", d.grace).
		Msg("grace timer armed")

	go func() {
		select {
		case <-et.timer.Chan():
			d.mu.Lock()
			if d.timers[participantID] == et {
				delete(d.timers, participantID)
			}
			b, ok := d.bindings[participantID]
			if !ok || b.session != stale {
				d.mu.Unlock()
				log.Debug().
					Str("participant_id", participantID).
					Msg("grace timer fired but participant reconnected, seat kept")
				return
			}
			delete(d.bindings, participantID)
			d.mu.Unlock()

			evict(participantID, b.roomID)

		case <-et.cancelled:

		case <-ctx.Done():
			d.mu.Lock()
			if d.timers[participantID] == et {
				stopAndDrainTimer(et.timer)
				delete(d.timers, participantID)
			}
			d.mu.Unlock()
		}
	}()
}

// stopAndDrainTimer safely stops a timer and drains its channel, following
// the pattern recommended in the time.Timer.Stop documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
