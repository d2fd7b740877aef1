package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/pointdeck/pointdeck/internal/room"
)

// Config holds the transport and grace-period settings for the gateway.
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	GracePeriod     time.Duration
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		GracePeriod:     10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			// Restrict in production deployments.
			return true
		},
	}
}

// Service wires the room registry, participant directory and broadcaster
// together and tracks the live sessions.
type Service struct {
	config      Config
	registry    *room.Registry
	directory   *Directory
	broadcaster *Broadcaster

	mu       sync.Mutex
	sessions map[*Session]bool
	ctx      context.Context
}

// NewService creates a gateway service running on the real clock.
func NewService(config Config) *Service {
	return newService(config, clockwork.NewRealClock())
}

func newService(config Config, clock clockwork.Clock) *Service {
	registry := room.NewRegistry()
	directory := NewDirectory(clock, config.GracePeriod)

	return &Service{
		config:      config,
		registry:    registry,
		directory:   directory,
		broadcaster: NewBroadcaster(registry, directory),
		sessions:    make(map[*Session]bool),
		ctx:         context.Background(),
	}
}

// Start runs the service until the context is cancelled, then closes every
// live session.
func (svc *Service) Start(ctx context.Context) error {
	svc.mu.Lock()
	svc.ctx = ctx
	svc.mu.Unlock()

	log.Info().Dur("grace_period", svc.config.GracePeriod).Msg("gateway service started")

	<-ctx.Done()

	svc.mu.Lock()
	sessions := make([]*Session, 0, len(svc.sessions))
	for s := range svc.sessions {
		sessions = append(sessions, s)
	}
	svc.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}

	log.Info().Int("sessions_closed", len(sessions)).Msg("gateway service stopped")
	return nil
}

func (svc *Service) baseContext() context.Context {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.ctx
}

// attach registers a freshly upgraded connection and starts its pumps. The
// session starts with no participant identity; the first create-room,
// join-room or reconnect frame establishes one.
func (svc *Service) attach(conn *websocket.Conn) *Session {
	s := newSession(svc, conn)

	svc.mu.Lock()
	svc.sessions[s] = true
	svc.mu.Unlock()

	go s.writePump()
	go s.readPump()

	log.Info().Str("session_id", s.id).Msg("connection established")
	return s
}

// handleDisconnect runs when a session's transport closes. The participant
// is not removed immediately; a grace timer is armed so a page reload or
// network blip does not flash a departure to the rest of the room.
func (svc *Service) handleDisconnect(s *Session) {
	svc.mu.Lock()
	delete(svc.sessions, s)
	svc.mu.Unlock()

	if s.participantID == "" {
		log.Debug().Str("session_id", s.id).Msg("unbound connection closed")
		return
	}

	log.Info().
		Str("session_id", s.id).
		Str("participant_id", s.participantID).
		Msg("transport closed, grace timer armed")

	svc.directory.ScheduleEviction(svc.baseContext(), s.participantID, s, svc.evict)
}

// evict removes a participant whose grace period elapsed without a
// reconnect and tells the rest of the room.
func (svc *Service) evict(participantID, roomID string) {
	stillExists := svc.registry.RemoveParticipant(roomID, participantID)

	log.Info().
		Str("participant_id", participantID).
		Str("room_id", roomID).
		Msg("participant evicted after grace period")

	if stillExists {
		svc.broadcaster.RoomUpdated(roomID)
	}
}

// Stats reports the live connection, room and participant counts.
func (svc *Service) Stats() Stats {
	svc.mu.Lock()
	connections := len(svc.sessions)
	svc.mu.Unlock()

	rooms, participants := svc.registry.Counts()
	return Stats{
		Connections:  connections,
		Rooms:        rooms,
		Participants: participants,
	}
}

// Stats is the diagnostic snapshot served by the stats endpoint.
type Stats struct {
	Connections  int `json:"connections"`
	Rooms        int `json:"rooms"`
	Participants int `json:"participants"`
}
