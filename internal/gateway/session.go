package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/pointdeck/pointdeck/internal/room"
)

// Session is one live transport connection. It owns inbound frame parsing
// and dispatch plus outbound delivery, and carries the participant identity
// established by the first create-room, join-room or reconnect message.
type Session struct {
	id   string
	svc  *Service
	conn *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// participantID is written only by the dispatch goroutine; empty until
	// the connection establishes an identity.
	participantID string
}

func newSession(svc *Service, conn *websocket.Conn) *Session {
	return &Session{
		id:   uuid.NewString(),
		svc:  svc,
		conn: conn,
		send: make(chan []byte, svc.config.SendBufferSize),
		done: make(chan struct{}),
	}
}

// enqueue hands a frame to the write pump without blocking. A session whose
// buffer is full is closed rather than allowed to stall the broadcaster.
func (s *Session) enqueue(data []byte) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.send <- data:
	default:
		log.Warn().
			Str("session_id", s.id).
			Msg("send buffer full, closing session")
		s.close()
	}
}

// close shuts the session down exactly once. Safe on stale handles.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

// writePump drains the send buffer onto the transport and keeps the
// connection alive with periodic pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.svc.config.PingInterval)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(s.svc.config.WriteTimeout))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.svc.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().
					Err(err).
					Str("session_id", s.id).
					Msg("failed to write frame")
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.svc.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames until the transport closes, then hands the session
// to the disconnect path so the grace timer can be armed.
func (s *Session) readPump() {
	defer func() {
		s.svc.handleDisconnect(s)
		s.close()
	}()

	s.conn.SetReadLimit(s.svc.config.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.svc.config.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.svc.config.ReadTimeout))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("session_id", s.id).
					Msg("unexpected websocket close")
			}
			return
		}

		s.handleMessage(data)
		s.conn.SetReadDeadline(time.Now().Add(s.svc.config.ReadTimeout))
	}
}

// handleMessage parses one inbound frame and dispatches it. Malformed
// frames and unknown kinds are logged and dropped; the connection stays
// open and no other connection is affected.
func (s *Session) handleMessage(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().
			Err(err).
			Str("session_id", s.id).
			Msg("dropping malformed frame")
		return
	}

	switch env.Type {
	case TypeCreateRoom:
		s.handleCreateRoom(env)
	case TypeJoinRoom:
		s.handleJoinRoom(env)
	case TypeReconnect:
		s.handleReconnect(env)
	case TypeVote:
		s.handleVote(env)
	case TypeRevealVotes:
		s.handleRevealVotes()
	case TypeResetVotes:
		s.handleResetVotes()
	case TypeGetRoomState:
		s.handleGetRoomState(env)
	default:
		log.Warn().
			Str("session_id", s.id).
			Str("type", string(env.Type)).
			Msg("dropping frame with unknown type")
	}
}

func (s *Session) handleCreateRoom(env Envelope) {
	var p CreateRoomPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		log.Warn().Err(err).Str("session_id", s.id).Msg("dropping malformed create-room payload")
		return
	}

	// Identity persists for the lifetime of one transport connection.
	if s.participantID == "" {
		s.participantID = uuid.NewString()
	}

	roomID := s.svc.registry.CreateRoom()
	s.svc.registry.AddParticipant(roomID, s.participantID, p.UserName)
	s.svc.directory.Bind(s.participantID, s, roomID, p.UserName)

	log.Info().
		Str("room_id", roomID).
		Str("participant_id", s.participantID).
		Str("name", p.UserName).
		Msg("room created by participant")

	s.reply(TypeCreateRoomResponse, env.ID, AckPayload{
		Success: true,
		RoomID:  roomID,
		UserID:  s.participantID,
	})
	s.svc.broadcaster.RoomUpdated(roomID)
}

func (s *Session) handleJoinRoom(env Envelope) {
	var p JoinRoomPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		log.Warn().Err(err).Str("session_id", s.id).Msg("dropping malformed join-room payload")
		return
	}

	roomID := room.NormalizeID(p.RoomID)
	if !s.svc.registry.Exists(roomID) {
		s.reply(TypeJoinRoomResponse, env.ID, AckPayload{
			Success: false,
			Error:   "Room not found",
		})
		return
	}

	if s.participantID == "" {
		s.participantID = uuid.NewString()
	}

	s.svc.registry.AddParticipant(roomID, s.participantID, p.UserName)
	s.svc.directory.Bind(s.participantID, s, roomID, p.UserName)

	log.Info().
		Str("room_id", roomID).
		Str("participant_id", s.participantID).
		Str("name", p.UserName).
		Msg("participant joined room")

	s.reply(TypeJoinRoomResponse, env.ID, AckPayload{
		Success: true,
		RoomID:  roomID,
		UserID:  s.participantID,
	})
	s.svc.broadcaster.RoomUpdated(roomID)
}

func (s *Session) handleReconnect(env Envelope) {
	var p ReconnectPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		log.Warn().Err(err).Str("session_id", s.id).Msg("dropping malformed reconnect payload")
		return
	}

	if !s.svc.registry.Exists(p.RoomID) {
		// The room was deleted while the client was away; the client is
		// expected to treat this as fatal and return to the entry screen.
		s.reply(TypeReconnectResponse, env.ID, AckPayload{
			Success: false,
			Error:   "Session not found",
		})
		return
	}

	superseded := s.participantID
	s.participantID = p.UserID

	// The seat may have been reclaimed if the grace period elapsed.
	if !s.svc.registry.HasParticipant(p.RoomID, p.UserID) {
		s.svc.registry.AddParticipant(p.RoomID, p.UserID, p.UserName)
	}

	s.svc.directory.Bind(p.UserID, s, p.RoomID, p.UserName)

	if superseded != "" && superseded != p.UserID {
		// This connection abandoned its previous identity; release that
		// seat through the usual grace path.
		s.svc.directory.ScheduleEviction(s.svc.baseContext(), superseded, s, s.svc.evict)
	}

	log.Info().
		Str("room_id", p.RoomID).
		Str("participant_id", p.UserID).
		Msg("participant reconnected")

	s.reply(TypeReconnectResponse, env.ID, AckPayload{
		Success: true,
		RoomID:  p.RoomID,
		UserID:  p.UserID,
	})
	s.svc.broadcaster.RoomUpdated(p.RoomID)
}

func (s *Session) handleVote(env Envelope) {
	if s.participantID == "" {
		return
	}
	roomID, ok := s.svc.directory.RoomFor(s.participantID)
	if !ok {
		return
	}

	var p VotePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		log.Warn().Err(err).Str("session_id", s.id).Msg("dropping malformed vote payload")
		return
	}

	s.svc.registry.SetVote(roomID, s.participantID, p.Vote)

	// Each member's view of the vote set differs before reveal, so this
	// broadcast is personalized per recipient.
	s.svc.broadcaster.RoomUpdatedPersonalized(roomID)
}

func (s *Session) handleRevealVotes() {
	if s.participantID == "" {
		return
	}
	roomID, ok := s.svc.directory.RoomFor(s.participantID)
	if !ok {
		return
	}

	s.svc.registry.Reveal(roomID)
	log.Info().Str("room_id", roomID).Msg("votes revealed")
	s.svc.broadcaster.RoomUpdated(roomID)
}

func (s *Session) handleResetVotes() {
	if s.participantID == "" {
		return
	}
	roomID, ok := s.svc.directory.RoomFor(s.participantID)
	if !ok {
		return
	}

	s.svc.registry.Reset(roomID)
	log.Info().Str("room_id", roomID).Msg("votes reset for new round")
	s.svc.broadcaster.RoomUpdated(roomID)
}

func (s *Session) handleGetRoomState(env Envelope) {
	if s.participantID == "" {
		s.reply(TypeGetRoomStateResponse, env.ID, RoomStatePayload{
			Success: false,
			Error:   "Not in a room",
		})
		return
	}

	roomID, ok := s.svc.directory.RoomFor(s.participantID)
	if !ok {
		s.reply(TypeGetRoomStateResponse, env.ID, RoomStatePayload{
			Success: false,
			Error:   "Not in a room",
		})
		return
	}

	view, ok := s.svc.registry.View(roomID, s.participantID)
	if !ok {
		s.reply(TypeGetRoomStateResponse, env.ID, RoomStatePayload{
			Success: false,
			Error:   "Room not found",
		})
		return
	}

	s.reply(TypeGetRoomStateResponse, env.ID, RoomStatePayload{
		Success: true,
		Room:    &view,
	})
}

// reply frames and enqueues a correlated response to this session only.
func (s *Session) reply(msgType MessageType, correlationID json.RawMessage, payload any) {
	data, err := encodeResponse(msgType, correlationID, payload)
	if err != nil {
		log.Error().Err(err).Str("session_id", s.id).Msg("failed to encode response")
		return
	}
	s.enqueue(data)
}
