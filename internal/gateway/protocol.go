package gateway

import (
	"encoding/json"

	"github.com/pointdeck/pointdeck/internal/room"
)

// MessageType identifies a frame on the wire.
type MessageType string

const (
	TypeCreateRoom   MessageType = "create-room"
	TypeJoinRoom     MessageType = "join-room"
	TypeReconnect    MessageType = "reconnect"
	TypeVote         MessageType = "vote"
	TypeRevealVotes  MessageType = "reveal-votes"
	TypeResetVotes   MessageType = "reset-votes"
	TypeGetRoomState MessageType = "get-room-state"

	TypeCreateRoomResponse   MessageType = "create-room-response"
	TypeJoinRoomResponse     MessageType = "join-room-response"
	TypeReconnectResponse    MessageType = "reconnect-response"
	TypeGetRoomStateResponse MessageType = "get-room-state-response"

	// TypeRoomUpdated is the unsolicited broadcast carrying a room view.
	TypeRoomUpdated MessageType = "room-updated"
)

// Envelope frames every message in both directions. ID is the caller's
// correlation token, echoed verbatim in the matching response and absent
// from broadcasts.
type Envelope struct {
	Type    MessageType     `json:"type"`
	ID      json.RawMessage `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CreateRoomPayload is the client request to open a fresh room.
type CreateRoomPayload struct {
	UserName string `json:"userName"`
}

// JoinRoomPayload is the client request to join an existing room by code.
type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

// ReconnectPayload re-establishes a session after a transport drop. The
// client supplies the identity it retained from its previous connection.
type ReconnectPayload struct {
	UserID   string `json:"userId"`
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

// VotePayload carries an estimate token; null retracts the current vote.
type VotePayload struct {
	Vote *string `json:"vote"`
}

// AckPayload answers create-room, join-room and reconnect.
type AckPayload struct {
	Success bool   `json:"success"`
	RoomID  string `json:"roomId,omitempty"`
	UserID  string `json:"userId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RoomStatePayload answers get-room-state with the caller's personalized view.
type RoomStatePayload struct {
	Success bool       `json:"success"`
	Room    *room.View `json:"room,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// encodeResponse frames a correlated reply to a request envelope.
func encodeResponse(msgType MessageType, correlationID json.RawMessage, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Type:    msgType,
		ID:      correlationID,
		Payload: data,
	})
}

// encodeRoomUpdated frames an unsolicited room-updated broadcast.
func encodeRoomUpdated(view room.View) ([]byte, error) {
	data, err := json.Marshal(view)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Type:    TypeRoomUpdated,
		Payload: data,
	})
}
