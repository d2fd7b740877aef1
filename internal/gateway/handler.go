package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Handler terminates HTTP: it upgrades websocket requests and serves the
// diagnostic stats endpoint.
type Handler struct {
	svc      *Service
	upgrader websocket.Upgrader
}

// NewHandler creates a handler for the given service.
func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  svc.config.ReadBufferSize,
			WriteBufferSize: svc.config.WriteBufferSize,
			CheckOrigin:     svc.config.CheckOrigin,
		},
	}
}

// HandleConnection upgrades the request and hands the connection to the
// service. The connection carries no identity until its first message.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}

	h.svc.attach(conn)
}

// HandleStats serves the live connection/room/participant counts.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.svc.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to encode stats")
	}
}

// RegisterRoutes registers the gateway routes on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleConnection)
	mux.HandleFunc("/stats", h.HandleStats)
}
