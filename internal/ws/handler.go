package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quizhub/internal/config"
	"quizhub/internal/metrics"
	"quizhub/internal/registry"
	"quizhub/internal/store"
	"quizhub/pkg/types"
)

// Handler owns the websocket endpoint: it upgrades connections, assigns
// connection ids, runs the per-connection read loop and dispatches
// push-channel requests against the registry and the session store.
type Handler struct {
	registry    *registry.Registry
	store       *store.Store
	broadcaster *Broadcaster
	cfg         config.WebSocketConfig
	upgrader    websocket.Upgrader
	log         zerolog.Logger
}

// NewHandler wires a handler over the given components.
func NewHandler(reg *registry.Registry, st *store.Store, b *Broadcaster, cfg config.WebSocketConfig, log zerolog.Logger) *Handler {
	return &Handler{
		registry:    reg,
		store:       st,
		broadcaster: b,
		cfg:         cfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
		log: log.With().Str("component", "ws").Logger(),
	}
}

// HandleWebSocket upgrades the request and attaches the connection. The
// freshly assigned connection id is handed to the client in a "connected"
// frame; everything else (registration, joining) happens through explicit
// requests afterwards.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := NewConnection(uuid.New().String(), raw, h.cfg.WriteTimeout, h.cfg.SendBuffer)
	h.broadcaster.Add(conn)
	metrics.TotalConnections.Inc()
	metrics.ActiveConnections.Inc()
	h.log.Info().Str("connection_id", conn.ID()).Msg("connection attached")

	welcome, _ := json.Marshal(types.UserEventData{ConnectionID: conn.ID()})
	if err := conn.WriteFrame(&types.Frame{Type: types.EventConnected, OK: true, Data: welcome}); err != nil {
		h.log.Warn().Err(err).Str("connection_id", conn.ID()).Msg("welcome frame dropped")
	}

	go h.readLoop(conn)
}

func (h *Handler) readLoop(conn *Connection) {
	defer h.detach(conn)

	raw := conn.conn
	if err := raw.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout)); err != nil {
		return
	}
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(h.cfg.WriteTimeout)
				if err := raw.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-conn.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Str("connection_id", conn.ID()).Msg("read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		metrics.MessagesReceived.Inc()

		var req types.Request
		if err := json.Unmarshal(data, &req); err != nil || req.ID == "" || req.Type == "" {
			h.log.Warn().Str("connection_id", conn.ID()).Msg("malformed request frame dropped")
			continue
		}
		h.dispatch(conn, &req)
	}
}

// detach runs exactly once per connection, on read-loop exit. The binding
// dies with the connection; session membership does not. Presence flips
// so peers can render the member as away until a rejoin.
func (h *Handler) detach(conn *Connection) {
	if client, ok := h.registry.Resolve(conn.ID()); ok {
		h.store.SetPresence(client.ID, false)
	}
	h.registry.Unbind(conn.ID())
	h.broadcaster.Remove(conn)
	_ = conn.Close()
	metrics.ActiveConnections.Dec()

	h.broadcaster.Broadcast(types.EventUserDisconnected,
		types.UserEventData{ConnectionID: conn.ID()}, conn.ID())
	h.log.Info().Str("connection_id", conn.ID()).Msg("connection detached")
}

// dispatch answers exactly one response frame per request. Failed
// operations come back as ok=false with an error code; the connection is
// never closed over them.
func (h *Handler) dispatch(conn *Connection, req *types.Request) {
	payload, err := types.DecodeRequestData(req.Type, req.Data)
	if err != nil {
		h.log.Warn().Err(err).Str("type", req.Type).Str("connection_id", conn.ID()).
			Msg("request rejected at boundary")
		h.respondErr(conn, req, CodeValidation, err.Error())
		return
	}

	switch data := payload.(type) {
	case *types.StartSessionData:
		h.handleStartSession(conn, req, data)
	case *types.JoinSessionData:
		h.handleJoinSession(conn, req, data)
	case *types.RejoinData:
		h.handleRejoin(conn, req, data)
	case *types.KillSessionData:
		h.handleKillSession(conn, req, data)
	case *types.DisconnectData:
		h.handleDisconnect(conn, req, data)
	case nil: // fetchserverstate carries no payload
		h.handleFetchState(conn, req)
	}
}

func (h *Handler) handleStartSession(conn *Connection, req *types.Request, data *types.StartSessionData) {
	session, err := h.store.CreateSession(data.SessionID, data.ClientID, data.DisplayName)
	if err != nil {
		h.respondErr(conn, req, CodeConflict, "session already exists")
		return
	}
	h.respondOK(conn, req, session)
	h.broadcaster.Broadcast(types.EventSessionStarted,
		types.SessionEventData{SessionID: session.ID}, conn.ID())
}

func (h *Handler) handleJoinSession(conn *Connection, req *types.Request, data *types.JoinSessionData) {
	session, err := h.store.JoinSession(data.SessionID, data.ClientID, data.DisplayName)
	if err != nil {
		h.respondErr(conn, req, CodeNotFound, "session not found")
		return
	}
	h.respondOK(conn, req, session)
	h.broadcaster.Broadcast(types.EventUserJoined,
		types.UserEventData{ConnectionID: conn.ID()}, conn.ID())
}

func (h *Handler) handleRejoin(conn *Connection, req *types.Request, data *types.RejoinData) {
	session, err := h.store.RejoinSession(data.SessionID, data.ClientID)
	if err != nil {
		// Session gone and membership gone look the same to the caller:
		// there is nothing to rejoin.
		h.respondErr(conn, req, CodeNotFound, "session or membership not found")
		return
	}
	h.respondOK(conn, req, session)
}

func (h *Handler) handleKillSession(conn *Connection, req *types.Request, data *types.KillSessionData) {
	session, err := h.store.KillSession(data.SessionID)
	if err != nil {
		// Killing an absent session is a no-op, acknowledged anyway.
		h.respondOK(conn, req, nil)
		return
	}
	h.respondOK(conn, req, session)
	h.broadcaster.Broadcast(types.EventSessionKilled,
		types.SessionEventData{SessionID: session.ID}, conn.ID())
}

func (h *Handler) handleDisconnect(conn *Connection, req *types.Request, data *types.DisconnectData) {
	h.store.SetPresence(data.ClientID, false)
	if connID, ok := h.registry.ConnectionFor(data.ClientID); ok {
		h.registry.Unbind(connID)
		h.broadcaster.Broadcast(types.EventUserDisconnected,
			types.UserEventData{ConnectionID: connID}, conn.ID())
	}
	h.respondOK(conn, req, nil)
}

func (h *Handler) handleFetchState(conn *Connection, req *types.Request) {
	state := types.ServerState{
		Clients:  h.registry.Clients(),
		Sessions: h.store.ListActive(),
	}
	h.respondOK(conn, req, state)
}

func (h *Handler) respondOK(conn *Connection, req *types.Request, payload any) {
	frame := &types.Frame{ID: req.ID, Type: req.Type, OK: true}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			h.log.Error().Err(err).Str("type", req.Type).Msg("unencodable response payload")
			h.respondErr(conn, req, CodeValidation, "internal encoding error")
			return
		}
		frame.Data = data
	}
	if err := conn.WriteFrame(frame); err != nil {
		h.log.Debug().Err(err).Str("connection_id", conn.ID()).Msg("response dropped")
	}
}

func (h *Handler) respondErr(conn *Connection, req *types.Request, code, message string) {
	frame := &types.Frame{ID: req.ID, Type: req.Type, OK: false, Error: code}
	if message != "" && message != code {
		data, _ := json.Marshal(map[string]string{"message": message})
		frame.Data = data
	}
	if err := conn.WriteFrame(frame); err != nil {
		h.log.Debug().Err(err).Str("connection_id", conn.ID()).Msg("error response dropped")
	}
}
