package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lhchen/assistant-realtime/internal/hub"
	"github.com/lhchen/assistant-realtime/internal/message"
)

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "websocket endpoint only accepts GET", http.StatusMethodNotAllowed)
		return
	}

	identity, err := s.identity(r)
	if err != nil {
		s.logger.Warn("identity rejected", "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if s.origins.check(r) {
				return true
			}
			s.logger.Warn("blocked disallowed origin", "origin", r.Header.Get("Origin"))
			return false
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(s.cfg.MaxMessageSize)

	metadata := map[string]any{
		"remote_addr": r.RemoteAddr,
		"user_agent":  r.UserAgent(),
	}
	if convID := r.URL.Query().Get("conversation_id"); convID != "" {
		metadata["conversation_id"] = convID
	}

	hubCfg := s.hub.Config()
	transport := hub.NewWSTransport(conn, hubCfg.WriteTimeout)

	connID, err := s.hub.Accept(transport, hub.AcceptOptions{
		Identity: identity,
		Metadata: metadata,
	})
	if err != nil {
		s.logger.Error("accept failed", "remote_addr", r.RemoteAddr, "error", err)
		transport.Close()
		return
	}

	s.joinInitialRooms(connID, identity, r.URL.Query().Get("room"))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.readLoop(conn, connID, hubCfg.LivenessTimeout)
	}()
}

// joinInitialRooms places an identified connection into its private user
// room, creating it on first connect, and honors an explicit room request
// from the query string.
func (s *Server) joinInitialRooms(connID string, identity *hub.Identity, requested string) {
	if identity != nil && identity.UserID != "" {
		userRoom := fmt.Sprintf("user_%s_room", identity.UserID)
		s.hub.CreateRoom(hub.Room{
			RoomID:     userRoom,
			Name:       fmt.Sprintf("%s's room", identity.UserID),
			CreatedBy:  identity.UserID,
			MaxMembers: 5,
			IsPrivate:  true,
			CreatedAt:  time.Now().UTC(),
		})
		if err := s.hub.JoinRoom(connID, userRoom); err != nil {
			s.logger.Warn("private room join failed", "conn_id", connID, "room_id", userRoom, "error", err)
		}
	}

	if requested != "" {
		if err := s.hub.JoinRoom(connID, requested); err != nil {
			s.logger.Warn("requested room join failed", "conn_id", connID, "room_id", requested, "error", err)
		}
	}
}

// readLoop pumps inbound frames into the dispatcher until the connection
// errors out or the read deadline expires. The deadline is refreshed on
// every frame and on control pongs, so the liveness monitor's pings keep
// healthy connections alive.
func (s *Server) readLoop(conn *websocket.Conn, connID string, livenessTimeout time.Duration) {
	conn.SetReadDeadline(time.Now().Add(livenessTimeout))
	conn.SetPongHandler(func(string) error {
		s.hub.HandlePong(connID)
		return conn.SetReadDeadline(time.Now().Add(livenessTimeout))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				s.logger.Warn("read failed", "conn_id", connID, "error", err)
			}
			s.hub.Disconnect(connID, hub.CloseAbnormal)
			return
		}
		conn.SetReadDeadline(time.Now().Add(livenessTimeout))

		env, perr := message.Parse(raw)
		if perr != nil {
			s.logger.Warn("malformed envelope", "conn_id", connID, "code", perr.Code, "detail", perr.Detail)
			s.hub.SendToConnection(connID, message.NewError(
				message.ErrCodeInvalidMessage, perr.Error(), connID))
			continue
		}

		s.dispatcher.Handle(connID, env)
	}
}
