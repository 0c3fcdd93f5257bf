package hub

import (
	"github.com/lhchen/assistant-realtime/internal/message"
)

// SendToConnection serializes and writes one envelope to one connection.
// Any transport failure tears the connection down; there is no retry.
// Returns whether delivery succeeded.
func (h *Hub) SendToConnection(connID string, env *message.Envelope) bool {
	data, err := env.Encode()
	if err != nil {
		h.logger.Error("encode envelope", "conn_id", connID, "type", env.Type, "error", err)
		return false
	}

	h.mu.RLock()
	t, ok := h.transports[connID]
	h.mu.RUnlock()
	if !ok {
		h.logger.Debug("send to unknown connection", "conn_id", connID)
		return false
	}

	if err := t.Write(data); err != nil {
		h.logger.Warn("transport write failed, dropping connection",
			"conn_id", connID,
			"type", env.Type,
			"error", err,
		)
		h.Disconnect(connID, CloseAbnormal)
		return false
	}
	return true
}

// SendToUser delivers to every connection of one user and returns the
// number of successful deliveries.
func (h *Hub) SendToUser(userID string, env *message.Envelope) int {
	sent := 0
	for _, connID := range h.ConnectionsByUser(userID) {
		if h.SendToConnection(connID, env) {
			sent++
		}
	}
	return sent
}

// BroadcastToRoom delivers to a snapshot of the room's members, skipping
// excluded ids. One dead member does not abort delivery to the rest.
func (h *Hub) BroadcastToRoom(roomID string, env *message.Envelope, exclude ...string) int {
	return h.deliver(h.RoomMembers(roomID), env, exclude)
}

// BroadcastToAll delivers to a snapshot of every connection, skipping
// excluded ids.
func (h *Hub) BroadcastToAll(env *message.Envelope, exclude ...string) int {
	h.mu.RLock()
	targets := make([]string, 0, len(h.records))
	for id := range h.records {
		targets = append(targets, id)
	}
	h.mu.RUnlock()

	return h.deliver(targets, env, exclude)
}

func (h *Hub) deliver(targets []string, env *message.Envelope, exclude []string) int {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	sent := 0
	for _, connID := range targets {
		if _, excluded := skip[connID]; excluded {
			continue
		}
		if h.SendToConnection(connID, env) {
			sent++
		}
	}
	return sent
}
