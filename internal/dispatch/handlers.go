package dispatch

import (
	"time"

	"github.com/lhchen/assistant-realtime/internal/hub"
	"github.com/lhchen/assistant-realtime/internal/message"
)

// handlePing answers an application-level ping with a pong.
func (d *Dispatcher) handlePing(connID string, _ *message.Envelope) error {
	pong := message.New(message.TypePong, map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	pong.SenderID = message.SystemSender
	d.hub.SendToConnection(connID, pong)
	return nil
}

// handlePong records liveness for the connection.
func (d *Dispatcher) handlePong(connID string, _ *message.Envelope) error {
	d.hub.HandlePong(connID)
	return nil
}

// handleConnect greets a client that announces itself after the accept
// handshake.
func (d *Dispatcher) handleConnect(connID string, _ *message.Envelope) error {
	welcome := message.NewSystemNotification("welcome", map[string]any{
		"message": "Welcome to the assistant gateway.",
	}, "", "")
	d.hub.SendToConnection(connID, welcome)
	return nil
}

// handleDisconnect announces the departure to everyone else and tears the
// connection down at the client's request.
func (d *Dispatcher) handleDisconnect(connID string, _ *message.Envelope) error {
	if rec, ok := d.hub.Get(connID); ok && rec.Identity != nil {
		offline := message.NewSystemNotification("user_offline", map[string]any{
			"user_id":  rec.Identity.UserID,
			"username": rec.Identity.Username,
		}, "", "")
		d.hub.BroadcastToAll(offline, connID)
	}

	d.hub.Disconnect(connID, hub.CloseNormal)
	return nil
}

// handleChat stamps the sender and routes by precedence: direct receiver,
// then room, then broadcast to everyone but the sender. Unauthenticated
// senders get an ERROR envelope and nothing is delivered.
func (d *Dispatcher) handleChat(connID string, env *message.Envelope) error {
	rec, ok := d.hub.Get(connID)
	if !ok || rec.Identity == nil || rec.Identity.UserID == "" {
		d.hub.SendToConnection(connID, message.NewError(
			message.ErrCodeUnauthorized,
			"chat requires an authenticated user",
			connID,
		))
		return nil
	}

	env.SenderID = rec.Identity.UserID

	if d.recorder != nil {
		d.recorder.Record(env)
	}

	switch {
	case env.ReceiverID != "":
		d.hub.SendToUser(env.ReceiverID, env)
	case env.RoomID != "":
		d.hub.BroadcastToRoom(env.RoomID, env, connID)
	default:
		d.hub.BroadcastToAll(env, connID)
	}
	return nil
}

// handleSwitchConversation moves the connection to another conversation.
// The active conversation id lives in connection metadata; the agent layer
// reads it when routing ai_* envelopes.
func (d *Dispatcher) handleSwitchConversation(connID string, env *message.Envelope) error {
	content := env.ContentMap()
	conversationID, _ := content["conversation_id"].(string)
	if conversationID == "" {
		d.hub.SendToConnection(connID, message.NewError(
			message.ErrCodeMissingParameter,
			"missing required argument: conversation_id",
			connID,
		))
		return nil
	}

	if _, ok := d.hub.Get(connID); !ok {
		return nil
	}
	d.hub.SetMetadata(connID, "conversation_id", conversationID)

	ack := message.NewSystemNotification("conversation_switched", map[string]any{
		"conversation_id": conversationID,
	}, "", "")
	d.hub.SendToConnection(connID, ack)

	d.logger.Info("conversation switched", "conn_id", connID, "conversation_id", conversationID)
	return nil
}

// handleNotification logs inbound notifications; they originate from the
// system side and carry no routing obligation here.
func (d *Dispatcher) handleNotification(connID string, env *message.Envelope) error {
	if kind, ok := env.ContentMap()["type"].(string); ok {
		d.logger.Info("notification received", "conn_id", connID, "kind", kind)
	}
	return nil
}

// handleData logs data envelopes; payload interpretation belongs to the
// collaborator that registered for them.
func (d *Dispatcher) handleData(connID string, env *message.Envelope) error {
	if kind, ok := env.ContentMap()["data_type"].(string); ok {
		d.logger.Info("data received", "conn_id", connID, "data_type", kind)
	}
	return nil
}

// handleAIResponse routes an agent reply: to the addressed user, to the
// addressed room, or back to the originating connection.
func (d *Dispatcher) handleAIResponse(connID string, env *message.Envelope) error {
	switch {
	case env.ReceiverID != "":
		d.hub.SendToUser(env.ReceiverID, env)
	case env.RoomID != "":
		d.hub.BroadcastToRoom(env.RoomID, env)
	default:
		d.hub.SendToConnection(connID, env)
	}
	return nil
}

func (d *Dispatcher) handleAIThinking(connID string, _ *message.Envelope) error {
	d.logger.Debug("ai thinking", "conn_id", connID)
	return nil
}

func (d *Dispatcher) handleAIError(connID string, env *message.Envelope) error {
	d.logger.Error("ai error reported", "conn_id", connID, "content", env.Content)
	return nil
}
