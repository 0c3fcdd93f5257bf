package message

import "time"

// SystemSender is the sender id stamped on server-originated envelopes.
const SystemSender = "system"

// Error codes carried in ERROR envelopes.
const (
	ErrCodeInvalidMessage   = "INVALID_MESSAGE"
	ErrCodeUnknownCommand   = "UNKNOWN_COMMAND"
	ErrCodeMissingParameter = "MISSING_PARAMETER"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeHandlerError     = "HANDLER_ERROR"
)

// NewError builds an ERROR envelope for the offending connection.
func NewError(code, detail, connectionID string) *Envelope {
	content := map[string]any{
		"error_code":    code,
		"error_message": detail,
		"error_type":    "websocket_error",
	}
	if connectionID != "" {
		content["connection_id"] = connectionID
	}

	env := New(TypeError, content)
	env.SenderID = SystemSender
	return env
}

// NewSystemNotification builds a NOTIFICATION envelope of the given kind,
// optionally targeted at a room or a user.
func NewSystemNotification(kind string, content map[string]any, roomID, receiverID string) *Envelope {
	merged := map[string]any{
		"type":      kind,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range content {
		merged[k] = v
	}

	env := New(TypeNotification, merged)
	env.SenderID = SystemSender
	env.RoomID = roomID
	env.ReceiverID = receiverID
	return env
}
