package message

import "time"

// Type identifies the kind of envelope.
type Type string

const (
	// System messages
	TypeConnect    Type = "connect"
	TypeDisconnect Type = "disconnect"
	TypePing       Type = "ping"
	TypePong       Type = "pong"
	TypeError      Type = "error"

	// User messages
	TypeChat               Type = "chat"
	TypeSwitchConversation Type = "switch_conversation"
	TypeNotification       Type = "notification"
	TypeCommand            Type = "command"
	TypeData               Type = "data"

	// AI assistant messages
	TypeAIResponse Type = "ai_response"
	TypeAIThinking Type = "ai_thinking"
	TypeAIError    Type = "ai_error"
)

// knownTypes is the closed set accepted on the wire.
var knownTypes = map[Type]struct{}{
	TypeConnect:            {},
	TypeDisconnect:         {},
	TypePing:               {},
	TypePong:               {},
	TypeError:              {},
	TypeChat:               {},
	TypeSwitchConversation: {},
	TypeNotification:       {},
	TypeCommand:            {},
	TypeData:               {},
	TypeAIResponse:         {},
	TypeAIThinking:         {},
	TypeAIError:            {},
}

// Valid reports whether t is a recognized message type.
func (t Type) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// Envelope is the structured message wrapper carrying type, content,
// routing fields, and metadata.
type Envelope struct {
	ID         string         `json:"id,omitempty"`
	Type       Type           `json:"type"`
	Content    any            `json:"content"`
	SenderID   string         `json:"sender_id,omitempty"`
	ReceiverID string         `json:"receiver_id,omitempty"`
	RoomID     string         `json:"room_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// New creates an envelope of the given type with a generated id and
// current timestamp.
func New(t Type, content any) *Envelope {
	return &Envelope{
		ID:        NewMessageID(),
		Type:      t,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// ContentMap returns the content as a keyed map, or nil when the content
// is a string or a list.
func (e *Envelope) ContentMap() map[string]any {
	m, _ := e.Content.(map[string]any)
	return m
}

// ContentString returns the content as a string, or "" for structured content.
func (e *Envelope) ContentString() string {
	s, _ := e.Content.(string)
	return s
}
