package message

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProtocolError describes a rejected inbound frame. It carries a stable
// code and, for missing-field rejections, the field name.
type ProtocolError struct {
	Code   string // "invalid_json", "missing_field", "invalid_type", "invalid_timestamp"
	Field  string // set for missing_field
	Detail string
}

func (e *ProtocolError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Detail, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Protocol error codes.
const (
	CodeInvalidJSON      = "invalid_json"
	CodeMissingField     = "missing_field"
	CodeInvalidType      = "invalid_type"
	CodeInvalidTimestamp = "invalid_timestamp"
)

// timestampLayouts are the accepted wire formats, most specific first.
// Clients send ISO-8601 with or without a zone designator.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// wireEnvelope is the raw JSON shape before timestamp binding.
type wireEnvelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Content    json.RawMessage `json:"content"`
	SenderID   string          `json:"sender_id"`
	ReceiverID string          `json:"receiver_id"`
	RoomID     string          `json:"room_id"`
	Timestamp  string          `json:"timestamp"`
	Metadata   map[string]any  `json:"metadata"`
}

// Validate checks a decoded JSON object against the envelope schema
// without binding it. It mirrors the Parse rejection rules so callers can
// validate before constructing an Envelope.
func Validate(raw map[string]any) *ProtocolError {
	typVal, ok := raw["type"]
	if !ok {
		return &ProtocolError{Code: CodeMissingField, Field: "type", Detail: "missing required field"}
	}
	typ, ok := typVal.(string)
	if !ok || !Type(typ).Valid() {
		return &ProtocolError{Code: CodeInvalidType, Detail: fmt.Sprintf("invalid message type: %v", typVal)}
	}

	content, ok := raw["content"]
	if !ok || content == nil {
		return &ProtocolError{Code: CodeMissingField, Field: "content", Detail: "missing required field"}
	}

	if tsVal, ok := raw["timestamp"]; ok && tsVal != nil {
		ts, ok := tsVal.(string)
		if !ok {
			return &ProtocolError{Code: CodeInvalidTimestamp, Detail: "timestamp must be an ISO-8601 string"}
		}
		if _, err := parseTimestamp(ts); err != nil {
			return &ProtocolError{Code: CodeInvalidTimestamp, Detail: fmt.Sprintf("unparseable timestamp: %q", ts)}
		}
	}

	return nil
}

// Parse decodes and validates a raw inbound frame. A nil error means the
// envelope is schema-valid; any rejection is a *ProtocolError and causes
// no side effects.
func Parse(raw []byte) (*Envelope, *ProtocolError) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, &ProtocolError{Code: CodeInvalidJSON, Detail: err.Error()}
	}
	if perr := Validate(obj); perr != nil {
		return nil, perr
	}

	var wire wireEnvelope
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &ProtocolError{Code: CodeInvalidJSON, Detail: err.Error()}
	}

	env := &Envelope{
		ID:         wire.ID,
		Type:       Type(wire.Type),
		SenderID:   wire.SenderID,
		ReceiverID: wire.ReceiverID,
		RoomID:     wire.RoomID,
		Metadata:   wire.Metadata,
	}

	if err := json.Unmarshal(wire.Content, &env.Content); err != nil {
		return nil, &ProtocolError{Code: CodeInvalidJSON, Detail: err.Error()}
	}

	if env.ID == "" {
		env.ID = NewMessageID()
	}

	if wire.Timestamp != "" {
		ts, err := parseTimestamp(wire.Timestamp)
		if err != nil {
			// Unreachable after Validate, kept for direct callers.
			return nil, &ProtocolError{Code: CodeInvalidTimestamp, Detail: err.Error()}
		}
		env.Timestamp = ts
	} else {
		env.Timestamp = time.Now().UTC()
	}

	return env, nil
}

// Encode serializes the envelope for the wire.
func (e *Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
