// Package message defines the wire envelope exchanged with clients.
//
// Every frame, inbound or outbound, is one JSON envelope:
//
//	{ "id": "...", "type": "chat", "content": ..., "sender_id": "...",
//	  "receiver_id": "...", "room_id": "...", "timestamp": "...", "metadata": {...} }
//
// The type field is a closed enum; content is a string, an object, or an
// array. Parse rejects malformed frames with a *ProtocolError that callers
// convert into an ERROR envelope for the offending connection.
package message
