package hub

import (
	"errors"
	"time"
)

// Errors
var (
	ErrHubClosed          = errors.New("hub closed")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room full")
)

// Status is the lifecycle state of one connection. Disconnected is
// terminal: a reconnecting client gets a fresh connection id.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Close codes passed to Disconnect, mirroring WebSocket close codes.
const (
	CloseNormal    = 1000
	CloseGoingAway = 1001
	CloseAbnormal  = 1006
	ClosePolicy    = 1008
)

// Identity is the validated user attached to a connection at accept time.
// It is immutable for the connection's lifetime; authentication itself
// happens upstream.
type Identity struct {
	UserID   string
	Username string
	Email    string
	Roles    []string
	Metadata map[string]any
}

// Record is the registry's view of one live connection.
type Record struct {
	ConnectionID string
	Identity     *Identity
	Status       Status
	ConnectedAt  time.Time

	// LastLivenessAt is zero until the first pong arrives; it only moves
	// forward after that.
	LastLivenessAt time.Time

	Rooms    []string
	Metadata map[string]any
}

// Room is a named group of connections sharing broadcast delivery.
// Rooms live for the rest of the process; there is no delete operation.
type Room struct {
	RoomID      string
	Name        string
	Description string
	CreatedBy   string
	MaxMembers  int // 0 = unlimited
	IsPrivate   bool
	CreatedAt   time.Time
}

// Config holds hub timing parameters.
type Config struct {
	// HeartbeatInterval is the PING sweep period.
	HeartbeatInterval time.Duration

	// LivenessTimeout is the maximum silence before a connection is evicted.
	LivenessTimeout time.Duration

	// WriteTimeout is the deadline applied to transport writes.
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 30 * time.Second,
		LivenessTimeout:   90 * time.Second,
		WriteTimeout:      5 * time.Second,
	}
}

// AcceptOptions carries the optional inputs to Accept.
type AcceptOptions struct {
	// ConnectionID overrides the generated id when non-empty.
	ConnectionID string

	// Identity attaches a validated user to the connection.
	Identity *Identity

	// Metadata is free-form connection metadata (remote address,
	// user agent, conversation id, ...).
	Metadata map[string]any
}
