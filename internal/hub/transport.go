package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is the write side of one live client session. The hub owns
// the transport exclusively once the connection is accepted.
type Transport interface {
	// Write sends one serialized envelope. Writes from concurrent
	// callers must not interleave.
	Write(data []byte) error

	// Close tears the session down. Safe to call more than once.
	Close() error
}

// wsTransport adapts a gorilla WebSocket connection. A mutex serializes
// writes so sends from one call site reach the peer in call order.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// NewWSTransport wraps an upgraded WebSocket connection.
func NewWSTransport(conn *websocket.Conn, writeTimeout time.Duration) Transport {
	return &wsTransport{
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

func (t *wsTransport) Write(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	// Best-effort close frame; the peer may already be gone.
	t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return t.conn.Close()
}
