package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lhchen/assistant-realtime/internal/message"
)

// Hub owns the connection registry, the room registry, and the liveness
// monitor. Construct one per process and inject it into the transport
// accept layer; tests get their own isolated instance.
type Hub struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.RWMutex
	transports map[string]Transport
	records    map[string]*Record
	userConns  map[string]map[string]struct{} // user id → connection ids
	rooms      map[string]*Room
	roomConns  map[string]map[string]struct{} // room id → connection ids

	// Liveness monitor state, guarded by mu. monitorCancel is nil when
	// no monitor goroutine is running.
	monitorCancel context.CancelFunc
	monitorDone   chan struct{}

	closed bool
}

// New creates a Hub.
func New(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		cfg:        cfg,
		logger:     logger,
		transports: make(map[string]Transport),
		records:    make(map[string]*Record),
		userConns:  make(map[string]map[string]struct{}),
		rooms:      make(map[string]*Room),
		roomConns:  make(map[string]map[string]struct{}),
	}
}

// Config returns the configuration the hub was built with.
func (h *Hub) Config() Config {
	return h.cfg
}

// Accept registers a new connection and returns its id. The transport is
// owned by the hub from this point on. A CONNECT welcome envelope is sent
// to the new connection; the liveness monitor is started if it is not
// already running.
func (h *Hub) Accept(t Transport, opts AcceptOptions) (string, error) {
	connID := opts.ConnectionID
	if connID == "" {
		connID = message.NewConnectionID()
	}

	rec := &Record{
		ConnectionID: connID,
		Identity:     opts.Identity,
		Status:       StatusConnected,
		ConnectedAt:  time.Now().UTC(),
		Metadata:     opts.Metadata,
	}
	if rec.Metadata == nil {
		rec.Metadata = make(map[string]any)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return "", ErrHubClosed
	}

	h.transports[connID] = t
	h.records[connID] = rec

	if opts.Identity != nil && opts.Identity.UserID != "" {
		userID := opts.Identity.UserID
		if h.userConns[userID] == nil {
			h.userConns[userID] = make(map[string]struct{})
		}
		h.userConns[userID][connID] = struct{}{}
	}

	h.startMonitorLocked()
	total := len(h.records)
	h.mu.Unlock()

	h.logger.Info("connection accepted",
		"conn_id", connID,
		"total_connections", total,
	)

	welcome := message.New(message.TypeConnect, map[string]any{
		"status":        "connected",
		"connection_id": connID,
	})
	welcome.SenderID = message.SystemSender
	h.SendToConnection(connID, welcome)

	return connID, nil
}

// Disconnect removes a connection: every room membership, the user index
// entry (pruned when empty), the transport, and the record. Disconnecting
// an unknown id is a no-op.
func (h *Hub) Disconnect(connID string, code int) {
	h.mu.Lock()
	rec, ok := h.records[connID]
	if !ok {
		h.mu.Unlock()
		return
	}

	for _, roomID := range rec.Rooms {
		if members, ok := h.roomConns[roomID]; ok {
			delete(members, connID)
		}
	}
	rec.Rooms = nil
	rec.Status = StatusDisconnected

	if rec.Identity != nil && rec.Identity.UserID != "" {
		userID := rec.Identity.UserID
		if conns, ok := h.userConns[userID]; ok {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(h.userConns, userID)
			}
		}
	}

	t := h.transports[connID]
	delete(h.transports, connID)
	delete(h.records, connID)
	remaining := len(h.records)
	h.mu.Unlock()

	if t != nil {
		if err := t.Close(); err != nil {
			h.logger.Debug("transport close", "conn_id", connID, "error", err)
		}
	}

	h.logger.Info("connection disconnected",
		"conn_id", connID,
		"code", code,
		"total_connections", remaining,
	)
}

// Get returns a snapshot copy of the connection record.
func (h *Hub) Get(connID string) (Record, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rec, ok := h.records[connID]
	if !ok {
		return Record{}, false
	}
	return copyRecord(rec), true
}

// ConnectionsByUser returns the ids of every active connection for a user.
// Unknown users yield an empty slice, not an error.
func (h *Hub) ConnectionsByUser(userID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := h.userConns[userID]
	out := make([]string, 0, len(conns))
	for id := range conns {
		out = append(out, id)
	}
	return out
}

// SetMetadata stores a key on a connection's metadata map. Unknown
// connections are ignored.
func (h *Hub) SetMetadata(connID, key string, value any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec, ok := h.records[connID]
	if !ok {
		return
	}
	if rec.Metadata == nil {
		rec.Metadata = make(map[string]any)
	}
	rec.Metadata[key] = value
}

// HandlePong records liveness for a connection. Called for both
// application-level pong envelopes and WebSocket control pongs.
func (h *Hub) HandlePong(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rec, ok := h.records[connID]; ok {
		rec.LastLivenessAt = time.Now().UTC()
	}
}

// Len returns the number of active connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Stats reports registry counters for the health endpoint.
type Stats struct {
	Connections int
	Users       int
	Rooms       int
}

// Stats returns current registry counters.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{
		Connections: len(h.records),
		Users:       len(h.userConns),
		Rooms:       len(h.rooms),
	}
}

// Close shuts the hub down: the monitor is cancelled and every remaining
// connection is disconnected. The hub accepts no connections afterward.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true

	if h.monitorCancel != nil {
		h.monitorCancel()
		h.monitorCancel = nil
	}
	done := h.monitorDone

	ids := make([]string, 0, len(h.records))
	for id := range h.records {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	// Transport closes can block on slow peers; tear them down in
	// parallel with a bound on concurrency.
	g := new(errgroup.Group)
	g.SetLimit(16)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			h.Disconnect(id, CloseGoingAway)
			return nil
		})
	}
	g.Wait()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	h.logger.Info("hub closed")
	return nil
}

func copyRecord(rec *Record) Record {
	out := *rec
	out.Rooms = append([]string(nil), rec.Rooms...)
	if rec.Metadata != nil {
		out.Metadata = make(map[string]any, len(rec.Metadata))
		for k, v := range rec.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
