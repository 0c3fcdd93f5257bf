package hub

import (
	"context"
	"time"

	"github.com/lhchen/assistant-realtime/internal/message"
)

// startMonitorLocked launches the liveness monitor if it is not running.
// Callers must hold h.mu. Start and self-stop both happen under the hub
// mutex, so a monitor that is about to exit and an Accept that needs one
// can never miss each other.
func (h *Hub) startMonitorLocked() {
	if h.monitorCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.monitorCancel = cancel
	h.monitorDone = make(chan struct{})

	go h.monitorLoop(ctx, h.monitorDone)
	h.logger.Debug("liveness monitor started",
		"interval", h.cfg.HeartbeatInterval,
		"timeout", h.cfg.LivenessTimeout,
	)
}

// monitorLoop pings connections on a fixed interval and evicts the silent
// ones. It stops scheduling itself once the registry is empty; the next
// successful Accept restarts it.
func (h *Hub) monitorLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.mu.Lock()
			if len(h.records) == 0 {
				cancel := h.monitorCancel
				h.monitorCancel = nil
				h.monitorDone = nil
				h.mu.Unlock()
				if cancel != nil {
					// Release the derived context.
					cancel()
				}
				h.logger.Debug("liveness monitor idle, stopping")
				return
			}
			h.mu.Unlock()

			h.sweep()
		}
	}
}

// sweep runs one liveness pass: evict connections silent for longer than
// the timeout, ping the rest. A failed ping already tears the connection
// down inside SendToConnection.
func (h *Hub) sweep() {
	now := time.Now().UTC()

	type liveness struct {
		connID string
		last   time.Time
	}

	h.mu.RLock()
	conns := make([]liveness, 0, len(h.records))
	for id, rec := range h.records {
		last := rec.LastLivenessAt
		if last.IsZero() {
			// Never ponged: judge against connect time.
			last = rec.ConnectedAt
		}
		conns = append(conns, liveness{connID: id, last: last})
	}
	h.mu.RUnlock()

	var stale []string
	for _, c := range conns {
		if now.Sub(c.last) > h.cfg.LivenessTimeout {
			stale = append(stale, c.connID)
			continue
		}

		ping := message.New(message.TypePing, map[string]any{
			"timestamp": now.Format(time.RFC3339),
		})
		ping.SenderID = message.SystemSender
		h.SendToConnection(c.connID, ping)
	}

	for _, connID := range stale {
		h.logger.Warn("liveness timeout, evicting", "conn_id", connID)
		h.Disconnect(connID, CloseGoingAway)
	}
}
