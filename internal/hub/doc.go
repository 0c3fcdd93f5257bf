// Package hub implements the realtime connection layer.
//
// The Hub is the single source of truth for live connections and rooms:
//   - Connection registry: lifecycle, user index, per-connection transport
//   - Room registry: named groups with optional member limits
//   - Broadcaster: best-effort fan-out to a connection, a user, a room, or all
//   - Liveness monitor: periodic PING sweep that evicts silent connections
//
// Delivery is at-most-once within the process. A failed transport write
// tears down only the affected connection; reconnection is the client's
// responsibility and always yields a new connection id.
package hub
