// Package server exposes the WebSocket endpoint of the gateway. It
// upgrades HTTP requests, resolves client identity, hands accepted
// connections to the hub, and pumps inbound frames into the dispatcher.
package server
