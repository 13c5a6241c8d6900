// Package server implements the collabmd HTTP and WebSocket server.
//
// Each WebSocket connection moves through three states: connected, joined
// and closed. A connected client may only send join-session. Once joined it
// may send content-change and cursor-move for its own session. Closing the
// connection removes its participant and cursor and tells the remaining
// participants with user-left.
//
// Mutations go through a session.Store whose notifier publishes encoded
// server events to a broker.Broker topic named after the session. Every
// joined connection holds one subscription and forwards what it receives,
// skipping its own events and those already contained in its snapshot.
//
// # Connection goroutines
//
//	readLoop  → dispatch → session.Store → notify → broker.Publish
//	pump      ← broker.Subscription
//	writeLoop ← send queue ← (pump, replies)
//
// # HTTP routes
//
//	GET  /ws                       WebSocket endpoint
//	GET  /healthz                  liveness, pings the broker when possible
//	GET  /metrics                  Prometheus exposition
//	GET  /api/sessions             session summaries
//	GET  /api/sessions/{id}        session snapshot, 404 if unknown
//	POST /api/sessions/{id}/export write the document via the Exporter
package server
