// Package websocket provides real-time context change streaming via WebSocket.
//
// Clients connect to /api/v1/context/ws to receive every CONTEXT_UPDATE
// published by the context store. An optional prefix query parameter limits
// the stream to keys starting with it.
package websocket
