// Package api implements the local HTTP REST API and WebSocket server for
// the AMBEO bridge.
//
// It gives controllers that do not speak MQTT the same reach as the bus:
// listing soundbars, reading and refreshing their state, executing
// commands and bridge requests, and streaming state changes.
//
// # Routes
//
//	GET  /metrics                           Prometheus exposition
//	GET  /api/v1/health                     bridge health
//	GET  /api/v1/ws                         state change stream
//	POST /api/v1/auth/ws-ticket             single-use WebSocket ticket
//	GET  /api/v1/soundbars                  every configured soundbar
//	GET  /api/v1/soundbars/{id}             one soundbar with its entities
//	GET  /api/v1/soundbars/{id}/state       last polled state
//	POST /api/v1/soundbars/{id}/refresh     poll now
//	POST /api/v1/soundbars/{id}/commands    execute a command
//	GET  /api/v1/soundbars/{id}/commands    command history (when enabled)
//	POST /api/v1/requests                   execute a bridge request
//
// # Security
//
// With security.jwt.secret set, every route outside /metrics, /health and
// the WebSocket handshake needs an HS256 bearer token. The WebSocket takes
// a ticket query parameter instead, so the token never appears in a URL.
// Without a secret the API is open and should only listen on a trusted
// network.
package api
