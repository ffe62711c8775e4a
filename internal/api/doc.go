// Package api implements the HTTP REST API and WebSocket server for Gray Media Core.
//
// This package provides:
//   - public renderer endpoints: list, get, identify, whoami, diagnose,
//     overrides and sightings
//   - admin endpoints for the identification policy and custom profiles
//   - a WebSocket hub relaying renderer.identified and renderer.policy events
//   - middleware: request ID, logging, panic recovery, CORS, body size limit
//
// # Security
//
// Admin routes require an HS256 bearer token whose role grants the route's
// permission (see package auth). The WebSocket feed takes the token as a
// query parameter and accepts any role that may read renderer state.
//
// # Graceful Degradation
//
// Sightings and custom profiles depend on SQLite; when they are unavailable
// their endpoints answer 503 and identification keeps working.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
