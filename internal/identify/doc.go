// Package identify works out which media renderer is talking to the server
// and records what it saw.
//
// # Architecture
//
//	HTTP API ──┐                        ┌── renderer_sightings (SQLite)
//	           ├──▶ Service.Identify ──▶├── renderer_identification (InfluxDB)
//	media ─────┘          │             └── notifier ──▶ MQTT event / WebSocket
//	                      ▼
//	              renderer.Resolver
//	                      ▲
//	MQTT graymedia/config/renderer ──▶ Watcher ──▶ Service.UpdatePolicy
//
// # Lookup Order
//
// Identify consults the resolver with, in order:
//
//  1. the client's socket address (forced-IP overrides)
//  2. the "User-Agent: <value>" line
//  3. every other header as a "Name: value" line, in sorted header-name order
//
// The first hit wins. With the forced default in effect none of these are
// consulted and the result reports MethodForced. When nothing matches the
// result carries the default renderer with MethodNone, or no profile at all
// when no default is loaded. Unidentified clients still get a sighting with
// an empty profile but never an identified event.
//
// # Side Effects
//
// Sightings, telemetry and notifications are best-effort: failures are
// logged and never change the result. Notifications are delivered from a
// single background goroutine; Close drains it.
package identify
