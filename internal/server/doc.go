// Package server runs the form relay over HTTP.
//
// The relay serves one parsed page and keeps its registered forms live:
//
//	GET  /                  the page, with region visibility reflecting state
//	GET  /forms             registered forms with their current snapshot
//	POST /forms/{id}        submit a form (urlencoded or multipart body)
//	GET  /forms/{id}/events websocket stream of JSON snapshots
//	GET  /healthz           liveness
//	GET  /metrics           Prometheus metrics
//
// POST /forms/{id} answers JSON when the client sends Accept:
// application/json (200 on success, 422 for a form without action, 502 for
// any provider or transport failure) and otherwise redirects back to /
// with 303 See Other, the way a plain HTML form post expects.
//
// # Lifecycle
//
// Start blocks until its context is canceled or SIGINT/SIGTERM arrives.
// Shutdown withdraws the mDNS announcement, disconnects websocket
// subscribers, stops pending auto-hide timers and drains open requests.
package server
