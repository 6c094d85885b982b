// Package collector implements the server-side collection endpoint the
// client pipeline delivers events to.
//
// Ingested events are persisted through an EventStore; in-memory, Postgres,
// and SQLite implementations are provided. The HTTP API accepts one event
// per request, mirroring the client's delivery model, and exposes simple
// aggregate statistics.
package collector
