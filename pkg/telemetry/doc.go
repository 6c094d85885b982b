// Package telemetry provides the core event pipeline: the event model, the
// append-only in-memory event log, and the Tracker that stamps, records, and
// delivers events.
//
// # Overview
//
// Application code funnels every observation through a single entry point:
//
//	tracker.Track("comment_posted", map[string]any{"series_id": 42})
//
// The Tracker stamps the event with the session ID, the current user-ID
// snapshot, a millisecond timestamp, and ambient context, appends it to the
// EventLog, and hands it to the configured Sink on a panic-safe background
// goroutine. Track never blocks and never panics into the caller.
//
// # Sessions
//
// A session spans the lifetime of one Tracker. Close emits exactly one
// session_end event carrying the session duration; host shutdown hooks
// installed through the Signals capability call Close automatically.
//
// # Host signals
//
// The Signals interface abstracts the host platform's lifecycle and fault
// streams (shutdown, uncaught faults). NopSignals degrades everything to a
// no-op so the pipeline can run in headless test hosts.
package telemetry
