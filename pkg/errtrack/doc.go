// Package errtrack records handled application errors.
//
// Recorder is the manual counterpart to the automatic fault hooks: code that
// catches an error it wants visibility into reports it here. Each capture is
// appended to the recorder's own error log, enriched with the current user
// and ambient context, and mirrored into the telemetry stream as an
// application_error event. Recording never fails and never panics into the
// caller.
package errtrack
