// Package sink provides event delivery transports for the telemetry pipeline.
//
// HTTPSink posts each event to a collection endpoint as it is tracked.
// LogSink writes events to the structured log instead of the network, for
// development and non-production builds. RecordingSink wraps another sink and
// keeps a bounded in-memory log of delivery outcomes for debugging.
package sink
