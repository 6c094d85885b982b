// Package metrics implements client-side performance sample collection.
//
// A Registry keeps a bounded sliding window of the most recent samples per
// metric name and can summarize them on demand. Timing helpers emit a
// telemetry event per completed measurement so durations also reach the
// collection endpoint.
package metrics
