// Package experiments implements deterministic A/B test assignment.
//
// Variants are chosen by hashing the experiment name together with a durable
// anonymous identity, so the same participant always lands in the same
// variant across sessions and across pipeline instances. Enrollments and
// conversions are mirrored into the telemetry stream.
package experiments
