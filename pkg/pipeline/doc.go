// Package pipeline assembles the full client telemetry pipeline from
// configuration: tracker, delivery sink, metrics registry, vitals observer,
// error recorder, experiment assigner, and dashboard aggregator.
package pipeline
