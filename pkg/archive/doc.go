// Package archive snapshots ingested events into object storage.
//
// The Archiver periodically reads newly received events from the collector's
// store, encodes them as newline-delimited JSON, and uploads one object per
// run under a time-based key layout.
package archive
