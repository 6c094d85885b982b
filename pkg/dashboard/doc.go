// Package dashboard aggregates the pipeline's in-memory state into overview
// snapshots for an embedded debugging or analytics view.
package dashboard
