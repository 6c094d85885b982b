// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing in the collector API.
package httputil
