// Package middleware provides HTTP middleware for the collection endpoint.
//
// Rate limiting protects the collector from misbehaving clients. The
// in-memory token bucket limiter suits a single instance; the Redis-backed
// limiter shares limits across replicas and fails open on Redis errors so a
// cache outage never blocks ingestion.
package middleware
