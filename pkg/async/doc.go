// Package async provides safe concurrent execution primitives for background tasks.
//
// # Overview
//
// This package handles goroutine lifecycle management with panic recovery and
// timeout enforcement. The telemetry pipeline uses it for fire-and-forget
// event delivery: a failed or panicking delivery is logged and dropped, never
// surfaced to the caller.
//
// # Key Functions
//
// SafeGo: execute a function in a goroutine with safety features
//
//	async.SafeGo(ctx, 5*time.Second, logger, "event delivery", func(ctx context.Context) error {
//		return sink.Deliver(ctx, event)
//	})
package async
