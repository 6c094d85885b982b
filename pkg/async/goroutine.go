package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/platinummonkey/beacon/pkg/observability"
)

// SafeGo executes a function in a goroutine with:
//   - Context cancellation support
//   - Panic recovery
//   - Timeout enforcement
//   - Error logging
//
// Use this instead of bare `go func()` to prevent goroutine leaks and crashes.
// The returned channel is closed when the task finishes; callers that need to
// synchronize (tests, shutdown paths) can wait on it, fire-and-forget callers
// ignore it.
func SafeGo(parentCtx context.Context, timeout time.Duration, logger *observability.Logger, taskName string, fn func(context.Context) error) <-chan struct{} {
	if logger == nil {
		logger = observability.NopLogger()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithField("panic", r).
					WithField("stack", string(debug.Stack())).
					WithField("task", taskName).
					Error("PANIC in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			// Log and drop. The caller already moved on.
			logger.WithError(err).WithField("task", taskName).Warn("background task failed")
		}
	}()

	return done
}

// SafeGoNoError is like SafeGo but for functions that don't return errors.
// Still provides panic recovery and context support.
func SafeGoNoError(parentCtx context.Context, timeout time.Duration, logger *observability.Logger, taskName string, fn func(context.Context)) <-chan struct{} {
	return SafeGo(parentCtx, timeout, logger, taskName, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}
