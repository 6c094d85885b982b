package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with the full stack trace.
//
// Every public pipeline operation defers this so that telemetry can never
// crash the application it observes:
//
//	func (t *Tracker) Track(name string, props map[string]any) {
//	    defer observability.RecoverPanic(t.logger, "track")
//	    // ...
//	}
//
// After logging, the panic is NOT re-raised.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}

// MustRecover converts a recovered panic value to an error.
//
//	func parse() (out Data, err error) {
//	    defer func() { err = observability.MustRecover(recover()) }()
//	    // ...
//	}
//
// Returns nil when r is nil.
func MustRecover(r interface{}) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}
