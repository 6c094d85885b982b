package telemetry

import (
	"os"
	"os/signal"
	"syscall"
)

// FaultKind distinguishes the host's uncaught fault streams
type FaultKind string

const (
	// FaultError is an uncaught synchronous error
	FaultError FaultKind = "error"
	// FaultRejection is an unhandled asynchronous rejection
	FaultRejection FaultKind = "rejection"
)

// Fault describes one uncaught fault reported by the host
type Fault struct {
	Kind    FaultKind
	Message string
	Stack   string
}

// Signals abstracts the host platform's lifecycle and fault notification
// streams. Each Notify method returns false when the capability is
// unavailable, in which case the feature degrades silently to a no-op.
type Signals interface {
	// NotifyShutdown registers fn to run when the host is shutting down
	NotifyShutdown(fn func()) bool
	// NotifyFault registers fn to run once per uncaught fault
	NotifyFault(fn func(Fault)) bool
}

// NopSignals reports every capability as unavailable. It is the default for
// headless hosts and unit tests.
type NopSignals struct{}

// NotifyShutdown implements Signals
func (NopSignals) NotifyShutdown(func()) bool { return false }

// NotifyFault implements Signals
func (NopSignals) NotifyFault(func(Fault)) bool { return false }

// OSSignals notifies shutdown on SIGINT/SIGTERM. Fault streams are not
// observable on a plain OS host, so NotifyFault reports unavailable.
type OSSignals struct{}

// NotifyShutdown implements Signals
func (OSSignals) NotifyShutdown(fn func()) bool {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		fn()
	}()
	return true
}

// NotifyFault implements Signals
func (OSSignals) NotifyFault(func(Fault)) bool { return false }
