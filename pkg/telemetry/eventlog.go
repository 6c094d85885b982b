package telemetry

import "sync"

// EventLog is an append-only in-memory store of events for the lifetime of
// one pipeline instance. Events are held in call order.
type EventLog struct {
	mu     sync.RWMutex
	events []Event
}

// NewEventLog creates an empty event log
func NewEventLog() *EventLog {
	return &EventLog{}
}

// Append adds an event to the log
func (l *EventLog) Append(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

// Events returns a snapshot copy of all events in append order
func (l *EventLog) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of events in the log
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Clear removes all events. Intended for test isolation only.
func (l *EventLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}
