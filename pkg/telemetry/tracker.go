package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/beacon/pkg/async"
	"github.com/platinummonkey/beacon/pkg/observability"
)

// Sink delivers a single event to a collection endpoint. Implementations
// live in pkg/sink; the Tracker only depends on this interface.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

const defaultDeliveryTimeout = 5 * time.Second

// Options configures a Tracker
type Options struct {
	// Sink receives every tracked event. A nil Sink disables delivery.
	Sink Sink
	// Logger receives pipeline diagnostics. Defaults to a nop logger.
	Logger *observability.Logger
	// Metrics, when set, counts tracked events and delivery outcomes.
	Metrics *observability.Metrics
	// Signals hooks host shutdown and fault streams. Defaults to NopSignals.
	Signals Signals
	// Context is the ambient environment stamped onto every event.
	Context EventContext
	// DeliveryTimeout bounds each asynchronous delivery. Defaults to 5s.
	DeliveryTimeout time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Tracker is the pipeline orchestrator. It stamps events with session and
// user identity, appends them to the EventLog, and hands them to the Sink on
// a panic-safe background goroutine.
//
// Track and every other exported method is safe for concurrent use and never
// panics into the caller.
type Tracker struct {
	mu      sync.Mutex
	userID  *int64
	ctxInfo EventContext

	sessionID    string
	sessionStart time.Time

	log             *EventLog
	sink            Sink
	logger          *observability.Logger
	metrics         *observability.Metrics
	deliveryTimeout time.Duration
	now             func() time.Time

	closeOnce sync.Once
}

// NewTracker creates a Tracker with a fresh session and installs the host
// auto-instrumentation hooks (shutdown, uncaught faults) when the Signals
// capability supports them.
func NewTracker(opts Options) *Tracker {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	timeout := opts.DeliveryTimeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}

	t := &Tracker{
		ctxInfo:         opts.Context,
		sessionID:       uuid.NewString(),
		sessionStart:    now(),
		log:             NewEventLog(),
		sink:            opts.Sink,
		logger:          logger.WithField("component", "tracker"),
		metrics:         opts.Metrics,
		deliveryTimeout: timeout,
		now:             now,
	}

	signals := opts.Signals
	if signals == nil {
		signals = NopSignals{}
	}
	signals.NotifyShutdown(func() { t.Close() })
	signals.NotifyFault(func(f Fault) { t.trackFault(f) })

	return t
}

// Track records one event. It never blocks on delivery and never panics.
func (t *Tracker) Track(name string, properties map[string]any) {
	defer observability.RecoverPanic(t.logger, "track")

	event := t.stamp(name, properties)
	t.log.Append(event)

	if t.metrics != nil {
		t.metrics.EventsTracked.WithLabelValues(name).Inc()
	}

	t.deliver(event)
}

// stamp builds an Event carrying the current session, user-ID snapshot,
// timestamp, and ambient context.
func (t *Tracker) stamp(name string, properties map[string]any) Event {
	t.mu.Lock()
	userID := t.userID
	ctxInfo := t.ctxInfo
	t.mu.Unlock()

	return Event{
		Name:       name,
		Properties: cloneProperties(properties),
		UserID:     userID,
		SessionID:  t.sessionID,
		Timestamp:  t.now().UnixMilli(),
		Context:    &ctxInfo,
	}
}

// deliver hands the event to the sink without blocking the caller. Transport
// failures are logged as warnings and dropped; there is no retry.
func (t *Tracker) deliver(event Event) {
	sink := t.sink
	if sink == nil {
		return
	}

	async.SafeGoNoError(context.Background(), t.deliveryTimeout, t.logger, "event delivery", func(ctx context.Context) {
		start := time.Now()
		err := sink.Deliver(ctx, event)
		if t.metrics != nil {
			t.metrics.DeliveryDuration.Observe(time.Since(start).Seconds())
		}
		if err != nil {
			t.logger.WithError(err).WithField("event", event.Name).Warn("event delivery failed, dropping")
			if t.metrics != nil {
				t.metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
			}
			return
		}
		if t.metrics != nil {
			t.metrics.DeliveriesTotal.WithLabelValues("ok").Inc()
		}
	})
}

// trackFault records one uncaught host fault as an event
func (t *Tracker) trackFault(f Fault) {
	name := EventUncaughtError
	if f.Kind == FaultRejection {
		name = EventUnhandledRejection
	}
	t.Track(name, map[string]any{
		"message": f.Message,
		"stack":   f.Stack,
		"url":     t.Context().URL,
	})
}

// SetUserID sets the user-ID snapshot used for subsequent events. It is not
// retroactive; last write wins.
func (t *Tracker) SetUserID(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.userID = &id
}

// ClearUserID removes the user-ID snapshot
func (t *Tracker) ClearUserID() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.userID = nil
}

// UserID returns the current user-ID snapshot, or nil when anonymous
func (t *Tracker) UserID() *int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.userID == nil {
		return nil
	}
	id := *t.userID
	return &id
}

// Context returns the ambient event context
func (t *Tracker) Context() EventContext {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ctxInfo
}

// SessionID returns the session identifier, constant for the Tracker lifetime
func (t *Tracker) SessionID() string {
	return t.sessionID
}

// SessionStart returns when this session began
func (t *Tracker) SessionStart() time.Time {
	return t.sessionStart
}

// Events returns a snapshot of all tracked events in call order
func (t *Tracker) Events() []Event {
	return t.log.Events()
}

// Log exposes the underlying event log for read-only consumers
func (t *Tracker) Log() *EventLog {
	return t.log
}

// ClearEvents empties the event log. Intended for test isolation only.
func (t *Tracker) ClearEvents() {
	t.log.Clear()
}

// Close ends the session, emitting exactly one session_end event with the
// session duration. Subsequent calls are no-ops; tracking after Close is
// still permitted but belongs to a session that has already ended.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		duration := t.now().Sub(t.sessionStart)
		if duration < 0 {
			duration = 0
		}
		t.Track(EventSessionEnd, map[string]any{
			"duration_ms": duration.Milliseconds(),
		})
	})
}
