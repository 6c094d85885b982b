package errtrack

import (
	"sync"
	"time"

	"github.com/platinummonkey/beacon/pkg/observability"
	"github.com/platinummonkey/beacon/pkg/telemetry"
)

// Emitter is the subset of the tracker used to mirror errors into the event
// stream and snapshot the current identity. *telemetry.Tracker satisfies it.
type Emitter interface {
	Track(name string, properties map[string]any)
	UserID() *int64
	Context() telemetry.EventContext
}

// Record is one captured application error
type Record struct {
	Message   string         `json:"message"`
	Stack     string         `json:"stack,omitempty"`
	Timestamp int64          `json:"timestamp"`
	UserID    *int64         `json:"user_id,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// Recorder captures handled application errors into its own log, separate
// from the event log, and mirrors each capture as an application_error event.
// All methods are safe for concurrent use and never panic.
type Recorder struct {
	mu      sync.Mutex
	records []Record

	emitter Emitter
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// RecorderOption customizes a Recorder
type RecorderOption func(*Recorder)

// WithLogger sets the diagnostics logger
func WithLogger(l *observability.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = l }
}

// WithMetrics counts captured errors in the process metrics
func WithMetrics(m *observability.Metrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

// WithClock overrides the clock, for tests
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates a recorder mirroring errors into emitter
func NewRecorder(emitter Emitter, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		emitter: emitter,
		logger:  observability.NopLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithField("component", "error_recorder")
	return r
}

// Capture records one handled error with optional context. A nil error is
// ignored.
func (r *Recorder) Capture(err error, context map[string]any) {
	if err == nil {
		return
	}
	r.capture(err.Error(), context)
}

// CaptureMessage records an error condition that has no error value
func (r *Recorder) CaptureMessage(message string, context map[string]any) {
	if message == "" {
		return
	}
	r.capture(message, context)
}

func (r *Recorder) capture(message string, context map[string]any) {
	defer observability.RecoverPanic(r.logger, "error capture")

	r.logger.WithFields(context).WithField("error", message).Warn("application error captured")

	record := Record{
		Message:   message,
		Timestamp: r.now().UnixMilli(),
		Context:   make(map[string]any, len(context)+2),
	}
	for k, v := range context {
		record.Context[k] = v
	}
	if stack, ok := context["stack"].(string); ok {
		record.Stack = stack
	}
	if r.emitter != nil {
		record.UserID = r.emitter.UserID()
		ambient := r.emitter.Context()
		if ambient.URL != "" {
			record.Context["url"] = ambient.URL
		}
		if ambient.UserAgent != "" {
			record.Context["user_agent"] = ambient.UserAgent
		}
	}

	r.mu.Lock()
	r.records = append(r.records, record)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ErrorsCaptured.Inc()
	}
	if r.emitter == nil {
		return
	}

	props := map[string]any{"message": message}
	for k, v := range context {
		if k == "message" {
			continue
		}
		props[k] = v
	}
	r.emitter.Track(telemetry.EventApplicationError, props)
}

// Errors returns a snapshot of all captured records in capture order
func (r *Recorder) Errors() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Count returns the number of captured records
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Clear empties the error log. Intended for test isolation only.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}
