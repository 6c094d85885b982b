package metrics

import (
	"math"
	"sync"
	"time"

	"github.com/platinummonkey/beacon/pkg/observability"
	"github.com/platinummonkey/beacon/pkg/telemetry"
)

// WindowSize is the maximum number of samples retained per metric name.
// Older samples are evicted first.
const WindowSize = 100

// Emitter is the subset of the tracker used to surface measurements as
// telemetry events. *telemetry.Tracker satisfies it.
type Emitter interface {
	Track(name string, properties map[string]any)
}

// Summary aggregates the retained samples of one metric
type Summary struct {
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// Registry collects named metric samples into bounded windows. All methods
// are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	windows map[string][]float64

	emitter Emitter
	logger  *observability.Logger
	obs     *observability.Metrics
	now     func() time.Time
	strict  bool
}

// Option customizes a Registry
type Option func(*Registry)

// WithEmitter surfaces completed measurements as telemetry events
func WithEmitter(e Emitter) Option {
	return func(r *Registry) { r.emitter = e }
}

// WithLogger sets the diagnostics logger
func WithLogger(l *observability.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithObservability counts recorded samples in the process metrics
func WithObservability(m *observability.Metrics) Option {
	return func(r *Registry) { r.obs = m }
}

// WithClock overrides the clock, for tests
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithStrict escalates misuse (such as recording a NaN sample) to an error
// log instead of a quiet warning. Enable outside production so bugs surface
// early; either way the bad sample is dropped and nothing reaches the caller.
func WithStrict(strict bool) Option {
	return func(r *Registry) { r.strict = strict }
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		windows: make(map[string][]float64),
		logger:  observability.NopLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithField("component", "metrics_registry")
	return r
}

// Record appends one sample to the metric's window, evicting the oldest
// sample once the window is full. Non-finite values are always dropped;
// strict mode logs them at error level so the bug is loud in development.
func (r *Registry) Record(name string, value float64) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		if r.strict {
			r.logger.WithField("metric", name).Errorf("invariant violation: non-finite sample %v", value)
		} else {
			r.logger.WithField("metric", name).Warnf("dropping non-finite sample %v", value)
		}
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	window := append(r.windows[name], value)
	if len(window) > WindowSize {
		window = window[len(window)-WindowSize:]
	}
	r.windows[name] = window

	if r.obs != nil {
		r.obs.MetricSamples.WithLabelValues(name).Inc()
	}
}

// StartMeasurement begins a named timing. The returned stop function records
// the elapsed milliseconds as a sample and, when an emitter is attached,
// tracks a performance_measurement event. Stop is idempotent.
func (r *Registry) StartMeasurement(name string) (stop func()) {
	start := r.now()
	var once sync.Once
	return func() {
		once.Do(func() {
			elapsed := float64(r.now().Sub(start).Microseconds()) / 1000.0
			r.Record(name, elapsed)
			if r.emitter != nil {
				r.emitter.Track(telemetry.EventPerformanceMeasurement, map[string]any{
					"metric":      name,
					"duration_ms": elapsed,
				})
			}
		})
	}
}

// Measure times fn and records it under name
func (r *Registry) Measure(name string, fn func()) {
	stop := r.StartMeasurement(name)
	defer stop()
	fn()
}

// Samples returns a copy of the retained window for one metric, oldest first
func (r *Registry) Samples(name string) []float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	window := r.windows[name]
	out := make([]float64, len(window))
	copy(out, window)
	return out
}

// Summary summarizes the retained samples of one metric. The zero Summary is
// returned for an unknown name.
func (r *Registry) Summary(name string) Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return summarize(r.windows[name])
}

// Summaries summarizes every metric with at least one retained sample
func (r *Registry) Summaries() map[string]Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Summary, len(r.windows))
	for name, window := range r.windows {
		if len(window) == 0 {
			continue
		}
		out[name] = summarize(window)
	}
	return out
}

// Names returns the metric names with at least one retained sample
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.windows))
	for name, window := range r.windows {
		if len(window) > 0 {
			names = append(names, name)
		}
	}
	return names
}

// Reset drops all retained samples. Intended for test isolation only.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.windows = make(map[string][]float64)
}

func summarize(window []float64) Summary {
	if len(window) == 0 {
		return Summary{}
	}
	s := Summary{Min: window[0], Max: window[0], Count: len(window)}
	var sum float64
	for _, v := range window {
		sum += v
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Avg = sum / float64(len(window))
	return s
}
