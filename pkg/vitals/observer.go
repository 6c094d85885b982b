package vitals

import (
	"sync"

	"github.com/platinummonkey/beacon/pkg/observability"
	"github.com/platinummonkey/beacon/pkg/telemetry"
)

// Observation is one raw performance entry reported by the host
type Observation struct {
	Metric Metric
	// Value is milliseconds for paint and input metrics, a unitless shift
	// score for layout shifts.
	Value float64
	// HadRecentInput marks layout shifts caused by user interaction. Such
	// shifts are excluded from the cumulative score.
	HadRecentInput bool
}

// Source abstracts the host platform's performance observation stream.
// Observe returns false when the host cannot report vitals, in which case
// the observer degrades to a no-op.
type Source interface {
	Observe(fn func(Observation)) bool
}

// NopSource reports observation as unavailable
type NopSource struct{}

// Observe implements Source
func (NopSource) Observe(func(Observation)) bool { return false }

// Emitter is the subset of the tracker used to report vitals.
// *telemetry.Tracker satisfies it.
type Emitter interface {
	Track(name string, properties map[string]any)
}

// Recorder optionally receives each vital as a metric sample.
// *metrics.Registry satisfies it.
type Recorder interface {
	Record(name string, value float64)
}

// Observer subscribes to a Source, classifies incoming observations, and
// emits exactly one web_vital event per qualifying observation. Paint and
// input metrics carry their raw value; layout shifts additionally carry the
// running cumulative score, which is what gets classified. Shifts caused by
// recent user input do not qualify and are neither accumulated nor reported.
type Observer struct {
	mu     sync.Mutex
	cls    float64
	latest map[Metric]float64
	closed bool

	supported bool
	emitter   Emitter
	recorder  Recorder
	logger    *observability.Logger
}

// ObserverOption customizes an Observer
type ObserverOption func(*Observer)

// WithRecorder mirrors each vital into a metric sample window
func WithRecorder(r Recorder) ObserverOption {
	return func(o *Observer) { o.recorder = r }
}

// WithLogger sets the diagnostics logger
func WithLogger(l *observability.Logger) ObserverOption {
	return func(o *Observer) { o.logger = l }
}

// NewObserver subscribes to source and reports vitals through emitter
func NewObserver(source Source, emitter Emitter, opts ...ObserverOption) *Observer {
	o := &Observer{
		latest:  make(map[Metric]float64),
		emitter: emitter,
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.WithField("component", "vitals_observer")

	if source == nil {
		source = NopSource{}
	}
	o.supported = source.Observe(o.observe)
	if !o.supported {
		o.logger.Debug("performance observation unavailable, vitals disabled")
	}
	return o
}

// Supported reports whether the host can deliver observations
func (o *Observer) Supported() bool {
	return o.supported
}

func (o *Observer) observe(obs Observation) {
	defer observability.RecoverPanic(o.logger, "vitals observation")

	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return
	}

	if obs.Metric == CLS {
		o.accumulateShift(obs)
		return
	}
	o.report(obs.Metric, obs.Value)
}

// accumulateShift folds one layout shift into the cumulative score and
// reports it. Shifts caused by recent user input do not count.
func (o *Observer) accumulateShift(obs Observation) {
	if obs.HadRecentInput {
		return
	}
	o.mu.Lock()
	o.cls += obs.Value
	cumulative := o.cls
	o.latest[CLS] = cumulative
	o.mu.Unlock()

	if o.recorder != nil {
		o.recorder.Record("web_vital_"+string(CLS), cumulative)
	}
	if o.emitter == nil {
		return
	}
	o.emitter.Track(telemetry.EventWebVital, map[string]any{
		"metric":     string(CLS),
		"value":      obs.Value,
		"cumulative": cumulative,
		"rating":     string(Classify(CLS, cumulative)),
	})
}

// report classifies and emits one point-in-time vital
func (o *Observer) report(metric Metric, value float64) {
	o.mu.Lock()
	o.latest[metric] = value
	o.mu.Unlock()

	if o.recorder != nil {
		o.recorder.Record("web_vital_"+string(metric), value)
	}
	if o.emitter == nil {
		return
	}
	o.emitter.Track(telemetry.EventWebVital, map[string]any{
		"metric": string(metric),
		"value":  value,
		"rating": string(Classify(metric, value)),
	})
}

// Values returns the latest observed value per metric. For CLS this is the
// running cumulative score.
func (o *Observer) Values() map[Metric]float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[Metric]float64, len(o.latest))
	for k, v := range o.latest {
		out[k] = v
	}
	return out
}

// CumulativeShift returns the current cumulative layout shift score
func (o *Observer) CumulativeShift() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cls
}

// Close stops the observer. Observations arriving after Close are ignored;
// the accumulated values remain readable.
func (o *Observer) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}
