package dashboard

import (
	"strings"
	"time"

	"github.com/platinummonkey/beacon/pkg/errtrack"
	"github.com/platinummonkey/beacon/pkg/metrics"
	"github.com/platinummonkey/beacon/pkg/telemetry"
	"github.com/platinummonkey/beacon/pkg/vitals"
)

// EventSource yields the tracked events. *telemetry.Tracker and
// *telemetry.EventLog both satisfy it.
type EventSource interface {
	Events() []telemetry.Event
}

// MetricSource yields metric summaries. *metrics.Registry satisfies it.
type MetricSource interface {
	Summaries() map[string]metrics.Summary
}

// VitalsSource yields the latest web vitals. *vitals.Observer satisfies it.
type VitalsSource interface {
	Values() map[vitals.Metric]float64
}

// ExperimentSource yields the current experiment assignments.
// *experiments.Assigner satisfies it.
type ExperimentSource interface {
	Enrollments() map[string]string
}

// ErrorSource yields the captured error records. *errtrack.Recorder
// satisfies it.
type ErrorSource interface {
	Errors() []errtrack.Record
}

// Overview is one aggregated snapshot of the pipeline state
type Overview struct {
	TotalEvents int                        `json:"total_events"`
	EventsToday int                        `json:"events_today"`
	ErrorCount  int                        `json:"error_count"`
	Counts      map[string]int             `json:"counts"`
	Vitals      map[string]float64         `json:"vitals,omitempty"`
	Metrics     map[string]metrics.Summary `json:"metrics,omitempty"`
	Experiments map[string]string          `json:"experiments,omitempty"`
	Errors      []errtrack.Record          `json:"errors,omitempty"`
}

// Aggregator computes overviews from the live pipeline components. Any
// source may be nil; its section is simply absent from the overview.
type Aggregator struct {
	events      EventSource
	metrics     MetricSource
	vitals      VitalsSource
	experiments ExperimentSource
	errors      ErrorSource
	now         func() time.Time
}

// AggregatorOption customizes an Aggregator
type AggregatorOption func(*Aggregator)

// WithMetricSource includes metric summaries in overviews
func WithMetricSource(s MetricSource) AggregatorOption {
	return func(a *Aggregator) { a.metrics = s }
}

// WithVitalsSource includes web vitals in overviews
func WithVitalsSource(s VitalsSource) AggregatorOption {
	return func(a *Aggregator) { a.vitals = s }
}

// WithExperimentSource includes experiment assignments in overviews
func WithExperimentSource(s ExperimentSource) AggregatorOption {
	return func(a *Aggregator) { a.experiments = s }
}

// WithErrorSource forwards captured error records in overviews
func WithErrorSource(s ErrorSource) AggregatorOption {
	return func(a *Aggregator) { a.errors = s }
}

// WithClock overrides the clock, for tests
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator creates an aggregator over the given event source
func NewAggregator(events EventSource, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{events: events, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// errorEventNames are the event names counted as errors when no error
// source is wired
var errorEventNames = map[string]bool{
	telemetry.EventUncaughtError:      true,
	telemetry.EventUnhandledRejection: true,
	telemetry.EventApplicationError:   true,
}

// Overview computes a snapshot of the current pipeline state
func (a *Aggregator) Overview() Overview {
	o := Overview{Counts: make(map[string]int)}

	if a.events != nil {
		midnight := a.midnight()
		for _, ev := range a.events.Events() {
			o.TotalEvents++
			o.Counts[ev.Name]++
			if a.errors == nil && errorEventNames[ev.Name] {
				o.ErrorCount++
			}
			if time.UnixMilli(ev.Timestamp).After(midnight) {
				o.EventsToday++
			}
		}
	}
	if a.errors != nil {
		records := a.errors.Errors()
		o.ErrorCount = len(records)
		if len(records) > 0 {
			o.Errors = records
		}
	}
	if a.vitals != nil {
		values := a.vitals.Values()
		if len(values) > 0 {
			o.Vitals = make(map[string]float64, len(values))
			for metric, value := range values {
				o.Vitals[string(metric)] = value
			}
		}
	}
	if a.metrics != nil {
		if summaries := a.metrics.Summaries(); len(summaries) > 0 {
			o.Metrics = summaries
		}
	}
	if a.experiments != nil {
		if enrollments := a.experiments.Enrollments(); len(enrollments) > 0 {
			o.Experiments = enrollments
		}
	}
	return o
}

// CountByPrefix counts events whose name starts with prefix
func (a *Aggregator) CountByPrefix(prefix string) int {
	if a.events == nil {
		return 0
	}
	count := 0
	for _, ev := range a.events.Events() {
		if strings.HasPrefix(ev.Name, prefix) {
			count++
		}
	}
	return count
}

// CountToday counts events tracked since the local midnight
func (a *Aggregator) CountToday() int {
	if a.events == nil {
		return 0
	}
	midnight := a.midnight()
	count := 0
	for _, ev := range a.events.Events() {
		if time.UnixMilli(ev.Timestamp).After(midnight) {
			count++
		}
	}
	return count
}

// midnight returns the start of the current local day
func (a *Aggregator) midnight() time.Time {
	now := a.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
