package experiments

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/platinummonkey/beacon/pkg/observability"
	"github.com/platinummonkey/beacon/pkg/telemetry"
)

// Emitter is the subset of the tracker used to mirror enrollments and
// conversions and to snapshot the signed-in user. *telemetry.Tracker
// satisfies it.
type Emitter interface {
	Track(name string, properties map[string]any)
	UserID() *int64
}

// Assigner enrolls the current participant into experiments and records
// conversions against the assigned variant. All methods are safe for
// concurrent use.
type Assigner struct {
	mu          sync.Mutex
	enrollments map[string]string

	store   IdentityStore
	emitter Emitter
	logger  *observability.Logger
	metrics *observability.Metrics
}

// AssignerOption customizes an Assigner
type AssignerOption func(*Assigner)

// WithLogger sets the diagnostics logger
func WithLogger(l *observability.Logger) AssignerOption {
	return func(a *Assigner) { a.logger = l }
}

// WithMetrics counts enrollments in the process metrics
func WithMetrics(m *observability.Metrics) AssignerOption {
	return func(a *Assigner) { a.metrics = m }
}

// NewAssigner creates an assigner bucketing on identities from store
func NewAssigner(store IdentityStore, emitter Emitter, opts ...AssignerOption) *Assigner {
	a := &Assigner{
		enrollments: make(map[string]string),
		store:       store,
		emitter:     emitter,
		logger:      observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.WithField("component", "experiment_assigner")
	return a
}

// Enroll assigns the participant a variant for the experiment and returns it.
// The assignment is deterministic in the experiment name and identity: the
// signed-in user id when one is set, else the durable anonymous id, so a
// known user lands in the same variant on every device. Enrolling again in
// the same experiment returns the existing variant without emitting a second
// enrollment event.
func (a *Assigner) Enroll(ctx context.Context, experiment string, variants []string) (string, error) {
	if len(variants) == 0 {
		return "", fmt.Errorf("experiment %q has no variants", experiment)
	}

	a.mu.Lock()
	if variant, ok := a.enrollments[experiment]; ok {
		a.mu.Unlock()
		return variant, nil
	}
	a.mu.Unlock()

	identity, err := a.identity(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve identity for experiment %q: %w", experiment, err)
	}
	variant := Bucket(experiment, identity, variants)

	a.mu.Lock()
	// another goroutine may have enrolled while we resolved the identity;
	// the bucket is deterministic so both computed the same variant
	if existing, ok := a.enrollments[experiment]; ok {
		a.mu.Unlock()
		return existing, nil
	}
	a.enrollments[experiment] = variant
	a.mu.Unlock()

	a.logger.WithFields(map[string]any{
		"experiment": experiment,
		"variant":    variant,
	}).Debug("enrolled in experiment")
	if a.metrics != nil {
		a.metrics.EnrollmentsTotal.WithLabelValues(experiment, variant).Inc()
	}
	if a.emitter != nil {
		a.emitter.Track(telemetry.EventEnrollment, map[string]any{
			"experiment": experiment,
			"variant":    variant,
		})
	}
	return variant, nil
}

// identity resolves what gets bucketed: the current user id if known, else
// the store's durable anonymous id.
func (a *Assigner) identity(ctx context.Context) (string, error) {
	if a.emitter != nil {
		if id := a.emitter.UserID(); id != nil {
			return strconv.FormatInt(*id, 10), nil
		}
	}
	return a.store.Identity(ctx)
}

// Variant returns the assigned variant for an experiment, if enrolled
func (a *Assigner) Variant(experiment string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	variant, ok := a.enrollments[experiment]
	return variant, ok
}

// Enrollments returns a copy of all current assignments
func (a *Assigner) Enrollments() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string, len(a.enrollments))
	for k, v := range a.enrollments {
		out[k] = v
	}
	return out
}

// TrackConversion records a conversion of the given kind against the
// assigned variant. It is a no-op when the participant is not enrolled in the
// experiment. An optional value (revenue, count) may be attached.
func (a *Assigner) TrackConversion(experiment, conversionType string, value ...float64) {
	variant, ok := a.Variant(experiment)
	if !ok {
		a.logger.WithField("experiment", experiment).Debug("conversion without enrollment, ignoring")
		return
	}
	if a.emitter == nil {
		return
	}

	props := map[string]any{
		"experiment": experiment,
		"variant":    variant,
		"type":       conversionType,
	}
	if len(value) > 0 {
		props["value"] = value[0]
	}
	a.emitter.Track(telemetry.EventConversion, props)
}
