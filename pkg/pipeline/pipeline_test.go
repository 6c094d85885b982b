package pipeline

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/beacon/pkg/config"
	"github.com/platinummonkey/beacon/pkg/experiments"
	"github.com/platinummonkey/beacon/pkg/telemetry"
	"github.com/platinummonkey/beacon/pkg/vitals"
)

type captureSink struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (s *captureSink) Deliver(ctx context.Context, event telemetry.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

type feedSource struct {
	fn func(vitals.Observation)
}

func (s *feedSource) Observe(fn func(vitals.Observation)) bool {
	s.fn = fn
	return true
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Pipeline.Environment = config.EnvProduction
	return cfg
}

func TestNewWiresAllComponents(t *testing.T) {
	p, err := New(testConfig(),
		WithSink(&captureSink{}),
		WithIdentityStore(experiments.NewMemoryStore("identity-1")),
	)
	require.NoError(t, err)

	assert.NotNil(t, p.Tracker)
	assert.NotNil(t, p.Metrics)
	assert.NotNil(t, p.Vitals)
	assert.NotNil(t, p.Errors)
	assert.NotNil(t, p.Experiments)
	assert.NotNil(t, p.Dashboard)
	assert.NotNil(t, p.DeliveryLog)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.Environment = "staging"

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestEndToEndEventFlow(t *testing.T) {
	source := &feedSource{}
	p, err := New(testConfig(),
		WithSink(&captureSink{}),
		WithIdentityStore(experiments.NewMemoryStore("identity-1")),
		WithVitalsSource(source),
	)
	require.NoError(t, err)

	p.Tracker.Track("page_view", map[string]any{"page": "home"})
	source.fn(vitals.Observation{Metric: vitals.LCP, Value: 1200})
	variant, err := p.Experiments.Enroll(context.Background(), "exp", []string{"a", "b"})
	require.NoError(t, err)
	p.Experiments.TrackConversion("exp", "click", 1)
	p.Errors.Capture(assert.AnError, nil)

	overview := p.Dashboard.Overview()
	assert.Equal(t, 5, overview.TotalEvents)
	assert.Equal(t, 1, overview.ErrorCount)
	assert.Equal(t, 1200.0, overview.Vitals["lcp"])
	assert.Equal(t, variant, overview.Experiments["exp"])

	// vitals samples mirror into the metric windows
	assert.Contains(t, p.Metrics.Summaries(), "web_vital_lcp")
}

func TestCloseEmitsSingleSessionEnd(t *testing.T) {
	source := &feedSource{}
	p, err := New(testConfig(),
		WithSink(&captureSink{}),
		WithIdentityStore(experiments.NewMemoryStore("identity-1")),
		WithVitalsSource(source),
	)
	require.NoError(t, err)

	source.fn(vitals.Observation{Metric: vitals.CLS, Value: 0.12})
	p.Close()
	p.Close()
	// vitals arriving after close are ignored
	source.fn(vitals.Observation{Metric: vitals.CLS, Value: 0.5})

	events := p.Tracker.Events()
	require.Len(t, events, 2)
	assert.Equal(t, telemetry.EventWebVital, events[0].Name)
	assert.Equal(t, "cls", events[0].Properties["metric"])
	assert.Equal(t, telemetry.EventSessionEnd, events[1].Name)
}

func TestDefaultPipelineAbsorbsBadSamples(t *testing.T) {
	// development pipelines log invariant violations loudly but must never
	// raise into the host
	p, err := New(config.Default(),
		WithSink(&captureSink{}),
		WithIdentityStore(experiments.NewMemoryStore("identity-1")),
	)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		p.Metrics.Record("load", math.NaN())
	})
	assert.Empty(t, p.Metrics.Samples("load"))
}

func TestPipelinesAreIsolated(t *testing.T) {
	a, err := New(testConfig(),
		WithSink(&captureSink{}),
		WithIdentityStore(experiments.NewMemoryStore("identity-a")),
	)
	require.NoError(t, err)
	b, err := New(testConfig(),
		WithSink(&captureSink{}),
		WithIdentityStore(experiments.NewMemoryStore("identity-b")),
	)
	require.NoError(t, err)

	a.Tracker.Track("only_a", nil)

	assert.Len(t, a.Tracker.Events(), 1)
	assert.Empty(t, b.Tracker.Events())
	assert.NotEqual(t, a.Tracker.SessionID(), b.Tracker.SessionID())
}
