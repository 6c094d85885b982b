package pipeline

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/beacon/pkg/config"
	"github.com/platinummonkey/beacon/pkg/dashboard"
	"github.com/platinummonkey/beacon/pkg/errtrack"
	"github.com/platinummonkey/beacon/pkg/experiments"
	"github.com/platinummonkey/beacon/pkg/metrics"
	"github.com/platinummonkey/beacon/pkg/observability"
	"github.com/platinummonkey/beacon/pkg/sink"
	"github.com/platinummonkey/beacon/pkg/telemetry"
	"github.com/platinummonkey/beacon/pkg/vitals"
)

// Pipeline is a fully wired client telemetry pipeline. Instances are
// independent; nothing is shared between two pipelines.
type Pipeline struct {
	Tracker     *telemetry.Tracker
	Metrics     *metrics.Registry
	Vitals      *vitals.Observer
	Errors      *errtrack.Recorder
	Experiments *experiments.Assigner
	Dashboard   *dashboard.Aggregator
	DeliveryLog *sink.DeliveryLog

	logger      *observability.Logger
	redisClient *redis.Client
	closeOnce   sync.Once
}

type options struct {
	logger        *observability.Logger
	obsMetrics    *observability.Metrics
	sink          telemetry.Sink
	signals       telemetry.Signals
	vitalsSource  vitals.Source
	identityStore experiments.IdentityStore
	eventContext  telemetry.EventContext
	now           func() time.Time
}

// Option customizes pipeline assembly
type Option func(*options)

// WithLogger overrides the logger built from configuration
func WithLogger(l *observability.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObservabilityMetrics attaches process metrics counters
func WithObservabilityMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.obsMetrics = m }
}

// WithSink overrides the delivery sink built from configuration
func WithSink(s telemetry.Sink) Option {
	return func(o *options) { o.sink = s }
}

// WithSignals hooks the host's shutdown and fault streams
func WithSignals(s telemetry.Signals) Option {
	return func(o *options) { o.signals = s }
}

// WithVitalsSource hooks the host's performance observation stream
func WithVitalsSource(s vitals.Source) Option {
	return func(o *options) { o.vitalsSource = s }
}

// WithIdentityStore overrides the identity store built from configuration
func WithIdentityStore(s experiments.IdentityStore) Option {
	return func(o *options) { o.identityStore = s }
}

// WithEventContext sets the ambient context stamped onto every event
func WithEventContext(ctx telemetry.EventContext) Option {
	return func(o *options) { o.eventContext = ctx }
}

// WithClock overrides the clock, for tests
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New assembles a pipeline from configuration
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = observability.NewLogger(observability.ParseLogLevel(cfg.Observability.LogLevel), os.Stdout)
	}

	p := &Pipeline{
		DeliveryLog: sink.NewDeliveryLog(cfg.Pipeline.DeliveryLogSize),
		logger:      logger,
	}

	deliverySink := o.sink
	if deliverySink == nil {
		if cfg.Pipeline.Endpoint != "" {
			httpOpts := []sink.HTTPOption{}
			if cfg.Pipeline.APIKey != "" {
				httpOpts = append(httpOpts, sink.WithHeader("X-Api-Key", cfg.Pipeline.APIKey))
			}
			deliverySink = sink.NewHTTPSink(cfg.Pipeline.Endpoint, httpOpts...)
		} else {
			deliverySink = sink.NewLogSink(logger)
		}
	}
	deliverySink = sink.NewRecordingSink(deliverySink, p.DeliveryLog)

	p.Tracker = telemetry.NewTracker(telemetry.Options{
		Sink:            deliverySink,
		Logger:          logger,
		Metrics:         o.obsMetrics,
		Signals:         o.signals,
		Context:         o.eventContext,
		DeliveryTimeout: cfg.Pipeline.DeliveryTimeout,
		Now:             o.now,
	})

	registryOpts := []metrics.Option{
		metrics.WithEmitter(p.Tracker),
		metrics.WithLogger(logger),
		metrics.WithStrict(!cfg.IsProduction()),
	}
	if o.obsMetrics != nil {
		registryOpts = append(registryOpts, metrics.WithObservability(o.obsMetrics))
	}
	if o.now != nil {
		registryOpts = append(registryOpts, metrics.WithClock(o.now))
	}
	p.Metrics = metrics.NewRegistry(registryOpts...)

	p.Vitals = vitals.NewObserver(o.vitalsSource, p.Tracker,
		vitals.WithRecorder(p.Metrics),
		vitals.WithLogger(logger),
	)

	errOpts := []errtrack.RecorderOption{errtrack.WithLogger(logger)}
	if o.obsMetrics != nil {
		errOpts = append(errOpts, errtrack.WithMetrics(o.obsMetrics))
	}
	p.Errors = errtrack.NewRecorder(p.Tracker, errOpts...)

	identityStore := o.identityStore
	if identityStore == nil {
		if cfg.Pipeline.RedisAddr != "" {
			p.redisClient = redis.NewClient(&redis.Options{Addr: cfg.Pipeline.RedisAddr})
			identityStore = experiments.NewRedisStore(p.redisClient, cfg.Pipeline.RedisIdentityKey)
		} else {
			identityStore = experiments.NewFileStore(cfg.Pipeline.IdentityPath)
		}
	}
	assignerOpts := []experiments.AssignerOption{experiments.WithLogger(logger)}
	if o.obsMetrics != nil {
		assignerOpts = append(assignerOpts, experiments.WithMetrics(o.obsMetrics))
	}
	p.Experiments = experiments.NewAssigner(identityStore, p.Tracker, assignerOpts...)

	dashOpts := []dashboard.AggregatorOption{
		dashboard.WithMetricSource(p.Metrics),
		dashboard.WithVitalsSource(p.Vitals),
		dashboard.WithExperimentSource(p.Experiments),
		dashboard.WithErrorSource(p.Errors),
	}
	if o.now != nil {
		dashOpts = append(dashOpts, dashboard.WithClock(o.now))
	}
	p.Dashboard = dashboard.NewAggregator(p.Tracker, dashOpts...)

	logger.WithFields(map[string]any{
		"environment": cfg.Pipeline.Environment,
		"endpoint":    cfg.Pipeline.Endpoint,
		"session_id":  p.Tracker.SessionID(),
	}).Debug("telemetry pipeline assembled")

	return p, nil
}

// Close ends the session. Vitals observation stops first so nothing is
// reported after the session has ended, then the session_end event is
// emitted. Close is idempotent.
func (p *Pipeline) Close() {
	p.closeOnce.Do(func() {
		p.Vitals.Close()
		p.Tracker.Close()
		if p.redisClient != nil {
			if err := p.redisClient.Close(); err != nil {
				p.logger.WithError(err).Warn("failed to close redis client")
			}
		}
	})
}
