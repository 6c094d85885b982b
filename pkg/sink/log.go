package sink

import (
	"context"

	"github.com/platinummonkey/beacon/pkg/observability"
	"github.com/platinummonkey/beacon/pkg/telemetry"
)

// LogSink writes events to the structured log instead of the network. It is
// the default delivery target outside production.
type LogSink struct {
	logger *observability.Logger
}

// NewLogSink creates a sink logging events at debug level
func NewLogSink(logger *observability.Logger) *LogSink {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &LogSink{logger: logger.WithField("component", "log_sink")}
}

// Deliver implements telemetry.Sink
func (s *LogSink) Deliver(_ context.Context, event telemetry.Event) error {
	s.logger.WithFields(map[string]any{
		"event":      event.Name,
		"session_id": event.SessionID,
		"timestamp":  event.Timestamp,
		"properties": event.Properties,
	}).Debug("event tracked")
	return nil
}
