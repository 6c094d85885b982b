package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/platinummonkey/beacon/pkg/collector"
	"github.com/platinummonkey/beacon/pkg/observability"
)

// EventSource yields events received since a given time.
// collector.EventStore satisfies it.
type EventSource interface {
	Since(ctx context.Context, since time.Time) ([]collector.StoredEvent, error)
}

// Archiver snapshots newly received events into object storage. Each Run
// covers the window since the previous successful run.
type Archiver struct {
	mu      sync.Mutex
	lastRun time.Time

	source   EventSource
	uploader Uploader
	prefix   string
	logger   *observability.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// ArchiverOption customizes an Archiver
type ArchiverOption func(*Archiver)

// WithArchiverLogger sets the diagnostics logger
func WithArchiverLogger(l *observability.Logger) ArchiverOption {
	return func(a *Archiver) { a.logger = l }
}

// WithArchiverMetrics counts archive runs in the process metrics
func WithArchiverMetrics(m *observability.Metrics) ArchiverOption {
	return func(a *Archiver) { a.metrics = m }
}

// WithArchiverClock overrides the clock, for tests
func WithArchiverClock(now func() time.Time) ArchiverOption {
	return func(a *Archiver) { a.now = now }
}

// NewArchiver creates an archiver writing under the given key prefix
func NewArchiver(source EventSource, uploader Uploader, prefix string, opts ...ArchiverOption) *Archiver {
	a := &Archiver{
		source:   source,
		uploader: uploader,
		prefix:   prefix,
		logger:   observability.NopLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.WithField("component", "archiver")
	a.lastRun = a.now()
	return a
}

// Run archives events received since the last successful run. An empty
// window uploads nothing. Concurrent runs are serialized.
func (a *Archiver) Run(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	since := a.lastRun
	runAt := a.now()

	events, err := a.source.Since(ctx, since)
	if err != nil {
		a.observeRun("error")
		return fmt.Errorf("failed to read events for archive: %w", err)
	}
	if len(events) == 0 {
		a.logger.Debug("no new events to archive")
		a.lastRun = runAt
		a.observeRun("empty")
		return nil
	}

	body, err := encodeNDJSON(events)
	if err != nil {
		a.observeRun("error")
		return err
	}

	key := a.objectKey(runAt)
	if err := a.uploader.Upload(ctx, key, body, "application/x-ndjson"); err != nil {
		a.observeRun("error")
		return err
	}

	a.lastRun = runAt
	a.logger.WithFields(map[string]any{
		"key":    key,
		"events": len(events),
	}).Info("archived events")
	a.observeRun("ok")
	return nil
}

// objectKey lays archives out by UTC date: prefix/2006/01/02/150405.ndjson
func (a *Archiver) objectKey(at time.Time) string {
	return fmt.Sprintf("%s/%s.ndjson", a.prefix, at.UTC().Format("2006/01/02/150405"))
}

func (a *Archiver) observeRun(result string) {
	if a.metrics != nil {
		a.metrics.ArchiveRunsTotal.WithLabelValues(result).Inc()
	}
}

func encodeNDJSON(events []collector.StoredEvent) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return nil, fmt.Errorf("failed to encode event %d: %w", ev.ID, err)
		}
	}
	return buf.Bytes(), nil
}
