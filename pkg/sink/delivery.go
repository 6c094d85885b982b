package sink

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/platinummonkey/beacon/pkg/telemetry"
)

const defaultDeliveryLogSize = 256

// DeliveryRecord is one delivery attempt outcome
type DeliveryRecord struct {
	Event     string    `json:"event"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
	Duration  string    `json:"duration"`
	Error     string    `json:"error,omitempty"`
}

// DeliveryLog keeps the most recent delivery outcomes in a bounded LRU so a
// long-lived pipeline cannot grow it without limit.
type DeliveryLog struct {
	mu     sync.Mutex
	seq    atomic.Uint64
	cache  *lru.Cache[uint64, DeliveryRecord]
	failed atomic.Uint64
	total  atomic.Uint64
}

// NewDeliveryLog creates a delivery log holding up to size records. A
// non-positive size falls back to the default of 256.
func NewDeliveryLog(size int) *DeliveryLog {
	if size <= 0 {
		size = defaultDeliveryLogSize
	}
	cache, err := lru.New[uint64, DeliveryRecord](size)
	if err != nil {
		// lru.New only fails on a non-positive size
		panic(err)
	}
	return &DeliveryLog{cache: cache}
}

// Add records one delivery outcome
func (l *DeliveryLog) Add(rec DeliveryRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total.Add(1)
	if rec.Error != "" {
		l.failed.Add(1)
	}
	l.cache.Add(l.seq.Add(1), rec)
}

// Recent returns the retained records, oldest first
func (l *DeliveryLog) Recent() []DeliveryRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	keys := l.cache.Keys()
	out := make([]DeliveryRecord, 0, len(keys))
	for _, k := range keys {
		if rec, ok := l.cache.Peek(k); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Total returns the number of deliveries attempted since creation
func (l *DeliveryLog) Total() uint64 { return l.total.Load() }

// Failed returns the number of failed deliveries since creation
func (l *DeliveryLog) Failed() uint64 { return l.failed.Load() }

// RecordingSink wraps another sink and records every delivery outcome in a
// DeliveryLog. The wrapped sink's error is passed through unchanged.
type RecordingSink struct {
	next telemetry.Sink
	log  *DeliveryLog
}

// NewRecordingSink wraps next with delivery recording
func NewRecordingSink(next telemetry.Sink, log *DeliveryLog) *RecordingSink {
	if log == nil {
		log = NewDeliveryLog(0)
	}
	return &RecordingSink{next: next, log: log}
}

// DeliveryLog returns the log of recorded outcomes
func (s *RecordingSink) DeliveryLog() *DeliveryLog {
	return s.log
}

// Deliver implements telemetry.Sink
func (s *RecordingSink) Deliver(ctx context.Context, event telemetry.Event) error {
	start := time.Now()
	err := s.next.Deliver(ctx, event)

	rec := DeliveryRecord{
		Event:     event.Name,
		SessionID: event.SessionID,
		At:        start,
		Duration:  time.Since(start).String(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	s.log.Add(rec)
	return err
}
