package collector

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/platinummonkey/beacon/pkg/telemetry"
)

// StoredEvent is one ingested event with storage metadata
type StoredEvent struct {
	ID         int64           `json:"id"`
	Event      telemetry.Event `json:"event"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Stats aggregates the stored events
type Stats struct {
	TotalEvents   int64            `json:"total_events"`
	CountsByName  map[string]int64 `json:"counts_by_name"`
	UniqueSession int64            `json:"unique_sessions"`
}

// EventStore persists ingested events
type EventStore interface {
	// Insert stores one event and returns its assigned ID
	Insert(ctx context.Context, event telemetry.Event) (int64, error)
	// List returns stored events in insertion order, newest last
	List(ctx context.Context, limit, offset int) ([]StoredEvent, error)
	// Since returns events received at or after the given time
	Since(ctx context.Context, since time.Time) ([]StoredEvent, error)
	// Stats aggregates the stored events
	Stats(ctx context.Context) (Stats, error)
	// Close releases store resources
	Close() error
}

// MemoryStore is an EventStore backed by process memory. It is the default
// for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	events []StoredEvent
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// SetClock overrides the clock, for tests
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Insert implements EventStore
func (s *MemoryStore) Insert(_ context.Context, event telemetry.Event) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.events = append(s.events, StoredEvent{
		ID:         s.nextID,
		Event:      event,
		ReceivedAt: s.now(),
	})
	return s.nextID, nil
}

// List implements EventStore
func (s *MemoryStore) List(_ context.Context, limit, offset int) ([]StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset >= len(s.events) {
		return nil, nil
	}
	end := len(s.events)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]StoredEvent, end-offset)
	copy(out, s.events[offset:end])
	return out, nil
}

// Since implements EventStore
func (s *MemoryStore) Since(_ context.Context, since time.Time) ([]StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []StoredEvent
	for _, ev := range s.events {
		if !ev.ReceivedAt.Before(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Stats implements EventStore
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalEvents:  int64(len(s.events)),
		CountsByName: make(map[string]int64),
	}
	sessions := make(map[string]struct{})
	for _, ev := range s.events {
		stats.CountsByName[ev.Event.Name]++
		if ev.Event.SessionID != "" {
			sessions[ev.Event.SessionID] = struct{}{}
		}
	}
	stats.UniqueSession = int64(len(sessions))
	return stats, nil
}

// Close implements EventStore
func (s *MemoryStore) Close() error { return nil }

// names returns the distinct event names, sorted. Used in tests.
func (s *MemoryStore) names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, ev := range s.events {
		seen[ev.Event.Name] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
