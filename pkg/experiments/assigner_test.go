package experiments

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/beacon/pkg/telemetry"
)

type captureEmitter struct {
	mu     sync.Mutex
	userID *int64
	events []struct {
		name  string
		props map[string]any
	}
}

func (e *captureEmitter) Track(name string, properties map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, struct {
		name  string
		props map[string]any
	}{name, properties})
}

func (e *captureEmitter) UserID() *int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userID
}

func (e *captureEmitter) named(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	count := 0
	for _, ev := range e.events {
		if ev.name == name {
			count++
		}
	}
	return count
}

func TestEnrollAssignsAndEmits(t *testing.T) {
	emitter := &captureEmitter{}
	a := NewAssigner(NewMemoryStore("identity-1"), emitter)

	variant, err := a.Enroll(context.Background(), "new_checkout", []string{"control", "treatment"})
	require.NoError(t, err)
	assert.Contains(t, []string{"control", "treatment"}, variant)

	require.Len(t, emitter.events, 1)
	ev := emitter.events[0]
	assert.Equal(t, telemetry.EventEnrollment, ev.name)
	assert.Equal(t, "new_checkout", ev.props["experiment"])
	assert.Equal(t, variant, ev.props["variant"])
}

func TestEnrollIdempotent(t *testing.T) {
	emitter := &captureEmitter{}
	a := NewAssigner(NewMemoryStore("identity-1"), emitter)

	first, err := a.Enroll(context.Background(), "new_checkout", []string{"control", "treatment"})
	require.NoError(t, err)
	second, err := a.Enroll(context.Background(), "new_checkout", []string{"control", "treatment"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, emitter.named(telemetry.EventEnrollment))
}

func TestEnrollDeterministicAcrossInstances(t *testing.T) {
	variants := []string{"control", "treatment"}

	a := NewAssigner(NewMemoryStore("identity-1"), &captureEmitter{})
	b := NewAssigner(NewMemoryStore("identity-1"), &captureEmitter{})

	va, err := a.Enroll(context.Background(), "pricing_test", variants)
	require.NoError(t, err)
	vb, err := b.Enroll(context.Background(), "pricing_test", variants)
	require.NoError(t, err)

	assert.Equal(t, va, vb)
}

func TestEnrollKnownUserStableAcrossDevices(t *testing.T) {
	userID := int64(42)
	variants := []string{"control", "treatment"}

	// the same signed-in user on two devices with different anonymous ids
	a := NewAssigner(NewMemoryStore("device-a"), &captureEmitter{userID: &userID})
	b := NewAssigner(NewMemoryStore("device-b"), &captureEmitter{userID: &userID})

	va, err := a.Enroll(context.Background(), "pricing_test", variants)
	require.NoError(t, err)
	vb, err := b.Enroll(context.Background(), "pricing_test", variants)
	require.NoError(t, err)

	assert.Equal(t, va, vb)
	assert.Equal(t, Bucket("pricing_test", "42", variants), va)
}

func TestEnrollAnonymousFallsBackToStore(t *testing.T) {
	variants := []string{"control", "treatment"}
	a := NewAssigner(NewMemoryStore("identity-1"), &captureEmitter{})

	v, err := a.Enroll(context.Background(), "pricing_test", variants)
	require.NoError(t, err)
	assert.Equal(t, Bucket("pricing_test", "identity-1", variants), v)
}

func TestEnrollNoVariantsIsError(t *testing.T) {
	a := NewAssigner(NewMemoryStore("identity-1"), &captureEmitter{})

	_, err := a.Enroll(context.Background(), "broken", nil)
	assert.Error(t, err)
}

func TestVariantBeforeEnrollment(t *testing.T) {
	a := NewAssigner(NewMemoryStore("identity-1"), &captureEmitter{})

	_, ok := a.Variant("unknown")
	assert.False(t, ok)
}

func TestTrackConversion(t *testing.T) {
	emitter := &captureEmitter{}
	a := NewAssigner(NewMemoryStore("identity-1"), emitter)

	variant, err := a.Enroll(context.Background(), "new_checkout", []string{"control", "treatment"})
	require.NoError(t, err)

	a.TrackConversion("new_checkout", "purchase", 19.99)

	require.Equal(t, 1, emitter.named(telemetry.EventConversion))
	ev := emitter.events[len(emitter.events)-1]
	assert.Equal(t, "new_checkout", ev.props["experiment"])
	assert.Equal(t, variant, ev.props["variant"])
	assert.Equal(t, "purchase", ev.props["type"])
	assert.Equal(t, 19.99, ev.props["value"])
}

func TestTrackConversionWithoutValue(t *testing.T) {
	emitter := &captureEmitter{}
	a := NewAssigner(NewMemoryStore("identity-1"), emitter)

	_, err := a.Enroll(context.Background(), "exp", []string{"a", "b"})
	require.NoError(t, err)
	a.TrackConversion("exp", "signup")

	ev := emitter.events[len(emitter.events)-1]
	_, hasValue := ev.props["value"]
	assert.False(t, hasValue)
}

func TestTrackConversionUnenrolledIsNoop(t *testing.T) {
	emitter := &captureEmitter{}
	a := NewAssigner(NewMemoryStore("identity-1"), emitter)

	a.TrackConversion("never_enrolled", "purchase", 1)

	assert.Empty(t, emitter.events)
}

func TestConcurrentEnrollSingleEvent(t *testing.T) {
	emitter := &captureEmitter{}
	a := NewAssigner(NewMemoryStore("identity-1"), emitter)

	var wg sync.WaitGroup
	variants := make([]string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := a.Enroll(context.Background(), "race", []string{"a", "b"})
			assert.NoError(t, err)
			variants[i] = v
		}(i)
	}
	wg.Wait()

	for _, v := range variants {
		assert.Equal(t, variants[0], v)
	}
	assert.Equal(t, 1, emitter.named(telemetry.EventEnrollment))
}
