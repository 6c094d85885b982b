package middleware

import (
	"context"
	"sync"
	"time"
)

// RateLimitConfig defines rate limiting behavior
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// IngestRateLimitConfig returns limits sized for event ingestion. Clients
// deliver one request per event, so the window is generous.
func IngestRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 600,
		WindowDuration:    time.Minute,
		BurstSize:         60,
	}
}

// TokenBucketLimiter rate limits per key with in-process token buckets
type TokenBucketLimiter struct {
	config  *RateLimitConfig
	mu      sync.RWMutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	mu         sync.Mutex
	tokens     int
	lastUpdate time.Time
}

// NewTokenBucketLimiter creates a limiter with the given config. A nil
// config uses the ingestion defaults.
func NewTokenBucketLimiter(config *RateLimitConfig) *TokenBucketLimiter {
	if config == nil {
		config = IngestRateLimitConfig()
	}
	return &TokenBucketLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// SetClock overrides the clock, for tests
func (rl *TokenBucketLimiter) SetClock(now func() time.Time) {
	rl.now = now
}

// Config returns the limiter's configuration
func (rl *TokenBucketLimiter) Config() *RateLimitConfig {
	return rl.config
}

// Allow reports whether a request for key may proceed, consuming one token
func (rl *TokenBucketLimiter) Allow(_ context.Context, key string) (bool, error) {
	maxTokens := rl.config.RequestsPerWindow + rl.config.BurstSize

	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: maxTokens, lastUpdate: rl.now()}
		rl.buckets[key] = b
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	now := rl.now()
	elapsed := now.Sub(b.lastUpdate)
	refill := int(elapsed.Seconds() * float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds())
	if refill > 0 {
		b.tokens += refill
		if b.tokens > maxTokens {
			b.tokens = maxTokens
		}
		b.lastUpdate = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true, nil
	}
	return false, nil
}

// Remaining returns the tokens left for key
func (rl *TokenBucketLimiter) Remaining(_ context.Context, key string) (int, error) {
	rl.mu.RLock()
	b, ok := rl.buckets[key]
	rl.mu.RUnlock()
	if !ok {
		return rl.config.RequestsPerWindow + rl.config.BurstSize, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens, nil
}

// Cleanup drops buckets idle for two windows
func (rl *TokenBucketLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-2 * rl.config.WindowDuration)
	for key, b := range rl.buckets {
		b.mu.Lock()
		if b.lastUpdate.Before(cutoff) {
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
}

// StartCleanup runs Cleanup once per window until ctx is done
func (rl *TokenBucketLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}
