package middleware

import (
	"fmt"
	"net/http"

	"github.com/platinummonkey/beacon/pkg/httputil"
	"github.com/platinummonkey/beacon/pkg/observability"
)

// RateLimitMiddleware enforces a per-client rate limit on HTTP requests.
// Clients are keyed by session header when present, falling back to the
// client IP.
type RateLimitMiddleware struct {
	inMemory    *TokenBucketLimiter
	distributed *DistributedLimiter
	logger      *observability.Logger
}

// NewRateLimitMiddleware wraps an in-memory limiter
func NewRateLimitMiddleware(limiter *TokenBucketLimiter, logger *observability.Logger) *RateLimitMiddleware {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &RateLimitMiddleware{inMemory: limiter, logger: logger.WithField("component", "ratelimit")}
}

// NewDistributedRateLimitMiddleware wraps a Redis-backed limiter
func NewDistributedRateLimitMiddleware(limiter *DistributedLimiter, logger *observability.Logger) *RateLimitMiddleware {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &RateLimitMiddleware{distributed: limiter, logger: logger.WithField("component", "ratelimit")}
}

func (m *RateLimitMiddleware) config() *RateLimitConfig {
	if m.distributed != nil {
		return m.distributed.Config()
	}
	return m.inMemory.Config()
}

// Handler wraps next with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)

		var (
			allowed bool
			err     error
		)
		if m.distributed != nil {
			allowed, err = m.distributed.Allow(r.Context(), key)
		} else {
			allowed, err = m.inMemory.Allow(r.Context(), key)
		}
		if err != nil {
			// fail open; the limiter already allowed the request
			m.logger.WithError(err).Warn("rate limit check degraded")
		}

		cfg := m.config()
		if !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", cfg.WindowDuration.Seconds()))
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", "0")
			httputil.WriteErrorMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.RequestsPerWindow))
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the requester: session header first, then proxy
// headers, then the socket address.
func clientKey(r *http.Request) string {
	if session := r.Header.Get("X-Beacon-Session"); session != "" {
		return "session:" + session
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return "ip:" + forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return "ip:" + realIP
	}
	return "ip:" + r.RemoteAddr
}
