package collector

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/beacon/pkg/httputil"
	"github.com/platinummonkey/beacon/pkg/middleware"
	"github.com/platinummonkey/beacon/pkg/observability"
	"github.com/platinummonkey/beacon/pkg/telemetry"
)

// Server handles the collection HTTP API
type Server struct {
	store     EventStore
	logger    *observability.Logger
	metrics   *observability.Metrics
	apiKey    string
	rateLimit *middleware.RateLimitMiddleware
}

// ServerOption customizes a Server
type ServerOption func(*Server)

// WithServerLogger sets the diagnostics logger
func WithServerLogger(l *observability.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithServerMetrics counts ingested events and HTTP traffic
func WithServerMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithAPIKey requires X-Api-Key on ingestion requests
func WithAPIKey(key string) ServerOption {
	return func(s *Server) { s.apiKey = key }
}

// WithRateLimit applies per-client rate limiting to all routes
func WithRateLimit(m *middleware.RateLimitMiddleware) ServerOption {
	return func(s *Server) { s.rateLimit = m }
}

// NewServer creates a collection server over the given store
func NewServer(store EventStore, opts ...ServerOption) *Server {
	s := &Server{
		store:  store,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithField("component", "collector")
	return s
}

// Router builds the HTTP routes
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	if s.metrics != nil {
		r.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}
	if s.rateLimit != nil {
		r.Use(s.rateLimit.Handler)
	}
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/events", s.handleIngest).Methods(http.MethodPost)
	r.HandleFunc("/v1/events", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/v1/events/stats", s.handleStats).Methods(http.MethodGet)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIngest accepts one event per request, mirroring the client's
// per-event delivery model.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.apiKey != "" && r.Header.Get("X-Api-Key") != s.apiKey {
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "invalid api key")
		return
	}

	var event telemetry.Event
	if !httputil.ParseJSONOrError(w, r, &event) {
		return
	}
	if event.Name == "" {
		httputil.WriteValidationError(w, "event name is required")
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	id, err := s.store.Insert(r.Context(), event)
	if err != nil {
		s.logger.WithError(err).WithField("event", event.Name).Error("failed to store event")
		if s.metrics != nil {
			s.metrics.IngestTotal.WithLabelValues("error").Inc()
		}
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to store event")
		return
	}

	if s.metrics != nil {
		s.metrics.IngestTotal.WithLabelValues("ok").Inc()
	}
	httputil.WriteAccepted(w, map[string]any{"id": id})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", 100)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if limit < 1 || limit > 1000 {
		httputil.WriteValidationError(w, "limit must be between 1 and 1000")
		return
	}

	events, err := s.store.List(r.Context(), limit, offset)
	if err != nil {
		s.logger.WithError(err).Error("failed to list events")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("failed to aggregate events")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to aggregate events")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}
