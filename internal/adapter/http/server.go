// Package http exposes the service over HTTP: health and metrics endpoints,
// the pull-based presentation surface for map markers and charts, and a push
// endpoint that injects raw notifications into the ingest pipeline.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sperola37/smoke-watching/internal/domain"
	"github.com/sperola37/smoke-watching/internal/ingest"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// WatchPointLister supplies the current canonical watch-point state.
type WatchPointLister interface {
	Snapshot() []domain.WatchPoint
}

// StatsComputer produces aggregate views over the alert history.
type StatsComputer interface {
	ComputeSnapshot(ctx context.Context, now time.Time, windowDays int) (domain.AggregateSnapshot, error)
}

// EventSink accepts raw events for asynchronous processing.
type EventSink interface {
	Inject(event domain.RawEvent) error
}

// Server exposes health, metrics, presentation, and injection endpoints.
type Server struct {
	httpServer *http.Server
	points     WatchPointLister
	stats      StatsComputer
	sink       EventSink
	logger     *slog.Logger
}

// NewServer wires all routes. points, stats, and sink may be nil in tests
// that only exercise the health endpoints; the corresponding routes then
// respond 503.
func NewServer(addr string, ready ReadinessChecker, points WatchPointLister, stats StatsComputer, sink EventSink, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		points: points,
		stats:  stats,
		sink:   sink,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /watchpoints", s.handleWatchPoints)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("POST /events", s.handleInject)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleWatchPoints(w http.ResponseWriter, _ *http.Request) {
	if s.points == nil {
		writeError(w, http.StatusServiceUnavailable, "registry unavailable")
		return
	}
	points := s.points.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":       len(points),
		"watchpoints": points,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "stats unavailable")
		return
	}

	windowDays := 0
	if raw := r.URL.Query().Get("window_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "window_days must be a positive integer")
			return
		}
		windowDays = parsed
	}

	snapshot, err := s.stats.ComputeSnapshot(r.Context(), time.Now(), windowDays)
	if err != nil {
		s.logger.Error("stats snapshot failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleInject accepts a raw notification payload and queues it for the
// ingest loop. The body is not validated here; malformed payloads are
// rejected by the normalizer with the same semantics as any other channel.
func (s *Server) handleInject(w http.ResponseWriter, r *http.Request) {
	if s.sink == nil {
		writeError(w, http.StatusServiceUnavailable, "ingest unavailable")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}

	event := domain.RawEvent{
		Value:     body,
		Timestamp: time.Now().UTC(),
	}
	if err := s.sink.Inject(event); err != nil {
		if errors.Is(err, ingest.ErrSourceFull) {
			writeError(w, http.StatusTooManyRequests, "ingest buffer is full")
			return
		}
		s.logger.Error("event injection failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to queue event")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
