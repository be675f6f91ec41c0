package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mattgrayson/pulselink/internal/config"
	"github.com/mattgrayson/pulselink/internal/metrics"
	"github.com/mattgrayson/pulselink/internal/ratelimit"
	"github.com/mattgrayson/pulselink/internal/session"
	"github.com/mattgrayson/pulselink/internal/ws"
)

// Server is the HTTP front for the relay: the WebSocket endpoint, a
// health check, and optionally a metrics endpoint.
type Server struct {
	addr          string
	mux           *http.ServeMux
	registry      *session.Registry
	sweepInterval time.Duration
	limiter       ratelimit.Limiter
	metrics       *metrics.Metrics
}

// Option configures a Server.
type Option func(*Server)

// WithLimiter gates WebSocket connection attempts per client IP.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithMetrics wires Prometheus collectors and serves them on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a Server from the given configuration.
func New(cfg config.Config, opts ...Option) *Server {
	s := &Server{
		addr:          cfg.ListenAddr,
		mux:           http.NewServeMux(),
		sweepInterval: time.Duration(cfg.SweepInterval),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registry = session.NewRegistry(
		session.WithCapacity(cfg.SessionCapacity),
		session.WithIdleTimeout(time.Duration(cfg.IdleTimeout)),
		session.WithOnReap(s.metrics.SessionsReaped),
	)

	wsOpts := []ws.Option{ws.WithOriginPatterns(cfg.AllowedOrigins)}
	if s.limiter != nil {
		wsOpts = append(wsOpts, ws.WithLimiter(s.limiter))
	}
	if s.metrics != nil {
		wsOpts = append(wsOpts, ws.WithMetrics(s.metrics))
	}
	s.routes(ws.NewHandler(s.registry, wsOpts...))

	return s
}

// Registry returns the server's session registry.
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// Run starts the idle reaper and serves HTTP until the listener fails.
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.registry.Run(ctx, s.sweepInterval)

	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) routes(wsHandler *ws.Handler) {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /ws/{target}", wsHandler)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
