// Package gateway provides the HTTP surface of the scheduler: definition
// and bulk-definition administration, execution history, the reconcile
// trigger, health and status probes, Prometheus metrics, and a live
// execution feed over WebSocket. It binds to loopback by default; admin
// routes are only mounted when auth is configured.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flemzord/chime/internal/config"
	"github.com/flemzord/chime/internal/runner"
	"github.com/flemzord/chime/internal/scheduling"
	"github.com/flemzord/chime/internal/store"
)

// Server is the HTTP server around the scheduling core.
type Server struct {
	cfg       config.ServerConfig
	store     *store.Store
	sched     *scheduling.Service
	hub       *runner.Hub
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a Server. hub and gatherer may be nil; the corresponding
// routes are not mounted.
func New(cfg config.ServerConfig, st *store.Store, sched *scheduling.Service, hub *runner.Hub, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		store:    st,
		sched:    sched,
		hub:      hub,
		gatherer: gatherer,
		logger:   logger,
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.startedAt = time.Now()

	s.server = &http.Server{
		Addr:         s.cfg.Bind,
		Handler:      s.buildRouter(),
		ReadTimeout:  s.cfg.ReadTimeout.Std(),
		WriteTimeout: s.cfg.WriteTimeout.Std(),
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		s.logger.Info("gateway listening", "addr", s.cfg.Bind)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully within the configured timeout.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout.Std())
	defer cancel()

	s.logger.Info("gateway shutting down")
	return s.server.Shutdown(shutdownCtx)
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a JSON error response: 404 for missing rows,
// 400 for everything else the caller classifies as a bad request.
func writeError(w http.ResponseWriter, err error, fallback int) {
	code := fallback
	if errors.Is(err, store.ErrNotFound) {
		code = http.StatusNotFound
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
