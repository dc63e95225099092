package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fabian4/Soft-Demo/pkg/echo"
	"github.com/fabian4/Soft-Demo/pkg/logging"
	customMiddleware "github.com/fabian4/Soft-Demo/pkg/middleware"
)

// StatsSource is implemented by *echo.Stats.
type StatsSource interface {
	Snapshot() echo.Snapshot
}

// HTTPServer exposes health and counters of a running echo server.
type HTTPServer struct {
	addr  string
	stats StatsSource
	srv   *http.Server
}

func NewHTTPServer(addr string, stats StatsSource) *HTTPServer {
	s := &HTTPServer{addr: addr, stats: stats}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.LoggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	return r
}

// Start blocks until the server stops. A clean Shutdown returns nil.
func (s *HTTPServer) Start() error {
	logging.LogInfo("[HTTP] Status server listening on %s", s.addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.stats.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status":         "healthy",
		"uptime_seconds": int64(snap.Uptime.Seconds()),
	})
}
