// Package webserver implements the liveness/readiness HTTP server:
// /health/live and /health/ready, both returning 200 once config is
// loaded and the scheduler is running.
package webserver

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Server serves the health endpoints on a single port.
type Server struct {
	httpServer *http.Server
	ready      atomic.Bool
}

// New builds a Server listening on addr (e.g. ":8081"). The process is
// considered live as soon as the Server exists; SetReady marks it ready
// once the scheduler has started.
func New(addr string) *Server {
	s := &Server{}

	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", s.handleLive)
	mux.HandleFunc("/health/ready", s.handleReady)

	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// SetReady flips the readiness flag /health/ready reports.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Start serves in a background goroutine. Start itself does not block;
// call Shutdown to stop serving.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("webserver: %w", err)
			return
		}
		errCh <- nil
	}()
	return errCh
}

// Shutdown gracefully stops the server, waiting up to the context's
// deadline for in-flight requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// DefaultShutdownTimeout bounds how long main.go waits for Shutdown. It is
// separate from, and shorter than, the scheduler's shutdown grace period.
const DefaultShutdownTimeout = 5 * time.Second
