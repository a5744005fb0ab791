// Package worker serves the cluster side of the operation protocol: the
// same built-in dataset operations the local engine runs in-process, exposed
// over HTTP for the distributed engine to call.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"switchyard/internal/dataset"
	"switchyard/internal/engine"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 60 * time.Second

	// maxBodySize bounds operation payloads; dataset rows travel inline.
	maxBodySize = 8 << 20
)

// Server hosts the worker's HTTP surface.
type Server struct {
	router   *chi.Mux
	handlers map[string]engine.Handler
	logger   *slog.Logger
	addr     string
}

// NewServer creates a worker server with the built-in dataset operations.
func NewServer(addr string, logger *slog.Logger) *Server {
	srv := &Server{
		router: chi.NewRouter(),
		handlers: map[string]engine.Handler{
			dataset.OpAggregate: dataset.Aggregate,
			dataset.OpFilter:    dataset.Filter,
			dataset.OpSort:      dataset.Sort,
		},
		logger: logger,
		addr:   addr,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)

	srv.router.Get("/healthz", srv.handleHealthz)
	srv.router.Post("/v1/ops/{name}", srv.handleOp)

	return srv
}

// Router returns the chi router, used by tests and by embedding callers.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("worker listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("worker error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("worker stopped")
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleOp runs one named operation over the request body. Unknown
// operations are 404; operation failures surface as 422 with the error text
// so the distributed engine can propagate it verbatim.
func (s *Server) handleOp(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	h, ok := s.handlers[name]
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("unknown operation %q", name),
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	args, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read request body"})
		return
	}

	result, err := h(r.Context(), args)
	if err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result); err != nil {
		s.logger.Error("write op response", "operation", name, "error", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}
