package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"minutes/internal/config"
	"minutes/internal/jobstate"
	"minutes/internal/logging"
	"minutes/internal/metrics"
	"minutes/internal/queue"
	"minutes/internal/services"
)

// Enqueuer schedules ingest tasks for uploaded recordings. *queue.Broker
// satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, task queue.Task) error
}

// Server serves the daemon's HTTP API.
type Server struct {
	bind       string
	uploadRoot string
	queue      Enqueuer
	jobs       *jobstate.Reader
	logger     *slog.Logger

	listener net.Listener
	server   *http.Server
}

// NewServer wires the API routes against the upload root and queue broker.
func NewServer(cfg *config.Config, broker Enqueuer, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "api", "configure", "config must not be nil", nil)
	}
	if broker == nil {
		return nil, services.Wrap(services.ErrConfiguration, "api", "configure", "queue broker must not be nil", nil)
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, services.Wrap(services.ErrConfiguration, "api", "configure", "api bind address must not be empty", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	srv := &Server{
		bind:       bind,
		uploadRoot: cfg.Paths.UploadDir,
		queue:      broker,
		jobs:       jobstate.NewReader(cfg.Paths.UploadDir, logger),
		logger:     logging.NewComponentLogger(logger, "api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/uploads", srv.instrument("/api/uploads", srv.handleUploads))
	mux.HandleFunc("/api/jobs", srv.instrument("/api/jobs", srv.handleJobs))
	mux.HandleFunc("/api/jobs/", srv.instrument("/api/jobs/{id}", srv.handleJob))
	mux.HandleFunc("/api/meetings", srv.instrument("/api/meetings", srv.handleMeetings))
	mux.HandleFunc("/api/meetings/", srv.instrument("/api/meetings/{id}", srv.handleMeeting))
	mux.HandleFunc("/health", srv.instrument("/health", srv.handleHealth))
	mux.Handle("/metrics", metrics.Handler())

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// Handler returns the route table for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving and shuts the server down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down outside of context cancellation.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr reports the bound listen address, or the configured bind before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

// instrument counts requests per route and status code.
func (s *Server) instrument(route string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		handler(recorder, r)
		metrics.RecordHTTPRequest(r.Method, route, recorder.code)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
