package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/lyftr/webhookd/internal/messages"
	"github.com/lyftr/webhookd/internal/metrics"
)

// MessageStore defines the repository operations the API depends on.
type MessageStore interface {
	Insert(ctx context.Context, m messages.Message) (bool, error)
	List(ctx context.Context, f messages.ListFilter) ([]messages.Message, int, error)
	Stats(ctx context.Context) (messages.Stats, error)
	Ping(ctx context.Context) bool
}

// Config holds API server configuration.
type Config struct {
	Listen string
	// WebhookSecret signs inbound webhook bodies. Empty fails readiness and
	// rejects every webhook request.
	WebhookSecret string
}

// Server is the HTTP surface: webhook ingestion, listing, stats, health
// probes, and metrics exposition.
type Server struct {
	config  Config
	store   MessageStore
	metrics *metrics.Registry
	logger  *slog.Logger
	server  *http.Server
}

// New creates a new API server instance.
func New(config Config, store MessageStore, reg *metrics.Registry, logger *slog.Logger) *Server {
	return &Server{
		config:  config,
		store:   store,
		metrics: reg,
		logger:  logger,
	}
}

// Start starts the HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("api server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Post("/webhook", s.handleWebhook)
	r.Get("/messages", s.handleMessages)
	r.Get("/stats", s.handleStats)
	r.Get("/health/live", s.handleHealthLive)
	r.Get("/health/ready", s.handleHealthReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	return r
}

type contextKey string

const requestIDKey contextKey = "request_id"

// requestIDMiddleware assigns each request a correlation id and echoes it in
// the X-Request-ID response header.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestID returns the correlation id assigned by requestIDMiddleware.
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// loggingMiddleware emits one structured record and one counter/latency
// observation per finished request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		s.logger.Info("http request",
			"request_id", requestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"latency_ms", elapsed.Milliseconds(),
		)
		s.metrics.RecordHTTPRequest(r.URL.Path, r.Method, ww.Status(), elapsed)
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError sends a JSON error response naming the failure reason.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
