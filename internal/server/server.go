// Package server provides the HTTP REST API for profile tailoring.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Multitrix/cv-to-job-description/internal/db"
	"github.com/Multitrix/cv-to-job-description/internal/server/ratelimit"
	"github.com/Multitrix/cv-to-job-description/internal/types"
)

// Tailorer runs the tailoring pipeline for one user and job description
type Tailorer interface {
	Tailor(ctx context.Context, userID string, profile *types.Profile, jd types.JobDescription) (*types.TailoredProfile, error)
}

// Repository is the persistence surface the server needs. *db.DB satisfies
// it; a nil Repository disables the profile and run endpoints.
type Repository interface {
	SaveProfile(ctx context.Context, userID string, profile *types.Profile) error
	GetProfile(ctx context.Context, userID string) (*db.StoredProfile, error)
	DeleteProfile(ctx context.Context, userID string) error
	SaveRun(ctx context.Context, userID string, jd types.JobDescription, tailored *types.TailoredProfile) (uuid.UUID, error)
	ListRuns(ctx context.Context, userID string, limit int) ([]db.TailorRun, error)
}

// Config holds server configuration
type Config struct {
	Addr string
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	tailorer    Tailorer
	repo        Repository
	rateLimiter *ratelimit.Limiter
	log         *zap.Logger
}

// New creates a new server instance
func New(cfg Config, tailorer Tailorer, repo Repository, log *zap.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		tailorer:    tailorer,
		repo:        repo,
		rateLimiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		log:         log,
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Tailoring runs call generation backends
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler builds the full route and middleware chain. Exposed so tests can
// drive the server without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /tailor", s.handleTailor)

	mux.HandleFunc("PUT /profiles/{user_id}", s.handleSaveProfile)
	mux.HandleFunc("GET /profiles/{user_id}", s.handleGetProfile)
	mux.HandleFunc("DELETE /profiles/{user_id}", s.handleDeleteProfile)
	mux.HandleFunc("GET /profiles/{user_id}/runs", s.handleListRuns)

	return s.withRateLimit(s.withLogging(s.withCORS(mux)))
}

// Start begins listening for requests and blocks until an interrupt or
// termination signal triggers a graceful shutdown.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	s.log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.rateLimiter.Stop()
	s.log.Info("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

// withRateLimit adds per-client rate limiting
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r))
		if !allowed {
			if info.RetryAfter > 0 {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
			}
			s.errorResponse(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractClientID identifies a client by its IP address
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
