package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/eshaffer321/ledger-reconcile/internal/api/handlers"
	"github.com/eshaffer321/ledger-reconcile/internal/api/middleware"
	"github.com/eshaffer321/ledger-reconcile/internal/application/matching"
	"github.com/eshaffer321/ledger-reconcile/internal/application/session"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8085,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Dependencies are the application services the API serves.
// Repo may be nil; archive endpoints then report unavailable.
type Dependencies struct {
	Session      *session.Session
	Orchestrator *matching.Orchestrator
	Repo         storage.Repository
	Defaults     matcher.Config
	MinScore     float64
	Assisted     bool
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	deps       Dependencies
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg Config, deps Dependencies, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		router: chi.NewRouter(),
		logger: logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.Recoverer)

	// CORS
	corsConfig := middleware.DefaultCORSConfig()
	if len(s.config.AllowedOrigins) > 0 {
		corsConfig.AllowedOrigins = s.config.AllowedOrigins
	}
	s.router.Use(middleware.CORS(corsConfig))

	// Request logging
	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	healthHandler := handlers.NewHealthHandler(s.deps.Assisted)
	s.router.Get("/health", healthHandler.ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		// Matching run and review queue
		match := handlers.NewMatchHandler(s.deps.Session, s.deps.Orchestrator, s.deps.Defaults)
		r.Route("/match", func(r chi.Router) {
			r.Post("/set-transactions", match.SetTransactions)
			r.Post("/run", match.Run)
			r.Get("/status", match.Status)
			r.Post("/pause", match.Pause)
			r.Post("/resume", match.Resume)
			r.Post("/stop", match.Stop)
			r.Get("/next", match.Next)
			r.Post("/seek", match.Seek)
			r.Post("/action", match.Action)
			r.Get("/pending", match.Pending)
			r.Get("/stats", match.Stats)
			r.Get("/audit", match.Audit)
			r.Post("/confirmed/reject", match.RejectConfirmed)
			r.Post("/rejected/restore", match.RestoreRejected)
			r.Post("/rejected/approve", match.ApproveRejected)
		})

		// Exceptions
		exceptions := handlers.NewExceptionsHandler(s.deps.Session, s.deps.Defaults, s.deps.MinScore)
		r.Route("/exceptions", func(r chi.Router) {
			r.Get("/unmatched-ledger", exceptions.UnmatchedLedger)
			r.Get("/unmatched-bank", exceptions.UnmatchedBank)
			r.Get("/confirmed", exceptions.Confirmed)
			r.Get("/rejected", exceptions.Rejected)
			r.Get("/excluded", exceptions.Excluded)
			r.Post("/rerun", exceptions.Rerun)
		})

		// Downloads and archive
		exports := handlers.NewExportHandler(s.deps.Session, s.deps.Repo, s.logger)
		r.Route("/export", func(r chi.Router) {
			r.Get("/matches.csv", exports.Matches)
			r.Get("/unmatched-ledger.csv", exports.UnmatchedLedger)
			r.Get("/unmatched-bank.csv", exports.UnmatchedBank)
			r.Get("/audit.csv", exports.AuditCSV)
			r.Get("/audit.json", exports.AuditJSON)
			r.Get("/summary", exports.Summary)
			r.Post("/archive", exports.Archive)
		})

		// Archived runs (historical)
		if s.deps.Repo != nil {
			runs := handlers.NewRunsHandler(s.deps.Repo)
			r.Get("/runs", runs.List)
			r.Get("/runs/audit", runs.Audit)
			r.Get("/runs/{id}", runs.Get)
		}
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
