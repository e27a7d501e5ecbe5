package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	coretemplate "github.com/artpar/honeymesh/internal/core/template"
	"github.com/artpar/honeymesh/internal/shell/api"
	"github.com/artpar/honeymesh/internal/shell/docker"
	"github.com/artpar/honeymesh/internal/shell/orchestrator"
	"github.com/artpar/honeymesh/internal/shell/store"
	"github.com/artpar/honeymesh/internal/shell/template"
	"github.com/artpar/honeymesh/internal/shell/workers"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitDockerError     = 3
	ExitHTTPServerError = 4
)

// =============================================================================
// Server
// =============================================================================

// Server represents the honeymesh application server.
type Server struct {
	config        *Config
	httpServer    *http.Server
	store         store.Store
	docker        docker.Client
	manager       *orchestrator.Manager
	healthMonitor *workers.HealthMonitor
	logger        *slog.Logger
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	// Connect to the registry database
	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	// Connect to Docker
	d, err := docker.NewDockerClient(cfg.Docker.Host)
	if err != nil {
		s.Close()
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDockerError,
		}
	}

	// Verify Docker connection
	if err := d.Ping(); err != nil {
		s.Close()
		d.Close()
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDockerError,
		}
	}

	// Make sure the deployment data directory exists
	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		s.Close()
		d.Close()
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitConfigError,
		}
	}

	// Register the built-in industry templates
	if cfg.Templates.SeedPresets {
		if err := seedPresets(context.Background(), s, logger); err != nil {
			s.Close()
			d.Close()
			return nil, &ServerError{
				Op:       "NewServer",
				Err:      err,
				ExitCode: ExitDatabaseError,
			}
		}
	}

	// Create the deployment manager
	engine := template.NewEngine(logger)
	manager := orchestrator.NewManager(s, d, engine, logger, cfg.Ops.MaxConcurrent)

	// Settle deployments a previous daemon left mid-operation
	if err := manager.Reconcile(context.Background()); err != nil {
		s.Close()
		d.Close()
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	// Create the health monitor
	healthMonitor := workers.NewHealthMonitor(s, d, manager, workers.HealthMonitorConfig{
		Interval:            cfg.Health.Interval,
		ProbeTimeout:        cfg.Health.ProbeTimeout,
		MissThreshold:       cfg.Health.MissThreshold,
		MaxConcurrent:       cfg.Health.MaxConcurrent,
		EscalationThreshold: cfg.Health.EscalationThreshold,
	}, logger)

	// Create the HTTP server
	handler := api.NewHandler(manager, logger, cfg.Data.Dir)
	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:        cfg,
		httpServer:    httpServer,
		store:         s,
		docker:        d,
		manager:       manager,
		healthMonitor: healthMonitor,
		logger:        logger,
	}, nil
}

// seedPresets registers every built-in template, skipping versions the
// registry already holds.
func seedPresets(ctx context.Context, s store.Store, logger *slog.Logger) error {
	presets, err := coretemplate.LoadPresets()
	if err != nil {
		return fmt.Errorf("failed to load preset templates: %w", err)
	}

	for _, tpl := range presets {
		now := time.Now().UTC()
		tpl.CreatedAt = now
		tpl.UpdatedAt = now

		if err := s.CreateTemplate(ctx, tpl); err != nil {
			if errors.Is(err, store.ErrDuplicateTemplate) {
				continue
			}
			return fmt.Errorf("failed to register preset %s: %w", tpl.Slug, err)
		}
		logger.Info("registered preset template",
			"slug", tpl.Slug,
			"version", tpl.Version,
		)
	}
	return nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start health monitor in background
	s.healthMonitor.Start()

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown HTTP server
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Stop health monitor
	s.healthMonitor.Stop()

	// Close Docker client
	if err := s.docker.Close(); err != nil {
		s.logger.Error("Docker client close error", "error", err)
	}

	// Close database
	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
