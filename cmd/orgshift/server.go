package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/orgshift/orgshift/internal/shell/api"
	"github.com/orgshift/orgshift/internal/shell/engine"
	"github.com/orgshift/orgshift/internal/shell/orgapi"
	"github.com/orgshift/orgshift/internal/shell/registry"
	"github.com/orgshift/orgshift/internal/shell/store"
	"github.com/orgshift/orgshift/internal/shell/usage"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitHTTPServerError = 3
)

// =============================================================================
// Server
// =============================================================================

// Server represents the OrgShift application server.
type Server struct {
	config     *Config
	httpServer *http.Server
	store      store.Store
	recorder   *usage.Recorder
	reporter   *usage.Reporter
	logger     *slog.Logger
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	encryptionKey := []byte(cfg.Security.EncryptionKey)
	if len(encryptionKey) != 32 {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      errors.New("security.encryption_key must be exactly 32 bytes for AES-256-GCM"),
			ExitCode: ExitConfigError,
		}
	}

	// Connect to database
	s, err := store.NewSQLiteStore(cfg.Database.DSN, encryptionKey)
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	// Seed built-in migration templates
	reg := registry.NewStoreRegistry(s, logger)
	if err := reg.Seed(context.Background()); err != nil {
		s.Close()
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	// Org API client shared by the pre-check and the rule engine
	orgClient := orgapi.NewHTTPClient(orgapi.Config{
		Timeout: cfg.OrgAPI.Timeout,
	})

	runner := engine.NewRunner(orgClient, logger)

	// Usage recorder persists events locally on every validation run
	recorder := usage.NewRecorder(s, usage.RecorderConfig{
		BufferSize: cfg.Analytics.BufferSize,
	}, logger)

	// Usage reporter ships recorded events upstream when analytics is enabled
	var reporter *usage.Reporter
	if cfg.Analytics.Enabled {
		var client usage.Client
		if cfg.Analytics.BaseURL != "" {
			client = usage.NewHTTPClient(usage.Config{
				BaseURL: cfg.Analytics.BaseURL,
				APIKey:  cfg.Analytics.APIKey,
			}, logger)
			logger.Info("analytics enabled", "base_url", cfg.Analytics.BaseURL)
		} else {
			client = usage.NewNoopClient(logger)
			logger.Warn("analytics enabled but no base URL configured, using no-op client")
		}

		reporter = usage.NewReporter(usage.ReporterConfig{
			Store:     s,
			Client:    client,
			Interval:  cfg.Analytics.ReportInterval,
			BatchSize: cfg.Analytics.BatchSize,
			Logger:    logger,
		})
	} else {
		logger.Info("analytics disabled")
	}

	handler := api.NewHandler(api.Config{
		Store:         s,
		Registry:      reg,
		Engine:        runner,
		OrgClient:     orgClient,
		Recorder:      recorder,
		Logger:        logger,
		Version:       Version,
		EngineTimeout: cfg.Engine.Timeout,
		ReconnectURL:  cfg.Engine.ReconnectURL,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		store:      s,
		recorder:   recorder,
		reporter:   reporter,
		logger:     logger,
	}, nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start usage recorder in background
	s.recorder.Start()

	// Start usage reporter in background
	if s.reporter != nil {
		go s.reporter.Start(ctx)
	}

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

	// Stop usage reporter
	if s.reporter != nil {
		s.reporter.Stop()
	}

	// Stop usage recorder, draining queued events
	s.recorder.Stop()

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
