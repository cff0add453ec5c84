// Package cli provides common initialization utilities shared by
// cmd/ledger, cmd/ledger-worker and cmd/ledgerctl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ledger/internal/backend"
	"ledger/internal/config"
	"ledger/internal/log"
)

// SetupLogger initializes structured logging at the LOG_LEVEL in the
// environment and installs it as the slog default.
func SetupLogger(component string) *log.Logger {
	logger := log.NewWithLevel(component, os.Getenv("LOG_LEVEL"))
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and runs validate against it,
// typically (*config.Config).Validate or ValidateWorker.
// Exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger, validate func(*config.Config) error) *config.Config {
	cfg := config.Load()
	if err := validate(cfg); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// OpenBackend builds the record store (and the optional event publisher)
// described by cfg.
func OpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("backend config: %w", err)
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", bcfg.Type, err)
	}
	return res, nil
}

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM.
func ShutdownContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown requested")
	}()
	return ctx, stop
}

// Shutdown runs fn with a context bounded by timeout, logging the outcome.
func Shutdown(logger *log.Logger, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Warn("Shutdown timeout reached", "timeout", timeout)
		}
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

// Fatal logs err and exits the process.
func Fatal(logger *log.Logger, msg string, err error, args ...any) {
	logger.Error(msg, append([]any{"error", err}, args...)...)
	os.Exit(1)
}
