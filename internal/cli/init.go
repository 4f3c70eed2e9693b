// Package cli provides common CLI initialization utilities shared by
// cmd/catchup and cmd/recurring-worker.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"raqam/internal/backend"
	"raqam/internal/config"
	"raqam/internal/log"
	"raqam/internal/services"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger initializes structured logging at the given level and sets it
// as the process default.
func SetupLogger(level string) *log.Logger {
	lvl := log.ParseLevel(level)
	logger := log.New(log.Config{
		Level:     lvl,
		Component: log.ComponentApp,
		Handler:   slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}),
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig reads and validates the environment configuration.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenStore opens the data backend selected by cfg. The returned close
// function releases it.
func OpenStore(logger *log.Logger, cfg *config.Config) (services.Store, func() error, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		return nil, nil, err
	}
	return res.Store, res.Cleanup, nil
}

// Engine bundles the catch-up components that share one store and one set
// of owner locks.
type Engine struct {
	Processor *services.SerializedProcessor
	Sweeper   *services.Sweeper
	Adjuster  *services.BudgetAdjuster
}

// NewEngine wires the catch-up processor, budget adjuster and sweeper.
func NewEngine(store services.Store, cfg *config.Config, logger *log.Logger) *Engine {
	adjuster := services.NewBudgetAdjuster(store, logger, cfg.StorageTimeout)
	processor := services.NewCatchUpProcessor(store, adjuster, services.ProcessorConfig{
		StorageTimeout:           cfg.StorageTimeout,
		CheckpointEachOccurrence: cfg.CheckpointEachOccurrence,
	}, logger)
	serialized := services.NewSerializedProcessor(processor, services.NewOwnerLocks())

	return &Engine{
		Processor: serialized,
		Sweeper:   services.NewSweeper(store, serialized, cfg.SweepConcurrency, logger),
		Adjuster:  adjuster,
	}
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs after cancellation and is bounded by timeout; done closes when it
// has finished.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
