// Package cli provides the start-up steps shared by cmd/saveup,
// cmd/saveupctl and cmd/saveup-events.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"saveup/internal/amqp"
	"saveup/internal/backend"
	"saveup/internal/config"
	"saveup/internal/goals"
	"saveup/internal/log"
	"saveup/internal/persist"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
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

// SetupLogger builds the process logger from cfg, writing to out and,
// when LOG_FILE is set, a JSON copy to that file. The returned closer
// releases the file. The logger also becomes the slog default.
func SetupLogger(cfg *config.Config, out io.Writer, component string) (*log.Logger, func() error, error) {
	closer := func() error { return nil }

	var extra []io.Writer
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		extra = append(extra, f)
		closer = f.Close
	}

	logger := log.New(log.Config{
		Component: component,
		Handler:   log.NewHandler(out, log.ParseLevel(cfg.LogLevel), cfg.LogFormat, extra...),
	})
	log.SetDefault(logger)
	return logger, closer, nil
}

// App is a loaded goal store with the storage backend and optional event
// publisher behind it.
type App struct {
	Store  *goals.Store
	Sync   *persist.Synchronizer
	Events *amqp.Client

	backend *backend.BackendResult
	logger  *log.Logger
}

// OpenOptions tunes Open.
type OpenOptions struct {
	// Factory overrides the default backend factory.
	Factory backend.Factory
	// SkipEvents leaves AMQP publishing off even when configured.
	SkipEvents bool
}

// Open creates the configured backend, connects the event publisher when
// AMQP is configured and loads the goal set. A load failure is returned
// together with a usable App whose store carries the load error message.
func Open(ctx context.Context, cfg *config.Config, logger *log.Logger, opts OpenOptions) (*App, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	factory := opts.Factory
	if factory == nil {
		factory = backend.NewFactory(logger)
	}
	result, err := factory.CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", bcfg.Type, err)
	}

	app := &App{
		Sync:    persist.New(result.Store, cfg.StorageKey),
		backend: result,
		logger:  logger,
	}

	storeOpts := []goals.Option{goals.WithLogger(logger.WithComponent(log.ComponentGoals))}
	if cfg.AMQPEnabled() && !opts.SkipEvents {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, goal events disabled",
				log.FieldError, err.Error())
		} else {
			app.Events = client
			storeOpts = append(storeOpts, goals.WithPublisher(client))
		}
	}

	app.Store = goals.NewStore(app.Sync, storeOpts...)
	if err := app.Store.Load(ctx); err != nil {
		return app, err
	}
	return app, nil
}

// Ready pings the storage backend.
func (a *App) Ready(ctx context.Context) error {
	return a.Sync.Ping(ctx)
}

// Close flushes the store and releases the backend and the publisher.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush goals: %w", err))
		}
	}
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close amqp: %w", err))
		}
	}
	if err := a.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close backend: %w", err))
	}
	return errors.Join(errs...)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
