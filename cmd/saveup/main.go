package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"saveup/internal/cli"
	apphttp "saveup/internal/http"
	"saveup/internal/log"
	"saveup/internal/persist"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "saveup:", err)
		os.Exit(1)
	}
}

func run() error {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := cli.SetupLogger(cfg, os.Stdout, log.ComponentApp)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	app, err := cli.Open(ctx, cfg, logger, cli.OpenOptions{})
	switch {
	case errors.Is(err, persist.ErrLoad):
		// The store stays usable and shows the load failure to clients.
		logger.Error("Starting with an empty goal set", log.FieldError, err.Error())
	case err != nil:
		return err
	}

	srv := apphttp.NewServer(":"+cfg.Port, app.Store, apphttp.Options{
		Logger:             logger,
		Ready:              app.Ready,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting saveup server",
			"port", cfg.Port,
			log.FieldBackend, cfg.StorageBackend,
			log.FieldStorageKey, cfg.StorageKey,
			"events", app.Events != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
		if err := app.Close(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with errors", log.FieldError, err.Error())
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
