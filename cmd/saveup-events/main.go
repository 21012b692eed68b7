package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"saveup/internal/amqp"
	"saveup/internal/backend"
	"saveup/internal/cache"
	"saveup/internal/cli"
	"saveup/internal/log"
	"saveup/internal/persist"
	"saveup/internal/worker"
)

const goalCacheTTL = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "saveup-events:", err)
		os.Exit(1)
	}
}

func run() error {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	if !cfg.AMQPEnabled() {
		return errors.New("AMQP_URL is required")
	}
	logger, closeLog, err := cli.SetupLogger(cfg, os.Stdout, log.ComponentEvents)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	// Goals are only read here, to name the goal behind milestone events.
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	storage, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return fmt.Errorf("create %s backend: %w", bcfg.Type, err)
	}
	defer storage.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return fmt.Errorf("connect amqp: %w", err)
	}
	defer client.Close()

	w := worker.NewEventWorker(persist.New(storage.Store, cfg.StorageKey), goalCacheTTL, logger)
	manager := cache.NewManager(time.Minute, logger)
	manager.Register("goals", w.Cache())

	logger.Info("Starting saveup-events",
		"queue", cfg.AMQPQueue,
		"exchange", cfg.AMQPExchange,
		log.FieldBackend, cfg.StorageBackend)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return manager.Run(gctx) })
	g.Go(func() error {
		err := client.Consume(gctx, w.HandleGoalEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err = g.Wait()
	stats := w.GetStats()
	logger.Info("Event consumer stopped",
		"processed", stats.Processed,
		"milestones", stats.Milestones,
		"failed", stats.Failed)
	return err
}
