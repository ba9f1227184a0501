package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"onboarding/internal/platform/config"
	"onboarding/internal/platform/httpserver"
	"onboarding/internal/platform/logger"
)

// main wires dependencies and runs the HTTP server next to the background
// workers: the token sweeper and, with Kafka configured, the outbox relay and
// the registration consumer.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("onboarding stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	app, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := httpserver.New(cfg.Addr, app.router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, log)
	})
	g.Go(func() error {
		return ignoreCancel(app.tokens.StartSweeper(gctx, cfg.Verification.SweepInterval))
	})
	if app.relay != nil {
		g.Go(func() error {
			return ignoreCancel(app.relay.Run(gctx))
		})
	}
	if app.consumer != nil {
		g.Go(func() error {
			return ignoreCancel(app.consumer.Run(gctx))
		})
	}

	log.Info("starting onboarding",
		"addr", cfg.Addr,
		"durable", cfg.Durable(),
		"redis", cfg.Redis.URL != "",
		"kafka", len(cfg.Kafka.Brokers) > 0,
		"kms", cfg.Encryption.UsesKMS(),
	)
	return g.Wait()
}

func ignoreCancel(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
