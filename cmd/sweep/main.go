// Command sweep fails orders left in processing past FULFILLMENT_STALE_AFTER.
// It makes one pass and exits; run it from cron or a scheduled job.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/wander/internal"
	"github.com/dukerupert/wander/internal/postgres"
	"github.com/dukerupert/wander/internal/repository"
	"github.com/dukerupert/wander/internal/service"
	"github.com/dukerupert/wander/internal/telemetry"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel).With("cmd", "sweep")

	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:         cfg.Sentry.DSN,
		Enabled:     cfg.Sentry.Enabled,
		Environment: cfg.Sentry.Environment,
		Release:     cfg.Sentry.Release,
		SampleRate:  cfg.Sentry.SampleRate,
	}, logger)
	if err != nil {
		return err
	}
	defer flushSentry()

	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	ledger := postgres.NewOrderLedger(repository.New(pool))

	// The sweep never provisions, so no supplier client is needed.
	fulfillment := service.NewFulfillmentService(ledger, nil, nil, service.FulfillmentConfig{
		WriteAttempts: cfg.Fulfillment.WriteAttempts,
		WriteBackoff:  cfg.Fulfillment.WriteBackoff,
		StaleAfter:    cfg.Fulfillment.StaleAfter,
	}, logger)

	swept, err := fulfillment.SweepStaleProcessing(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed after %d orders: %w", swept, err)
	}
	logger.Info("Stale processing sweep finished", "failed_orders", swept, "stale_after", cfg.Fulfillment.StaleAfter)
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
