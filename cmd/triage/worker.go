package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/spf13/cobra"

	"github.com/udupa-navya/cf-feedback-agent/internal/config"
	"github.com/udupa-navya/cf-feedback-agent/internal/jobs"
)

const shutdownTimeout = 30 * time.Second

var errRiverDisabled = errors.New("RIVER_ENABLED is false: set RIVER_ENABLED=true to run the digest worker")

// workerCmd runs scheduled digest passes
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run digest passes on a schedule",
	Long: `Start a River worker that runs a digest pass every DIGEST_INTERVAL hours, plus one at
startup, and any pass requested with "triage enqueue". Stops on SIGINT or SIGTERM after the
running pass finishes. Requires RIVER_ENABLED=true.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if !cfg.RiverEnabled {
		return errRiverDisabled
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, db, postgresStores(db), true)
	if err != nil {
		db.Close()

		return err
	}
	defer a.shutdown(context.WithoutCancel(ctx))

	riverClient, err := initRiver(ctx, db, cfg, jobs.NewDigestWorker(a.triage))
	if err != nil {
		return err
	}

	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("start River: %w", err)
	}

	slog.Info("digest worker started",
		"workers", cfg.RiverWorkers,
		"interval", cfg.DigestInterval,
	)

	<-ctx.Done()

	slog.Info("stopping digest worker...")

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	// Waits for a running pass to complete.
	if err := riverClient.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop River: %w", err)
	}

	slog.Info("digest worker stopped")

	return nil
}

// migrateRiver brings River's own tables up to date.
func migrateRiver(ctx context.Context, db *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(db), nil)
	if err != nil {
		return fmt.Errorf("create River migrator: %w", err)
	}

	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("migrate River: %w", err)
	}

	if len(res.Versions) > 0 {
		slog.Info("River migrated", "versions", len(res.Versions))
	}

	return nil
}

// initRiver initializes the River client with the digest worker and its periodic schedule.
func initRiver(
	ctx context.Context, db *pgxpool.Pool, cfg *config.Config, digestWorker *jobs.DigestWorker,
) (*river.Client[pgx.Tx], error) {
	if err := migrateRiver(ctx, db); err != nil {
		return nil, err
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, digestWorker)

	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.RiverWorkers},
		},
		Workers:      workers,
		PeriodicJobs: []*river.PeriodicJob{jobs.PeriodicDigestJob(cfg.DigestInterval)},
		ErrorHandler: &jobs.ErrorHandler{},
		MaxAttempts:  jobs.DigestMaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}

	return riverClient, nil
}
