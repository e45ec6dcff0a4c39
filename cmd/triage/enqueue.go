package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/spf13/cobra"

	"github.com/udupa-navya/cf-feedback-agent/internal/jobs"
)

// enqueueCmd asks a running worker for an extra digest pass
var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue a digest pass for the worker",
	Long: `Queue a digest pass for "triage worker" to pick up. If a pass is already queued or
running, the request is absorbed by it.`,
	Args: cobra.NoArgs,
	RunE: runEnqueue,
}

func runEnqueue(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrateRiver(ctx, db); err != nil {
		return err
	}

	// Insert-only client: no queues or workers.
	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{})
	if err != nil {
		return fmt.Errorf("create River client: %w", err)
	}

	return requestDigest(ctx, jobs.NewRiverJobInserter(riverClient))
}

// requestDigest queues one manually triggered digest pass.
func requestDigest(ctx context.Context, inserter jobs.JobInserter) error {
	if err := inserter.InsertDigestJob(ctx, jobs.DigestJobArgs{Trigger: jobs.TriggerManual}); err != nil {
		return fmt.Errorf("enqueue digest job: %w", err)
	}

	slog.Info("digest pass queued")

	return nil
}
