package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/udupa-navya/cf-feedback-agent/internal/apperrors"
	"github.com/udupa-navya/cf-feedback-agent/internal/config"
	"github.com/udupa-navya/cf-feedback-agent/internal/notify"
	"github.com/udupa-navya/cf-feedback-agent/internal/repository"
)

var (
	runDryRun bool
	runInput  string
)

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Triage --input in memory and print the digest instead of storing and posting it")
	runCmd.Flags().StringVar(&runInput, "input", "", "JSON lines file of feedback items (dry run only, - for stdin)")
}

// runCmd runs a single digest pass
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one digest pass now",
	Long: `Run one digest pass over every unprocessed feedback item: classify, cluster, score,
store the digest and post it to CHAT_WEBHOOK_URL.

Examples:
  # Run a pass against the database
  triage run

  # Try the pipeline on a file without touching the database or the chat channel
  triage run --dry-run --input feedback.jsonl`,
	Args: cobra.NoArgs,
	RunE: runDigest,
}

func runDigest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if runDryRun {
		return runDryRunDigest(ctx, cmd, cfg)
	}

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

	d, err := a.triage.GenerateDigest(ctx)
	if err != nil {
		if stage, ok := apperrors.StageOf(err); ok && stage == apperrors.StageDelivery && d != nil {
			slog.Warn("digest stored but not delivered", "digest_id", d.ID, "error", err)

			return nil
		}

		return err
	}

	slog.Info("digest pass complete", "digest_id", d.ID, "top_issues", len(d.TopIssues()))

	return nil
}

func runDryRunDigest(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	if runInput == "" {
		return errors.New("--input is required with --dry-run")
	}

	in := cmd.InOrStdin()

	if runInput != "-" {
		f, err := os.Open(runInput)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()

		in = f
	}

	items, err := readFeedback(in)
	if err != nil {
		return err
	}

	store := repository.NewMemoryStore()
	for _, item := range items {
		if err := store.InsertFeedback(ctx, item); err != nil {
			return err
		}
	}

	a, err := newApp(ctx, cfg, nil, memoryStores(store), false)
	if err != nil {
		return err
	}
	defer a.shutdown(context.WithoutCancel(ctx))

	d, err := a.triage.GenerateDigest(ctx)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), notify.FormatText(d))

	return err
}
