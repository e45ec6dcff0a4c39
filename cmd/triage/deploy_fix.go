package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/udupa-navya/cf-feedback-agent/internal/apperrors"
	"github.com/udupa-navya/cf-feedback-agent/internal/lifecycle"
)

var (
	fixVersion     string
	fixDeployedAt  string
	fixRolloutDays int
	fixNotes       string
)

func init() {
	deployFixCmd.Flags().StringVar(&fixVersion, "version", "", "Release that carries the fix")
	deployFixCmd.Flags().StringVar(&fixDeployedAt, "deployed-at", "", "Deployment time, RFC 3339 (defaults to now)")
	deployFixCmd.Flags().IntVar(&fixRolloutDays, "rollout-days", 0, "Monitoring window in days (defaults to FIX_ROLLOUT_DAYS)")
	deployFixCmd.Flags().StringVar(&fixNotes, "notes", "", "Free-form notes")
}

// deployFixCmd marks a cluster as fixed
var deployFixCmd = &cobra.Command{
	Use:   "deploy-fix <cluster-id>",
	Short: "Record that a fix for a cluster has shipped",
	Long: `Record that a fix for a cluster has shipped. The cluster is monitored for the rollout
window: its severity is lowered meanwhile, and afterwards it is resolved if reports dropped
enough or flagged as a failed fix otherwise.

Examples:
  triage deploy-fix 0b5c1d0e-5d8e-4a8e-9a43-3f5a2a8c9e11 --version 2.4.1
  triage deploy-fix 0b5c1d0e-5d8e-4a8e-9a43-3f5a2a8c9e11 --deployed-at 2026-03-01T10:00:00Z --rollout-days 14`,
	Args: cobra.ExactArgs(1),
	RunE: runDeployFix,
}

func runDeployFix(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	clusterID, err := uuid.Parse(args[0])
	if err != nil {
		return apperrors.NewValidationError("cluster_id", "cluster id must be a UUID")
	}

	deployedAt := time.Now().UTC()

	if fixDeployedAt != "" {
		deployedAt, err = time.Parse(time.RFC3339, fixDeployedAt)
		if err != nil {
			return apperrors.NewValidationError("deployed_at", "deployed-at must be RFC 3339")
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rollout := fixRolloutDays
	if rollout <= 0 {
		rollout = cfg.FixRolloutDays
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, db, postgresStores(db), false)
	if err != nil {
		db.Close()

		return err
	}
	defer a.shutdown(context.WithoutCancel(ctx))

	c, err := a.triage.MarkFixDeployed(ctx, clusterID, lifecycle.DeployFixParams{
		Version:           fixVersion,
		DeployedAt:        deployedAt,
		RolloutPeriodDays: rollout,
		Notes:             fixNotes,
	})
	if err != nil {
		return fmt.Errorf("deploy fix: %w", err)
	}

	slog.Info("fix recorded",
		"cluster_id", c.ID,
		"severity", c.CurrentSeverity,
		"monitor_until", deployedAt.AddDate(0, 0, rollout).Format(time.DateOnly),
	)

	return nil
}
