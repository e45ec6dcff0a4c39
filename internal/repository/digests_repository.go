package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udupa-navya/cf-feedback-agent/internal/models"
)

// DigestsRepository persists generated digests.
type DigestsRepository struct {
	db *pgxpool.Pool
}

// NewDigestsRepository creates a new digests repository.
func NewDigestsRepository(db *pgxpool.Pool) *DigestsRepository {
	return &DigestsRepository{db: db}
}

func clusterIDs(clusters []*models.Cluster) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(clusters))
	for _, c := range clusters {
		ids = append(ids, c.ID)
	}

	return ids
}

// SaveDigest stores the digest's bucket membership and batch report. Saving the same ID twice is a no-op.
func (r *DigestsRepository) SaveDigest(ctx context.Context, d *models.Digest) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO digests (
			id, generated_at, new_issue_ids, monitoring_ids, failed_fix_ids,
			individual_support_ids, positive_feedback_ids, report
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		d.ID, d.GeneratedAt,
		clusterIDs(d.NewIssues), clusterIDs(d.Monitoring), clusterIDs(d.FailedFixes),
		clusterIDs(d.IndividualSupport), clusterIDs(d.PositiveFeedback),
		d.Report,
	)
	if err != nil {
		return fmt.Errorf("failed to save digest: %w", err)
	}

	return nil
}
