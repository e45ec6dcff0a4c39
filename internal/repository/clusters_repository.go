package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udupa-navya/cf-feedback-agent/internal/apperrors"
	"github.com/udupa-navya/cf-feedback-agent/internal/models"
)

// ClustersRepository handles data access for clusters and cluster memberships.
type ClustersRepository struct {
	db *pgxpool.Pool
}

// NewClustersRepository creates a new clusters repository.
func NewClustersRepository(db *pgxpool.Pool) *ClustersRepository {
	return &ClustersRepository{db: db}
}

const clusterColumns = `
	c.id, c.category, c.severity, c.current_severity, c.centroid, c.count,
	c.first_seen, c.last_seen, c.sources, c.priority_score, c.priority_level,
	c.sentiment_score, c.sentiment_samples,
	c.fix_status, c.fix_deployed_at, c.fix_deployed_version, c.fix_rollout_period_days,
	c.fix_original_severity, c.reports_before_fix, c.reports_after_fix, c.fix_notes,
	c.created_at, c.updated_at,
	f.id, f.text, f.source, f.received_at, f.author, f.link`

const clusterFrom = `
	FROM clusters c
	JOIN feedback_items f ON f.id = c.representative_id`

func scanCluster(row pgx.Row) (*models.Cluster, error) {
	var (
		c        models.Cluster
		centroid nullableCentroid
		sources  []string
	)

	err := row.Scan(
		&c.ID, &c.Category, &c.Severity, &c.CurrentSeverity, &centroid, &c.Count,
		&c.FirstSeen, &c.LastSeen, &sources, &c.PriorityScore, &c.PriorityLevel,
		&c.SentimentScore, &c.SentimentSamples,
		&c.Fix.Status, &c.Fix.DeployedAt, &c.Fix.DeployedVersion, &c.Fix.RolloutPeriodDays,
		&c.Fix.OriginalSeverity, &c.Fix.ReportsBeforeFix, &c.Fix.ReportsAfterFix, &c.Fix.Notes,
		&c.CreatedAt, &c.UpdatedAt,
		&c.Representative.ID, &c.Representative.Text, &c.Representative.Source,
		&c.Representative.ReceivedAt, &c.Representative.Author, &c.Representative.Link,
	)
	if err != nil {
		return nil, err
	}

	c.Centroid = centroid

	c.Sources = make([]models.Source, len(sources))
	for i, s := range sources {
		c.Sources[i] = models.Source(s)
	}

	return &c, nil
}

// LoadActiveClusters returns clusters seen since the given time plus every cluster whose fix is
// still rolling out, oldest first.
func (r *ClustersRepository) LoadActiveClusters(ctx context.Context, since time.Time) ([]*models.Cluster, error) {
	query := `SELECT ` + clusterColumns + clusterFrom + `
		WHERE c.last_seen >= $1 OR c.fix_status = $2
		ORDER BY c.first_seen ASC, c.id ASC`

	rows, err := r.db.Query(ctx, query, since, models.FixStatusFixDeployed)
	if err != nil {
		return nil, fmt.Errorf("failed to load active clusters: %w", err)
	}
	defer rows.Close()

	var clusters []*models.Cluster

	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cluster: %w", err)
		}

		clusters = append(clusters, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clusters: %w", err)
	}

	return clusters, nil
}

// GetCluster retrieves a single cluster by ID.
func (r *ClustersRepository) GetCluster(ctx context.Context, id uuid.UUID) (*models.Cluster, error) {
	query := `SELECT ` + clusterColumns + clusterFrom + ` WHERE c.id = $1`

	c, err := scanCluster(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("cluster", "cluster not found")
		}

		return nil, fmt.Errorf("failed to get cluster: %w", err)
	}

	return c, nil
}

// UpsertCluster inserts the cluster or overwrites every mutable column of an existing row.
func (r *ClustersRepository) UpsertCluster(ctx context.Context, c *models.Cluster) error {
	sources := make([]string, len(c.Sources))
	for i, s := range c.Sources {
		sources[i] = string(s)
	}

	query := `
		INSERT INTO clusters (
			id, category, severity, current_severity, centroid, count,
			first_seen, last_seen, representative_id, sources, priority_score, priority_level,
			sentiment_score, sentiment_samples,
			fix_status, fix_deployed_at, fix_deployed_version, fix_rollout_period_days,
			fix_original_severity, reports_before_fix, reports_after_fix, fix_notes,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			severity = EXCLUDED.severity,
			current_severity = EXCLUDED.current_severity,
			centroid = EXCLUDED.centroid,
			count = EXCLUDED.count,
			first_seen = EXCLUDED.first_seen,
			last_seen = EXCLUDED.last_seen,
			sources = EXCLUDED.sources,
			priority_score = EXCLUDED.priority_score,
			priority_level = EXCLUDED.priority_level,
			sentiment_score = EXCLUDED.sentiment_score,
			sentiment_samples = EXCLUDED.sentiment_samples,
			fix_status = EXCLUDED.fix_status,
			fix_deployed_at = EXCLUDED.fix_deployed_at,
			fix_deployed_version = EXCLUDED.fix_deployed_version,
			fix_rollout_period_days = EXCLUDED.fix_rollout_period_days,
			fix_original_severity = EXCLUDED.fix_original_severity,
			reports_before_fix = EXCLUDED.reports_before_fix,
			reports_after_fix = EXCLUDED.reports_after_fix,
			fix_notes = EXCLUDED.fix_notes,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		c.ID, c.Category, c.Severity, c.CurrentSeverity, centroidParam(c.Centroid), c.Count,
		c.FirstSeen, c.LastSeen, c.Representative.ID, sources, c.PriorityScore, c.PriorityLevel,
		c.SentimentScore, c.SentimentSamples,
		c.EffectiveFixStatus(), c.Fix.DeployedAt, c.Fix.DeployedVersion, c.Fix.RolloutPeriodDays,
		c.Fix.OriginalSeverity, c.Fix.ReportsBeforeFix, c.Fix.ReportsAfterFix, c.Fix.Notes,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cluster: %w", err)
	}

	return nil
}

// AddMembership records that feedbackID belongs to clusterID. Re-adding a pair is a no-op.
func (r *ClustersRepository) AddMembership(ctx context.Context, clusterID, feedbackID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO cluster_memberships (cluster_id, feedback_id)
		VALUES ($1, $2)
		ON CONFLICT (cluster_id, feedback_id) DO NOTHING`,
		clusterID, feedbackID,
	)
	if err != nil {
		return fmt.Errorf("failed to add cluster membership: %w", err)
	}

	return nil
}

// MembershipExists reports whether feedbackID is already a member of clusterID.
func (r *ClustersRepository) MembershipExists(ctx context.Context, clusterID, feedbackID uuid.UUID) (bool, error) {
	var exists bool

	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM cluster_memberships WHERE cluster_id = $1 AND feedback_id = $2
		)`, clusterID, feedbackID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check cluster membership: %w", err)
	}

	return exists, nil
}

// ClusterForItem returns the cluster feedbackID was folded into, if any.
func (r *ClustersRepository) ClusterForItem(ctx context.Context, feedbackID uuid.UUID) (uuid.UUID, bool, error) {
	var clusterID uuid.UUID

	err := r.db.QueryRow(ctx, `
		SELECT cluster_id FROM cluster_memberships
		WHERE feedback_id = $1
		ORDER BY created_at ASC
		LIMIT 1`, feedbackID,
	).Scan(&clusterID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}

		return uuid.Nil, false, fmt.Errorf("failed to find cluster for item: %w", err)
	}

	return clusterID, true, nil
}
