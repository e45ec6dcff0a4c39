package models

import (
	"time"

	"github.com/google/uuid"
)

// FixStatus is the state of a cluster's fix lifecycle.
type FixStatus string

const (
	FixStatusOpen        FixStatus = "open"
	FixStatusFixDeployed FixStatus = "fix_deployed"
	FixStatusResolved    FixStatus = "resolved"
	FixStatusFailed      FixStatus = "failed"
)

// DefaultSentiment is the neutral sentiment assigned to new clusters.
const DefaultSentiment = 0.5

// Fix holds the fix lifecycle fields of a cluster.
type Fix struct {
	Status            FixStatus  `json:"status"`
	DeployedAt        *time.Time `json:"deployed_at,omitempty"`
	DeployedVersion   *string    `json:"deployed_version,omitempty"`
	RolloutPeriodDays int        `json:"rollout_period_days,omitempty"`
	OriginalSeverity  Severity   `json:"original_severity,omitempty"`
	ReportsBeforeFix  int        `json:"reports_before_fix"`
	ReportsAfterFix   int        `json:"reports_after_fix"`
	Notes             *string    `json:"notes,omitempty"`
}

// Cluster is a deduplicated group of feedback items describing the same issue.
type Cluster struct {
	ID       uuid.UUID `json:"id"`
	Category Category  `json:"category"`
	Severity Severity  `json:"severity"`
	// CurrentSeverity is the post-fix downgraded severity while a fix is rolling out.
	CurrentSeverity Severity `json:"current_severity"`
	// Centroid is the running mean of member embeddings.
	Centroid         []float32    `json:"-"`
	Count            int          `json:"count"`
	FirstSeen        time.Time    `json:"first_seen"`
	LastSeen         time.Time    `json:"last_seen"`
	Representative   FeedbackItem `json:"representative"`
	Sources          []Source     `json:"sources"`
	PriorityScore    float64      `json:"priority_score"`
	PriorityLevel    Severity     `json:"priority_level"`
	SentimentScore   float64      `json:"sentiment_score"`
	SentimentSamples int          `json:"sentiment_samples"`
	Fix              Fix          `json:"fix"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// HasSource reports whether src already contributed to the cluster.
func (c *Cluster) HasSource(src Source) bool {
	for _, s := range c.Sources {
		if s == src {
			return true
		}
	}

	return false
}

// EffectiveFixStatus treats an unset status as open.
func (c *Cluster) EffectiveFixStatus() FixStatus {
	if c.Fix.Status == "" {
		return FixStatusOpen
	}

	return c.Fix.Status
}

// Clone returns a deep copy of the cluster.
func (c *Cluster) Clone() *Cluster {
	out := *c
	out.Centroid = append([]float32(nil), c.Centroid...)
	out.Sources = append([]Source(nil), c.Sources...)

	return &out
}

// ClusterMembership links a feedback item to the cluster it was folded into.
// Unique per (ClusterID, FeedbackID).
type ClusterMembership struct {
	ClusterID  uuid.UUID `json:"cluster_id"`
	FeedbackID uuid.UUID `json:"feedback_id"`
	CreatedAt  time.Time `json:"created_at"`
}
