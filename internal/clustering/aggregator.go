package clustering

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/udupa-navya/cf-feedback-agent/internal/models"
)

// MembershipStore records which feedback items belong to which cluster.
type MembershipStore interface {
	MembershipExists(ctx context.Context, clusterID, feedbackID uuid.UUID) (bool, error)
	// AddMembership inserts the pair; inserting an existing pair is a no-op.
	AddMembership(ctx context.Context, clusterID, feedbackID uuid.UUID) error
}

// FoldOutcome describes what Fold did with an item.
type FoldOutcome struct {
	Cluster           *models.Cluster
	Created           bool
	Duplicate         bool
	DimensionMismatch bool
}

// Aggregator creates clusters and folds matched items into them.
type Aggregator struct {
	store MembershipStore
	now   func() time.Time
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithClock sets the clock stamped on created and updated clusters.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAggregator creates an aggregator recording memberships in store.
func NewAggregator(store MembershipStore, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{store: store, now: time.Now}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Fold adds item to match, or starts a new cluster when match is nil.
// Re-folding an item that is already a member of match changes nothing.
func (a *Aggregator) Fold(ctx context.Context, match *models.Cluster, item models.TriagedItem) (FoldOutcome, error) {
	if match == nil {
		c := NewCluster(item, a.now())
		if err := a.store.AddMembership(ctx, c.ID, item.Item.ID); err != nil {
			return FoldOutcome{}, fmt.Errorf("add membership: %w", err)
		}

		return FoldOutcome{Cluster: c, Created: true}, nil
	}

	exists, err := a.store.MembershipExists(ctx, match.ID, item.Item.ID)
	if err != nil {
		return FoldOutcome{}, fmt.Errorf("check membership: %w", err)
	}

	if exists {
		return FoldOutcome{Cluster: match, Duplicate: true}, nil
	}

	if err := a.store.AddMembership(ctx, match.ID, item.Item.ID); err != nil {
		return FoldOutcome{}, fmt.Errorf("add membership: %w", err)
	}

	mismatch := !Merge(match, item)
	if mismatch {
		slog.WarnContext(ctx, "embedding dimension mismatch, centroid left unchanged",
			"cluster_id", match.ID,
			"feedback_id", item.Item.ID,
			"centroid_dim", len(match.Centroid),
			"embedding_dim", len(item.Embedding),
		)
	}

	match.UpdatedAt = a.now()

	return FoldOutcome{Cluster: match, DimensionMismatch: mismatch}, nil
}

// NewCluster starts a cluster whose only member is item.
func NewCluster(item models.TriagedItem, now time.Time) *models.Cluster {
	c := &models.Cluster{
		ID:              uuid.New(),
		Category:        item.Classification.Category,
		Severity:        item.Classification.Severity,
		CurrentSeverity: item.Classification.Severity,
		Centroid:        append([]float32(nil), item.Embedding...),
		Count:           1,
		FirstSeen:       item.Item.ReceivedAt,
		LastSeen:        item.Item.ReceivedAt,
		Representative:  item.Item,
		Sources:         []models.Source{item.Item.Source},
		SentimentScore:  models.DefaultSentiment,
		Fix:             models.Fix{Status: models.FixStatusOpen},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if s := item.Classification.Sentiment; s != nil {
		c.SentimentScore = clamp01(*s)
		c.SentimentSamples = 1
	}

	return c
}

// Merge folds item into c, updating count, last seen, sources, sentiment and centroid.
// It returns false when the embedding dimension differs from the centroid's; the centroid
// is then left unchanged but every other field is still updated.
func Merge(c *models.Cluster, item models.TriagedItem) bool {
	c.Count++

	if item.Item.ReceivedAt.After(c.LastSeen) {
		c.LastSeen = item.Item.ReceivedAt
	}

	if !c.HasSource(item.Item.Source) {
		c.Sources = append(c.Sources, item.Item.Source)
	}

	if s := item.Classification.Sentiment; s != nil {
		c.SentimentSamples++
		c.SentimentScore += (clamp01(*s) - c.SentimentScore) / float64(c.SentimentSamples)
	}

	if len(item.Embedding) != len(c.Centroid) {
		return false
	}

	n := float32(c.Count)
	for i := range c.Centroid {
		c.Centroid[i] = (c.Centroid[i]*(n-1) + item.Embedding[i]) / n
	}

	return true
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
