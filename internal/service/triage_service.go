package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/udupa-navya/cf-feedback-agent/internal/apperrors"
	"github.com/udupa-navya/cf-feedback-agent/internal/clustering"
	"github.com/udupa-navya/cf-feedback-agent/internal/digest"
	"github.com/udupa-navya/cf-feedback-agent/internal/intelligence"
	"github.com/udupa-navya/cf-feedback-agent/internal/lifecycle"
	"github.com/udupa-navya/cf-feedback-agent/internal/models"
	"github.com/udupa-navya/cf-feedback-agent/internal/notify"
	"github.com/udupa-navya/cf-feedback-agent/internal/observability"
	"github.com/udupa-navya/cf-feedback-agent/internal/priority"
)

const (
	DefaultLookback    = 7 * 24 * time.Hour
	DefaultConcurrency = 4
)

// ClusterStore persists clusters and their memberships.
type ClusterStore interface {
	clustering.MembershipStore
	LoadActiveClusters(ctx context.Context, since time.Time) ([]*models.Cluster, error)
	GetCluster(ctx context.Context, id uuid.UUID) (*models.Cluster, error)
	UpsertCluster(ctx context.Context, c *models.Cluster) error
	ClusterForItem(ctx context.Context, feedbackID uuid.UUID) (uuid.UUID, bool, error)
}

// FeedbackStore provides the items awaiting triage.
type FeedbackStore interface {
	ListUnprocessed(ctx context.Context, limit int) ([]models.FeedbackItem, error)
	MarkProcessed(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// DigestStore persists generated digests.
type DigestStore interface {
	SaveDigest(ctx context.Context, d *models.Digest) error
}

// Triager obtains a classification and embedding per item and never fails.
type Triager interface {
	Triage(ctx context.Context, item models.FeedbackItem) intelligence.Result
	ResetCache()
}

// DigestSender delivers a generated digest.
type DigestSender interface {
	Send(ctx context.Context, d *models.Digest) (notify.DeliveryResult, error)
}

// BatchResult is the outcome of folding one batch of items into the cluster set.
type BatchResult struct {
	// Touched lists the clusters created or merged into, in first-touch order.
	Touched []*models.Cluster
	// NewReports counts items folded into each cluster during the batch.
	NewReports map[uuid.UUID]int
	Report     models.BatchReport
}

// TriageService runs triage passes: classify and embed items, fold them into clusters, advance
// fix lifecycles, score, and assemble the digest.
type TriageService struct {
	clusters    ClusterStore
	feedback    FeedbackStore
	digests     DigestStore
	triager     Triager
	sender      DigestSender
	matcher     *clustering.Matcher
	aggregator  *clustering.Aggregator
	scorer      *priority.Scorer
	lifecycle   *lifecycle.Manager
	assembler   *digest.Assembler
	metrics     observability.TriageMetrics
	lookback    time.Duration
	concurrency int
	batchLimit  int
	now         func() time.Time
	logger      *slog.Logger
}

// TriageServiceParams configures TriageService. Clusters and Triager are required; the remaining
// collaborators fall back to defaults, and a nil Sender skips delivery.
type TriageServiceParams struct {
	Clusters    ClusterStore
	Feedback    FeedbackStore
	Digests     DigestStore
	Triager     Triager
	Sender      DigestSender
	Matcher     *clustering.Matcher
	Scorer      *priority.Scorer
	Lifecycle   *lifecycle.Manager
	Assembler   *digest.Assembler
	Metrics     observability.TriageMetrics
	Lookback    time.Duration
	Concurrency int
	// BatchLimit caps items per digest pass; 0 takes every unprocessed item.
	BatchLimit int
	Now        func() time.Time
	Logger     *slog.Logger
}

// NewTriageService creates a TriageService.
func NewTriageService(p TriageServiceParams) *TriageService {
	s := &TriageService{
		clusters:    p.Clusters,
		feedback:    p.Feedback,
		digests:     p.Digests,
		triager:     p.Triager,
		sender:      p.Sender,
		matcher:     p.Matcher,
		scorer:      p.Scorer,
		lifecycle:   p.Lifecycle,
		assembler:   p.Assembler,
		metrics:     p.Metrics,
		lookback:    p.Lookback,
		concurrency: p.Concurrency,
		batchLimit:  p.BatchLimit,
		now:         p.Now,
		logger:      p.Logger,
	}

	if s.now == nil {
		s.now = time.Now
	}

	if s.matcher == nil {
		s.matcher = clustering.NewMatcher()
	}

	if s.scorer == nil {
		s.scorer = priority.NewScorer(priority.WithClock(s.now))
	}

	if s.lifecycle == nil {
		s.lifecycle = lifecycle.NewManager(lifecycle.WithClock(s.now))
	}

	if s.assembler == nil {
		s.assembler = digest.NewAssembler()
	}

	if s.lookback <= 0 {
		s.lookback = DefaultLookback
	}

	if s.concurrency <= 0 {
		s.concurrency = DefaultConcurrency
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.aggregator = clustering.NewAggregator(p.Clusters, clustering.WithClock(s.now))

	return s
}

// ProcessBatch folds items into the active cluster set and persists the clusters it touched.
func (s *TriageService) ProcessBatch(ctx context.Context, items []models.FeedbackItem) (BatchResult, error) {
	since := s.now().Add(-s.lookback)

	active, err := s.clusters.LoadActiveClusters(ctx, since)
	if err != nil {
		return BatchResult{}, apperrors.NewStageError(apperrors.StageLoadClusters, err)
	}

	res, _, err := s.fold(ctx, items, active, since)
	if err != nil {
		return res, err
	}

	for _, c := range res.Touched {
		if err := s.clusters.UpsertCluster(ctx, c); err != nil {
			return res, apperrors.NewStageError(apperrors.StageStoreWrite, err)
		}
	}

	return res, nil
}

// Score computes the priority score and level of c without modifying it.
func (s *TriageService) Score(c *models.Cluster) priority.Result {
	return s.scorer.Score(c)
}

// AssembleDigest partitions already-scored clusters into ranked digest buckets.
func (s *TriageService) AssembleDigest(clusters []*models.Cluster) digest.Buckets {
	return s.assembler.Assemble(clusters)
}

// fold triages items concurrently, then matches and folds them one at a time in timestamp order.
// Clusters created along the way are appended to active, which is returned.
func (s *TriageService) fold(
	ctx context.Context, items []models.FeedbackItem, active []*models.Cluster, since time.Time,
) (BatchResult, []*models.Cluster, error) {
	res := BatchResult{NewReports: make(map[uuid.UUID]int)}

	items = orderedUnique(items)
	res.Report.ItemsProcessed = len(items)

	pending := make([]models.FeedbackItem, 0, len(items))

	for _, item := range items {
		_, member, err := s.clusters.ClusterForItem(ctx, item.ID)
		if err != nil {
			return res, active, apperrors.NewStageError(apperrors.StageLoadClusters, err)
		}

		if member {
			res.Report.DuplicateMemberships++
			s.recordOutcome(ctx, "duplicate")

			continue
		}

		pending = append(pending, item)
	}

	triaged := s.triageAll(ctx, pending)

	created := make(map[uuid.UUID]bool)
	touched := make(map[uuid.UUID]bool)

	for i, item := range pending {
		t := triaged[i]
		if t.ClassificationFallback {
			res.Report.ClassificationFallbacks++
		}

		if t.EmbeddingFallback {
			res.Report.ZeroEmbeddings++
		}

		ti := models.TriagedItem{Item: item, Classification: t.Classification, Embedding: t.Embedding}

		match := s.matcher.Match(clustering.MatchInput{
			Text:           item.Text,
			Embedding:      t.Embedding,
			Classification: t.Classification,
		}, candidates(active, since, created))

		outcome, err := s.aggregator.Fold(ctx, match.Cluster, ti)
		if err != nil {
			return res, active, apperrors.NewStageError(apperrors.StageStoreWrite, err)
		}

		if s.metrics != nil {
			s.metrics.RecordItemProcessed(ctx, string(item.Source))
		}

		switch {
		case outcome.Created:
			res.Report.ClustersCreated++
			created[outcome.Cluster.ID] = true
			active = append(active, outcome.Cluster)
			s.recordOutcome(ctx, "created")
		case outcome.Duplicate:
			res.Report.DuplicateMemberships++
			s.recordOutcome(ctx, "duplicate")

			continue
		default:
			res.Report.ClustersMerged++
			s.recordOutcome(ctx, "merged")
			s.logger.DebugContext(ctx, "feedback merged into cluster",
				"feedback_id", item.ID,
				"cluster_id", outcome.Cluster.ID,
				"method", match.Method,
				"similarity", match.Similarity,
			)
		}

		if outcome.DimensionMismatch {
			res.Report.DimensionMismatches++

			if s.metrics != nil {
				s.metrics.RecordDimensionMismatch(ctx)
			}
		}

		res.NewReports[outcome.Cluster.ID]++

		if !touched[outcome.Cluster.ID] {
			touched[outcome.Cluster.ID] = true
			res.Touched = append(res.Touched, outcome.Cluster)
		}
	}

	return res, active, nil
}

// triageAll calls the triager for every item with bounded concurrency. Results are index-aligned.
func (s *TriageService) triageAll(ctx context.Context, items []models.FeedbackItem) []intelligence.Result {
	results := make([]intelligence.Result, len(items))

	var g errgroup.Group

	g.SetLimit(s.concurrency)

	for i, item := range items {
		g.Go(func() error {
			results[i] = s.triager.Triage(ctx, item)

			return nil
		})
	}

	_ = g.Wait() // Triage never returns an error; failures are already folded into fallbacks.

	return results
}

func (s *TriageService) recordOutcome(ctx context.Context, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordClusterOutcome(ctx, outcome)
	}
}

// candidates returns the clusters eligible for matching: those seen within the lookback window
// and those created earlier in this batch, in their current order.
func candidates(active []*models.Cluster, since time.Time, created map[uuid.UUID]bool) []*models.Cluster {
	out := make([]*models.Cluster, 0, len(active))

	for _, c := range active {
		if created[c.ID] || !c.LastSeen.Before(since) {
			out = append(out, c)
		}
	}

	return out
}

// orderedUnique sorts items by received time (ties by id) and drops repeated ids.
func orderedUnique(items []models.FeedbackItem) []models.FeedbackItem {
	out := slices.Clone(items)

	slices.SortStableFunc(out, func(a, b models.FeedbackItem) int {
		if c := a.ReceivedAt.Compare(b.ReceivedAt); c != 0 {
			return c
		}

		return slices.Compare(a.ID[:], b.ID[:])
	})

	return slices.CompactFunc(out, func(a, b models.FeedbackItem) bool {
		return a.ID == b.ID
	})
}

// GenerateDigest runs one digest pass over every unprocessed item. When the digest was generated
// but delivery failed, both the digest and a delivery StageError are returned.
func (s *TriageService) GenerateDigest(ctx context.Context) (d *models.Digest, err error) {
	batchID := uuid.New()
	ctx = observability.WithBatchID(ctx, batchID.String())

	ctx, span := observability.StartSpan(ctx, "triage.generate_digest",
		attribute.String("batch_id", batchID.String()))
	defer func() { observability.EndSpan(span, err) }()

	start := s.now()
	s.triager.ResetCache()

	d, err = s.generate(ctx, batchID)

	status := "ok"

	switch {
	case err != nil && d == nil:
		status = "error"

		stage, _ := apperrors.StageOf(err)
		s.logger.ErrorContext(ctx, "digest generation aborted", "stage", stage, "error", err)
	case err != nil:
		status = "degraded"

		s.logger.WarnContext(ctx, "digest generated but not delivered", "error", err)
	case d.Report.Degraded():
		status = "degraded"
	}

	if s.metrics != nil {
		s.metrics.RecordBatchDuration(ctx, s.now().Sub(start), status)
	}

	if d != nil {
		s.logger.InfoContext(ctx, "digest pass finished",
			"status", status,
			"items", d.Report.ItemsProcessed,
			"clusters_created", d.Report.ClustersCreated,
			"clusters_merged", d.Report.ClustersMerged,
			"classification_fallbacks", d.Report.ClassificationFallbacks,
			"zero_embeddings", d.Report.ZeroEmbeddings,
			"top_issues", len(d.NewIssues),
		)
	}

	return d, err
}

func (s *TriageService) generate(ctx context.Context, batchID uuid.UUID) (*models.Digest, error) {
	now := s.now()
	since := now.Add(-s.lookback)

	items, err := s.feedback.ListUnprocessed(ctx, s.batchLimit)
	if err != nil {
		return nil, apperrors.NewStageError(apperrors.StageLoadFeedback, err)
	}

	active, err := s.clusters.LoadActiveClusters(ctx, since)
	if err != nil {
		return nil, apperrors.NewStageError(apperrors.StageLoadClusters, err)
	}

	res, active, err := s.fold(ctx, items, active, since)
	if err != nil {
		return nil, err
	}

	report := res.Report

	for _, c := range active {
		if c.EffectiveFixStatus() != models.FixStatusFixDeployed {
			continue
		}

		t := s.lifecycle.Evaluate(c, res.NewReports[c.ID])
		if t.Outcome == lifecycle.OutcomeUnchanged {
			continue
		}

		switch t.Outcome {
		case lifecycle.OutcomeResolved:
			report.FixesResolved++
		case lifecycle.OutcomeFailed:
			report.FixesFailed++
		}

		if s.metrics != nil {
			s.metrics.RecordLifecycleTransition(ctx, string(t.Outcome))
		}

		c.UpdatedAt = now

		s.logger.InfoContext(ctx, "fix lifecycle evaluated",
			"cluster_id", c.ID,
			"outcome", t.Outcome,
			"days_since_fix", t.DaysSinceFix,
			"reports_after_fix", c.Fix.ReportsAfterFix,
		)
	}

	for _, c := range active {
		s.scorer.Apply(c)
	}

	buckets := s.assembler.Assemble(active)

	for _, c := range active {
		if err := s.clusters.UpsertCluster(ctx, c); err != nil {
			return nil, apperrors.NewStageError(apperrors.StageStoreWrite, err)
		}
	}

	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	if err := s.feedback.MarkProcessed(ctx, ids, now); err != nil {
		return nil, apperrors.NewStageError(apperrors.StageStoreWrite, err)
	}

	d := &models.Digest{
		ID:                batchID,
		GeneratedAt:       now,
		NewIssues:         buckets.NewIssues,
		Monitoring:        buckets.Monitoring,
		FailedFixes:       buckets.FailedFixes,
		IndividualSupport: buckets.IndividualSupport,
		PositiveFeedback:  buckets.PositiveFeedback,
		Report:            report,
	}

	deliveryErr := s.deliver(ctx, d)

	if err := s.digests.SaveDigest(ctx, d); err != nil {
		return nil, apperrors.NewStageError(apperrors.StageStoreWrite, err)
	}

	if deliveryErr != nil {
		return d, apperrors.NewStageError(apperrors.StageDelivery, deliveryErr)
	}

	return d, nil
}

// deliver sends d when a sender is configured and records any failure on the report.
func (s *TriageService) deliver(ctx context.Context, d *models.Digest) error {
	if s.sender == nil {
		if s.metrics != nil {
			s.metrics.RecordDelivery(ctx, "skipped")
		}

		return nil
	}

	result, err := s.sender.Send(ctx, d)
	if err != nil {
		d.Report.DeliveryError = err.Error()

		if s.metrics != nil {
			s.metrics.RecordDelivery(ctx, "failed")
		}

		return fmt.Errorf("deliver digest (status %d after %d attempts): %w", result.StatusCode, result.Attempts, err)
	}

	if s.metrics != nil {
		s.metrics.RecordDelivery(ctx, "success")
	}

	s.logger.InfoContext(ctx, "digest delivered", "status_code", result.StatusCode, "attempts", result.Attempts)

	return nil
}

// MarkFixDeployed stamps a cluster as having a fix deployed and persists it.
func (s *TriageService) MarkFixDeployed(
	ctx context.Context, clusterID uuid.UUID, params lifecycle.DeployFixParams,
) (*models.Cluster, error) {
	c, err := s.clusters.GetCluster(ctx, clusterID)
	if err != nil {
		return nil, fmt.Errorf("get cluster: %w", err)
	}

	if err := lifecycle.DeployFix(c, params); err != nil {
		return nil, err
	}

	c.UpdatedAt = s.now()
	s.scorer.Apply(c)

	if err := s.clusters.UpsertCluster(ctx, c); err != nil {
		return nil, apperrors.NewStageError(apperrors.StageStoreWrite, err)
	}

	s.logger.InfoContext(ctx, "fix deployed",
		"cluster_id", c.ID,
		"original_severity", c.Fix.OriginalSeverity,
		"current_severity", c.CurrentSeverity,
		"reports_before_fix", c.Fix.ReportsBeforeFix,
	)

	return c, nil
}
