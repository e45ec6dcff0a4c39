package intelligence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/udupa-navya/cf-feedback-agent/internal/apperrors"
	"github.com/udupa-navya/cf-feedback-agent/internal/models"
	"github.com/udupa-navya/cf-feedback-agent/internal/observability"
	"github.com/udupa-navya/cf-feedback-agent/pkg/cache"
	"github.com/udupa-navya/cf-feedback-agent/pkg/embeddings"
)

const (
	DefaultTimeout      = 20 * time.Second
	DefaultCacheEntries = 4096
)

// Result is the classification and embedding obtained for one feedback item.
type Result struct {
	Classification models.Classification
	// Embedding is all zeros when the embedder failed, timed out or is not configured.
	Embedding []float32
	// ClassificationFallback is true when the rule classifier produced the classification.
	ClassificationFallback bool
	// EmbeddingFallback is true when Embedding is a zero vector.
	EmbeddingFallback bool
}

// Resilient calls the remote classifier and embedder under a caller-side timeout and a shared
// rate limit. Failures degrade to rule classification and a zero vector; they are never returned.
// Results are cached per feedback item until ResetCache.
type Resilient struct {
	classifier Classifier
	embedder   Embedder
	fallback   *RuleClassifier
	dimension  int
	timeout    time.Duration
	limiter    *rate.Limiter
	metrics    observability.TriageMetrics

	classifications *cache.LoaderCache[uuid.UUID, models.Classification]
	vectors         *cache.LoaderCache[uuid.UUID, []float32]
}

// ResilientOption configures Resilient.
type ResilientOption func(*Resilient)

// WithTimeout bounds each remote call.
func WithTimeout(timeout time.Duration) ResilientOption {
	return func(r *Resilient) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithRateLimit caps remote calls at rps per second across classification and embedding.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) ResilientOption {
	return func(r *Resilient) {
		if rps <= 0 {
			r.limiter = nil

			return
		}

		if burst < 1 {
			burst = 1
		}

		r.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithDimension sets the length of the zero vector used when no embedding is available.
func WithDimension(dim int) ResilientOption {
	return func(r *Resilient) {
		r.dimension = dim
	}
}

// WithMetrics records call durations and fallbacks.
func WithMetrics(metrics observability.TriageMetrics) ResilientOption {
	return func(r *Resilient) {
		r.metrics = metrics
	}
}

// NewResilient wraps classifier and embedder. Either may be nil: a nil classifier always uses the
// rule classifier and a nil embedder always yields the zero vector.
func NewResilient(classifier Classifier, embedder Embedder, opts ...ResilientOption) (*Resilient, error) {
	r := &Resilient{
		classifier: classifier,
		embedder:   embedder,
		fallback:   NewRuleClassifier(),
		timeout:    DefaultTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	var err error

	r.classifications, err = cache.NewLoaderCache[uuid.UUID, models.Classification](DefaultCacheEntries)
	if err != nil {
		return nil, fmt.Errorf("create classification cache: %w", err)
	}

	r.vectors, err = cache.NewLoaderCache[uuid.UUID, []float32](DefaultCacheEntries)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return r, nil
}

// ResetCache drops all cached results. Call it at the start of each batch.
func (r *Resilient) ResetCache() {
	r.classifications.Purge()
	r.vectors.Purge()
}

// Triage classifies and embeds item. It always returns a usable result.
func (r *Resilient) Triage(ctx context.Context, item models.FeedbackItem) Result {
	cls, _, _ := r.classifications.Get(ctx, item.ID, func(ctx context.Context, _ uuid.UUID) (models.Classification, error) {
		return r.classify(ctx, item.Text), nil
	})

	emb, _, _ := r.vectors.Get(ctx, item.ID, func(ctx context.Context, _ uuid.UUID) ([]float32, error) {
		return r.embed(ctx, item.Text), nil
	})

	return Result{
		Classification:         cls,
		Embedding:              append([]float32(nil), emb...),
		ClassificationFallback: cls.Fallback,
		EmbeddingFallback:      embeddings.IsZero(emb),
	}
}

func (r *Resilient) classify(ctx context.Context, text string) models.Classification {
	if r.classifier == nil {
		return r.fallback.ClassifyText(text)
	}

	start := time.Now()

	cls, err := r.callClassifier(ctx, text)
	if err != nil {
		slog.WarnContext(ctx, "classification unavailable, using rule fallback", "error", err)
		r.recordFallback(ctx, string(apperrors.StageClassification), time.Since(start))

		return r.fallback.ClassifyText(text)
	}

	if r.metrics != nil {
		r.metrics.RecordIntelligenceDuration(ctx, time.Since(start), string(apperrors.StageClassification), false)
	}

	cls.Category = models.ParseCategory(string(cls.Category))
	cls.Severity = models.ParseSeverity(string(cls.Severity))
	cls.Confidence = clamp01(cls.Confidence)
	cls.Fallback = false

	if cls.Summary == "" {
		cls.Summary = summarize(text)
	}

	return cls
}

func (r *Resilient) callClassifier(ctx context.Context, text string) (models.Classification, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.wait(callCtx); err != nil {
		return models.Classification{}, err
	}

	cls, err := r.classifier.Classify(callCtx, text)
	if err != nil {
		return models.Classification{}, fmt.Errorf("%w: %w", apperrors.ErrIntelligenceUnavailable, err)
	}

	return cls, nil
}

func (r *Resilient) embed(ctx context.Context, text string) []float32 {
	if r.embedder == nil {
		return embeddings.Zero(r.dimension)
	}

	start := time.Now()

	vec, err := r.callEmbedder(ctx, text)
	if err != nil {
		slog.WarnContext(ctx, "embedding unavailable, using zero vector", "error", err)
		r.recordFallback(ctx, string(apperrors.StageEmbedding), time.Since(start))

		return embeddings.Zero(r.dimension)
	}

	if r.metrics != nil {
		r.metrics.RecordIntelligenceDuration(ctx, time.Since(start), string(apperrors.StageEmbedding), false)
	}

	return vec
}

func (r *Resilient) callEmbedder(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.wait(callCtx); err != nil {
		return nil, err
	}

	vec, err := r.embedder.CreateEmbedding(callCtx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrIntelligenceUnavailable, err)
	}

	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", apperrors.ErrIntelligenceUnavailable)
	}

	return vec, nil
}

func (r *Resilient) wait(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit wait: %w", apperrors.ErrIntelligenceUnavailable, err)
	}

	return nil
}

func (r *Resilient) recordFallback(ctx context.Context, stage string, elapsed time.Duration) {
	if r.metrics == nil {
		return
	}

	r.metrics.RecordFallback(ctx, stage)
	r.metrics.RecordIntelligenceDuration(ctx, elapsed, stage, true)
}
