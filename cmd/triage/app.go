package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udupa-navya/cf-feedback-agent/internal/clustering"
	"github.com/udupa-navya/cf-feedback-agent/internal/config"
	"github.com/udupa-navya/cf-feedback-agent/internal/digest"
	"github.com/udupa-navya/cf-feedback-agent/internal/googleai"
	"github.com/udupa-navya/cf-feedback-agent/internal/intelligence"
	"github.com/udupa-navya/cf-feedback-agent/internal/lifecycle"
	"github.com/udupa-navya/cf-feedback-agent/internal/notify"
	"github.com/udupa-navya/cf-feedback-agent/internal/observability"
	"github.com/udupa-navya/cf-feedback-agent/internal/openai"
	"github.com/udupa-navya/cf-feedback-agent/internal/priority"
	"github.com/udupa-navya/cf-feedback-agent/internal/repository"
	"github.com/udupa-navya/cf-feedback-agent/internal/service"
	"github.com/udupa-navya/cf-feedback-agent/pkg/database"
)

// stores groups the persistence the triage service needs.
type stores struct {
	clusters service.ClusterStore
	feedback service.FeedbackStore
	digests  service.DigestStore
}

// app holds the long-lived components shared by the commands.
type app struct {
	cfg       *config.Config
	db        *pgxpool.Pool
	triage    *service.TriageService
	telemetry *observability.Telemetry
}

// loadConfig loads configuration and configures logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	setupLogging(cfg.LogLevel)

	return cfg, nil
}

// openDatabase creates the schema, then opens the pool with pgvector types registered.
// Types can only be registered once the vector extension exists.
func openDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	bootstrap, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.WithMaxConns(1))
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	err = repository.EnsureSchema(ctx, bootstrap)
	bootstrap.Close()

	if err != nil {
		return nil, err
	}

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.WithVectorTypes())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return db, nil
}

// postgresStores returns the Postgres-backed stores.
func postgresStores(db *pgxpool.Pool) stores {
	return stores{
		clusters: repository.NewClustersRepository(db),
		feedback: repository.NewFeedbackRepository(db),
		digests:  repository.NewDigestsRepository(db),
	}
}

// memoryStores returns stores backed by m.
func memoryStores(m *repository.MemoryStore) stores {
	return stores{clusters: m, feedback: m, digests: m}
}

// newApp wires the triage service over st. A nil db means the stores are in memory.
// When deliver is false no digest is posted even if a webhook URL is configured.
func newApp(ctx context.Context, cfg *config.Config, db *pgxpool.Pool, st stores, deliver bool) (*app, error) {
	a := &app{cfg: cfg, db: db}

	var err error

	a.telemetry, err = observability.SetupTelemetry(ctx, cfg.OtelMetricsExporter, cfg.OtelTracesExporter)
	if err != nil {
		return nil, fmt.Errorf("set up telemetry: %w", err)
	}

	metrics, err := a.telemetry.Metrics()
	if err != nil {
		a.shutdown(ctx)

		return nil, fmt.Errorf("create triage metrics: %w", err)
	}

	triager, err := newTriager(ctx, cfg, metrics)
	if err != nil {
		a.shutdown(ctx)

		return nil, err
	}

	var sender service.DigestSender

	if deliver && cfg.ChatWebhookURL != "" {
		s, err := notify.NewChatWebhookSender(notify.SenderOptions{
			URL:        cfg.ChatWebhookURL,
			SigningKey: cfg.ChatWebhookSigningKey,
		})
		if err != nil {
			a.shutdown(ctx)

			return nil, fmt.Errorf("create chat webhook sender: %w", err)
		}

		sender = s
	} else if deliver {
		slog.Info("digest delivery disabled (CHAT_WEBHOOK_URL not set)")
	}

	a.triage = service.NewTriageService(service.TriageServiceParams{
		Clusters: st.clusters,
		Feedback: st.feedback,
		Digests:  st.digests,
		Triager:  triager,
		Sender:   sender,
		Matcher:  clustering.NewMatcher(clustering.WithThreshold(cfg.SimilarityThreshold)),
		Scorer: priority.NewScorer(
			priority.WithWeights(priority.Weights{
				Severity:  cfg.WeightSeverity,
				Frequency: cfg.WeightFrequency,
				Recency:   cfg.WeightRecency,
				Sentiment: cfg.WeightSentiment,
			}),
			priority.WithThresholds(priority.Thresholds{P0: cfg.ThresholdP0, P1: cfg.ThresholdP1, P2: cfg.ThresholdP2}),
		),
		Lifecycle: lifecycle.NewManager(
			lifecycle.WithCountingPolicy(lifecycle.ParseCountingPolicy(cfg.FixReportCounting)),
		),
		Assembler: digest.NewAssembler(
			digest.WithMaxTopIssues(cfg.MaxTopIssues),
			digest.WithMaxIndividualSupport(cfg.MaxIndividualSupport),
		),
		Metrics:     metrics,
		Lookback:    cfg.ClusterLookback,
		Concurrency: cfg.IntelligenceConcurrency,
		BatchLimit:  cfg.BatchLimit,
		Logger:      slog.Default(),
	})

	return a, nil
}

// newTriager builds the resilient classification/embedding wrapper for the configured provider.
// A provider without credentials degrades to rule-based classification and zero embeddings.
func newTriager(ctx context.Context, cfg *config.Config, metrics observability.TriageMetrics) (*intelligence.Resilient, error) {
	var (
		classifier intelligence.Classifier
		embedder   intelligence.Embedder
	)

	switch cfg.EmbeddingProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			slog.Warn("intelligence disabled (OPENAI_API_KEY not set)")

			break
		}

		client := openai.NewClient(cfg.OpenAIAPIKey,
			openai.WithDimensions(cfg.EmbeddingDimension),
			openai.WithClassifyModel(cfg.OpenAIClassifyModel),
		)
		classifier, embedder = client, client
	case "google":
		if cfg.GeminiAPIKey == "" {
			slog.Warn("intelligence disabled (GEMINI_API_KEY not set)")

			break
		}

		client, err := googleai.NewClient(ctx, cfg.GeminiAPIKey, googleai.WithDimensions(cfg.EmbeddingDimension))
		if err != nil {
			return nil, err
		}

		classifier, embedder = client, client
	default:
		slog.Info("intelligence disabled, using rule-based classification")
	}

	opts := []intelligence.ResilientOption{
		intelligence.WithTimeout(cfg.IntelligenceTimeout),
		intelligence.WithDimension(cfg.EmbeddingDimension),
	}

	if cfg.IntelligenceRateLimit > 0 {
		opts = append(opts, intelligence.WithRateLimit(cfg.IntelligenceRateLimit, 1))
	}

	if metrics != nil {
		opts = append(opts, intelligence.WithMetrics(metrics))
	}

	resilient, err := intelligence.NewResilient(classifier, embedder, opts...)
	if err != nil {
		return nil, fmt.Errorf("create intelligence client: %w", err)
	}

	return resilient, nil
}

// shutdown flushes telemetry and closes the pool. Logs secondary errors.
func (a *app) shutdown(ctx context.Context) {
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			slog.Error("shutdown observability", "error", err)
		}
	}

	if a.db != nil {
		a.db.Close()
	}
}
