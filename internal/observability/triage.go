package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// TriageMetrics records triage pipeline metrics (batch pass, intelligence calls, lifecycle, delivery).
type TriageMetrics interface {
	RecordItemProcessed(ctx context.Context, source string)
	RecordClusterOutcome(ctx context.Context, outcome string)
	RecordFallback(ctx context.Context, stage string)
	RecordDimensionMismatch(ctx context.Context)
	RecordLifecycleTransition(ctx context.Context, outcome string)
	RecordDelivery(ctx context.Context, status string)
	RecordBatchDuration(ctx context.Context, duration time.Duration, status string)
	RecordIntelligenceDuration(ctx context.Context, duration time.Duration, stage string, fallback bool)
}

type triageMetrics struct {
	itemsProcessed       metric.Int64Counter
	clusterOutcomes      metric.Int64Counter
	fallbacks            metric.Int64Counter
	dimensionMismatches  metric.Int64Counter
	lifecycleTransitions metric.Int64Counter
	deliveries           metric.Int64Counter
	batchDuration        metric.Float64Histogram
	intelligenceDuration metric.Float64Histogram
}

// NewTriageMetrics creates TriageMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewTriageMetrics(meter metric.Meter) (TriageMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	var (
		m   triageMetrics
		err error
	)

	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&m.itemsProcessed, MetricNameItemsProcessed, "Total feedback items triaged by source"},
		{&m.clusterOutcomes, MetricNameClusterOutcomes, "Total fold outcomes (created, merged, duplicate)"},
		{&m.fallbacks, MetricNameFallbacks, "Total intelligence fallbacks by stage"},
		{&m.dimensionMismatches, MetricNameDimensionMismatches, "Total merges that skipped a centroid update on dimension mismatch"},
		{&m.lifecycleTransitions, MetricNameLifecycleTransitions, "Total fix lifecycle evaluations by outcome"},
		{&m.deliveries, MetricNameDeliveries, "Total digest deliveries by status"},
	}

	for _, c := range counters {
		*c.target, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("create %s counter: %w", c.name, err)
		}
	}

	m.batchDuration, err = meter.Float64Histogram(
		MetricNameBatchDuration,
		metric.WithDescription("Digest pass duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create batch duration histogram: %w", err)
	}

	m.intelligenceDuration, err = meter.Float64Histogram(
		MetricNameIntelligenceDuration,
		metric.WithDescription("Classification and embedding call duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create intelligence duration histogram: %w", err)
	}

	return &m, nil
}

func (m *triageMetrics) RecordItemProcessed(ctx context.Context, source string) {
	m.itemsProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrSource, Normalize(source, AllowedSources))))
}

func (m *triageMetrics) RecordClusterOutcome(ctx context.Context, outcome string) {
	m.clusterOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrOutcome, Normalize(outcome, AllowedClusterOutcomes))))
}

func (m *triageMetrics) RecordFallback(ctx context.Context, stage string) {
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrStage, Normalize(stage, AllowedFallbackStages))))
}

func (m *triageMetrics) RecordDimensionMismatch(ctx context.Context) {
	m.dimensionMismatches.Add(ctx, 1)
}

func (m *triageMetrics) RecordLifecycleTransition(ctx context.Context, outcome string) {
	m.lifecycleTransitions.Add(ctx, 1,
		metric.WithAttributes(attribute.String(AttrOutcome, Normalize(outcome, AllowedTransitions))))
}

func (m *triageMetrics) RecordDelivery(ctx context.Context, status string) {
	m.deliveries.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrStatus, Normalize(status, AllowedDeliveryStatuses))))
}

func (m *triageMetrics) RecordBatchDuration(ctx context.Context, duration time.Duration, status string) {
	m.batchDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String(AttrStatus, Normalize(status, AllowedBatchStatuses))))
}

func (m *triageMetrics) RecordIntelligenceDuration(ctx context.Context, duration time.Duration, stage string, fallback bool) {
	status := "ok"
	if fallback {
		status = "fallback"
	}

	m.intelligenceDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrStage, Normalize(stage, AllowedFallbackStages)),
		attribute.String(AttrStatus, status),
	))
}
