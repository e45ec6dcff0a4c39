// Package observability provides OpenTelemetry metrics, tracing and log enrichment for the triage core.
package observability

// Metric names (OpenTelemetry).
const (
	MetricNameItemsProcessed       = "triage_items_processed_total"
	MetricNameClusterOutcomes      = "triage_cluster_outcomes_total"
	MetricNameFallbacks            = "triage_fallbacks_total"
	MetricNameDimensionMismatches  = "triage_dimension_mismatches_total"
	MetricNameLifecycleTransitions = "triage_lifecycle_transitions_total"
	MetricNameDeliveries           = "triage_digest_deliveries_total"
	MetricNameBatchDuration        = "triage_batch_duration_seconds"
	MetricNameIntelligenceDuration = "triage_intelligence_duration_seconds"
)

// Attribute keys.
const (
	AttrOutcome = "outcome"
	AttrStage   = "stage"
	AttrStatus  = "status"
	AttrSource  = "source"
)

// AllowedClusterOutcomes for triage_cluster_outcomes_total.
var AllowedClusterOutcomes = map[string]bool{
	"created":   true,
	"merged":    true,
	"duplicate": true,
}

// AllowedFallbackStages for triage_fallbacks_total and triage_intelligence_duration_seconds.
var AllowedFallbackStages = map[string]bool{
	"classification": true,
	"embedding":      true,
}

// AllowedTransitions for triage_lifecycle_transitions_total.
var AllowedTransitions = map[string]bool{
	"monitoring": true,
	"resolved":   true,
	"failed":     true,
}

// AllowedDeliveryStatuses for triage_digest_deliveries_total.
var AllowedDeliveryStatuses = map[string]bool{
	"success": true,
	"failed":  true,
	"skipped": true,
}

// AllowedBatchStatuses for triage_batch_duration_seconds.
var AllowedBatchStatuses = map[string]bool{
	"ok":       true,
	"degraded": true,
	"error":    true,
}

// AllowedSources for triage_items_processed_total.
var AllowedSources = map[string]bool{
	"support": true,
	"discord": true,
	"github":  true,
	"email":   true,
	"twitter": true,
}

// Normalize returns value if in allowed, otherwise "other".
func Normalize(value string, allowed map[string]bool) string {
	if allowed[value] {
		return value
	}

	return "other"
}
