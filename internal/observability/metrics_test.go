package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		allowed  map[string]bool
		expected string
	}{
		{"known outcome", "merged", AllowedClusterOutcomes, "merged"},
		{"unknown outcome", "split", AllowedClusterOutcomes, "other"},
		{"known stage", "embedding", AllowedFallbackStages, "embedding"},
		{"empty stage", "", AllowedFallbackStages, "other"},
		{"known source", "discord", AllowedSources, "discord"},
		{"unknown source", "slack", AllowedSources, "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input, tt.allowed))
		})
	}
}

func TestNewTriageMetrics_NilMeter(t *testing.T) {
	m, err := NewTriageMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestNewTriageMetrics_NoopMeter(t *testing.T) {
	m, err := NewTriageMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	require.NotNil(t, m)

	ctx := context.Background()
	m.RecordItemProcessed(ctx, "github")
	m.RecordClusterOutcome(ctx, "created")
	m.RecordFallback(ctx, "classification")
	m.RecordDimensionMismatch(ctx)
	m.RecordLifecycleTransition(ctx, "resolved")
	m.RecordDelivery(ctx, "success")
	m.RecordBatchDuration(ctx, time.Second, "ok")
	m.RecordIntelligenceDuration(ctx, time.Millisecond, "embedding", true)
}

func TestTraceContextHandler_AddsBatchID(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(NewTraceContextHandler(slog.NewJSONHandler(&buf, nil)))
	logger.InfoContext(WithBatchID(context.Background(), "batch-1"), "pass started")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "batch-1", record["batch_id"])
	assert.NotContains(t, record, "trace_id")
}

func TestTraceContextHandler_NoBatchID(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(NewTraceContextHandler(slog.NewJSONHandler(&buf, nil)))
	logger.InfoContext(context.Background(), "idle")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.NotContains(t, record, "batch_id")
}

func TestParseTraceIDRatio(t *testing.T) {
	assert.InEpsilon(t, 0.25, parseTraceIDRatio("0.25"), 1e-9)
	assert.InEpsilon(t, defaultTraceIDRatio, parseTraceIDRatio(""), 1e-9)
	assert.InEpsilon(t, defaultTraceIDRatio, parseTraceIDRatio("2"), 1e-9)
	assert.InEpsilon(t, defaultTraceIDRatio, parseTraceIDRatio("abc"), 1e-9)
}
