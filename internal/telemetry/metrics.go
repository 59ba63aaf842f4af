package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ToolCallOutcome labels the result of a tool execution in metrics.
type ToolCallOutcome string

const (
	ToolCallOutcomeSuccess ToolCallOutcome = "success"
	ToolCallOutcomeError   ToolCallOutcome = "error"
	ToolCallOutcomeTimeout ToolCallOutcome = "timeout"
)

// CustomMetrics is the capability interface the services record
// against. A no-op implementation is wired when telemetry is disabled,
// so callers never check whether metrics are on.
type CustomMetrics interface {
	// RecordToolCall records one execution with its outcome and
	// duration.
	RecordToolCall(ctx context.Context, toolName, implType string, outcome ToolCallOutcome, duration time.Duration)

	// RecordToolFind records one retrieval with the search mode that
	// actually served it and the number of results.
	RecordToolFind(ctx context.Context, mode string, degraded bool, results int, duration time.Duration)

	// RecordEmbeddingRequest records one embedding lookup, cache hits
	// included.
	RecordEmbeddingRequest(ctx context.Context, cacheHit bool, err bool, duration time.Duration)
}

// noopCustomMetrics discards all recordings.
type noopCustomMetrics struct{}

// NewNoopCustomMetrics returns a CustomMetrics that does nothing.
func NewNoopCustomMetrics() CustomMetrics {
	return &noopCustomMetrics{}
}

func (n *noopCustomMetrics) RecordToolCall(context.Context, string, string, ToolCallOutcome, time.Duration) {
}
func (n *noopCustomMetrics) RecordToolFind(context.Context, string, bool, int, time.Duration) {}
func (n *noopCustomMetrics) RecordEmbeddingRequest(context.Context, bool, bool, time.Duration) {}

// otelCustomMetrics records against OTel instruments backed by the
// Prometheus exporter.
type otelCustomMetrics struct {
	toolCalls        metric.Int64Counter
	toolCallDuration metric.Float64Histogram

	toolFinds        metric.Int64Counter
	toolFindDuration metric.Float64Histogram
	toolFindResults  metric.Int64Histogram

	embeddingRequests metric.Int64Counter
	embeddingDuration metric.Float64Histogram
}

// NewOtelCustomMetrics creates the real instruments on the given
// meter.
func NewOtelCustomMetrics(meter metric.Meter) (CustomMetrics, error) {
	toolCalls, err := meter.Int64Counter(
		"toolscout_tool_calls_total",
		metric.WithDescription("Number of tool executions, labeled by tool, implementation type and outcome"),
	)
	if err != nil {
		return nil, err
	}
	toolCallDuration, err := meter.Float64Histogram(
		"toolscout_tool_call_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	toolFinds, err := meter.Int64Counter(
		"toolscout_find_tool_total",
		metric.WithDescription("Number of retrieval requests, labeled by search mode"),
	)
	if err != nil {
		return nil, err
	}
	toolFindDuration, err := meter.Float64Histogram(
		"toolscout_find_tool_duration_seconds",
		metric.WithDescription("Retrieval duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	toolFindResults, err := meter.Int64Histogram(
		"toolscout_find_tool_results",
		metric.WithDescription("Number of results returned per retrieval"),
	)
	if err != nil {
		return nil, err
	}
	embeddingRequests, err := meter.Int64Counter(
		"toolscout_embedding_requests_total",
		metric.WithDescription("Number of embedding lookups, labeled by cache outcome"),
	)
	if err != nil {
		return nil, err
	}
	embeddingDuration, err := meter.Float64Histogram(
		"toolscout_embedding_duration_seconds",
		metric.WithDescription("Embedding lookup duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &otelCustomMetrics{
		toolCalls:         toolCalls,
		toolCallDuration:  toolCallDuration,
		toolFinds:         toolFinds,
		toolFindDuration:  toolFindDuration,
		toolFindResults:   toolFindResults,
		embeddingRequests: embeddingRequests,
		embeddingDuration: embeddingDuration,
	}, nil
}

func (m *otelCustomMetrics) RecordToolCall(
	ctx context.Context, toolName, implType string, outcome ToolCallOutcome, duration time.Duration,
) {
	attrs := metric.WithAttributes(
		attribute.String("tool", toolName),
		attribute.String("implementation_type", implType),
		attribute.String("outcome", string(outcome)),
	)
	m.toolCalls.Add(ctx, 1, attrs)
	m.toolCallDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *otelCustomMetrics) RecordToolFind(
	ctx context.Context, mode string, degraded bool, results int, duration time.Duration,
) {
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.Bool("degraded", degraded),
	)
	m.toolFinds.Add(ctx, 1, attrs)
	m.toolFindDuration.Record(ctx, duration.Seconds(), attrs)
	m.toolFindResults.Record(ctx, int64(results), attrs)
}

func (m *otelCustomMetrics) RecordEmbeddingRequest(
	ctx context.Context, cacheHit bool, errored bool, duration time.Duration,
) {
	attrs := metric.WithAttributes(
		attribute.Bool("cache_hit", cacheHit),
		attribute.Bool("error", errored),
	)
	m.embeddingRequests.Add(ctx, 1, attrs)
	m.embeddingDuration.Record(ctx, duration.Seconds(), attrs)
}
