package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "tasfish"

// MetricsCollector records pipeline metrics. A zero collector (metrics
// disabled) accepts every call and records nothing.
type MetricsCollector struct {
	provider *sdkmetric.MeterProvider
	registry *promclient.Registry

	routeDecisions metric.Int64Counter
	answers        metric.Int64Counter
	answerLatency  metric.Float64Histogram

	llmRequests metric.Int64Counter
	llmLatency  metric.Float64Histogram

	toolExecutions metric.Int64Counter
	toolDuration   metric.Float64Histogram

	retrievalChunks metric.Int64Histogram
}

// MetricsConfig configures the metrics collector.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// NewMetricsCollector creates a collector backed by a private Prometheus
// registry so several collectors can coexist in one process.
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(meterName)

	m := &MetricsCollector{provider: provider, registry: registry}
	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&m.routeDecisions, "tasfish.route.decisions.total", "Routing decisions by route kind"},
		{&m.answers, "tasfish.answers.total", "Composed answers by route kind and status"},
		{&m.llmRequests, "tasfish.llm.requests.total", "Text generation requests"},
		{&m.toolExecutions, "tasfish.tool.executions.total", "Tool invocations"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
		*c.target = counter
	}

	histograms := []struct {
		target *metric.Float64Histogram
		name   string
		desc   string
	}{
		{&m.answerLatency, "tasfish.answer.latency", "End-to-end answer latency in seconds"},
		{&m.llmLatency, "tasfish.llm.latency", "Text generation latency in seconds"},
		{&m.toolDuration, "tasfish.tool.duration", "Tool invocation duration in seconds"},
	}
	for _, h := range histograms {
		hist, err := meter.Float64Histogram(h.name, metric.WithDescription(h.desc), metric.WithUnit("s"))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s histogram: %w", h.name, err)
		}
		*h.target = hist
	}

	m.retrievalChunks, err = meter.Int64Histogram(
		"tasfish.retrieval.chunks",
		metric.WithDescription("Chunks returned per retrieval"),
		metric.WithUnit("{chunk}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrieval histogram: %w", err)
	}
	return m, nil
}

// Enabled reports whether the collector exports anything.
func (m *MetricsCollector) Enabled() bool {
	return m != nil && m.provider != nil
}

// Handler exposes the Prometheus scrape endpoint. Disabled collectors serve 404.
func (m *MetricsCollector) Handler() http.Handler {
	if !m.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// RecordRoute records one routing decision.
func (m *MetricsCollector) RecordRoute(ctx context.Context, route string, succeeded bool) {
	if !m.Enabled() {
		return
	}
	m.routeDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
		attribute.Bool("succeeded", succeeded),
	))
}

// RecordAnswer records a composed answer and its end-to-end latency.
func (m *MetricsCollector) RecordAnswer(ctx context.Context, route, status string, latency time.Duration) {
	if !m.Enabled() {
		return
	}
	attrs := metric.WithAttributes(attribute.String("route", route), attribute.String("status", status))
	m.answers.Add(ctx, 1, attrs)
	m.answerLatency.Record(ctx, latency.Seconds(), attrs)
}

// RecordLLMRequest records one generation call.
func (m *MetricsCollector) RecordLLMRequest(ctx context.Context, model, status string, latency time.Duration) {
	if !m.Enabled() {
		return
	}
	attrs := metric.WithAttributes(attribute.String("model", model), attribute.String("status", status))
	m.llmRequests.Add(ctx, 1, attrs)
	m.llmLatency.Record(ctx, latency.Seconds(), attrs)
}

// RecordToolExecution records one tool invocation.
func (m *MetricsCollector) RecordToolExecution(ctx context.Context, toolName, status string, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool_name", toolName), attribute.String("status", status))
	m.toolExecutions.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordRetrieval records the number of chunks a search returned.
func (m *MetricsCollector) RecordRetrieval(ctx context.Context, section string, chunks int) {
	if !m.Enabled() {
		return
	}
	if section == "" {
		section = "any"
	}
	m.retrievalChunks.Record(ctx, int64(chunks), metric.WithAttributes(attribute.String("section", section)))
}
