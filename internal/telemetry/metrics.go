// Package telemetry provides OpenTelemetry metrics instrumentation for the
// documentation engines and the blame engine: call latency and outcome
// counters recorded against the globally registered meter provider.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/graphforge/codegraph"

// Metrics holds every OTel instrument the engine records against. Safe for
// concurrent use: the underlying OTel instruments synchronize internally.
type Metrics struct {
	// LLMCallDuration tracks documentation-generation LLM call latency.
	LLMCallDuration metric.Float64Histogram
	// LLMCalls counts LLM calls by template name and outcome ("ok", "error", "fallback").
	LLMCalls metric.Int64Counter
	// WorkerOccupancy tracks how many worker slots are currently in use.
	WorkerOccupancy metric.Int64UpDownCounter
	// BatchRounds counts wavefront rounds completed by a scheduler run.
	BatchRounds metric.Int64Counter
	// BlameQueryDuration tracks GraphQL blame query latency.
	BlameQueryDuration metric.Float64Histogram
	// BlameCacheHits counts blame cache lookups by outcome ("hit", "miss").
	BlameCacheHits metric.Int64Counter
}

var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// NewMetrics creates a fully initialized Metrics using the given
// MeterProvider. Returns an error if any instrument fails to register.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.LLMCallDuration, err = m.Float64Histogram("codegraph.llm.call.duration",
		metric.WithDescription("Latency of documentation LLM calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMCalls, err = m.Int64Counter("codegraph.llm.calls",
		metric.WithDescription("Total LLM calls by template and outcome."),
	); err != nil {
		return nil, err
	}
	if met.WorkerOccupancy, err = m.Int64UpDownCounter("codegraph.docengine.worker_occupancy",
		metric.WithDescription("Number of documentation engine worker slots currently in use."),
	); err != nil {
		return nil, err
	}
	if met.BatchRounds, err = m.Int64Counter("codegraph.batchdoc.rounds",
		metric.WithDescription("Total wavefront rounds completed."),
	); err != nil {
		return nil, err
	}
	if met.BlameQueryDuration, err = m.Float64Histogram("codegraph.blame.query.duration",
		metric.WithDescription("Latency of blame GraphQL queries."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BlameCacheHits, err = m.Int64Counter("codegraph.blame.cache",
		metric.WithDescription("Blame cache lookups by outcome (hit/miss)."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// Default returns the package-level Metrics instance, built against
// otel.GetMeterProvider() on first call. Panics if instrument creation
// fails, which should not happen against the global provider.
func Default() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("telemetry: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordLLMCall records one LLM call's latency and outcome.
func (m *Metrics) RecordLLMCall(ctx context.Context, template, outcome string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("template", template), attribute.String("outcome", outcome))
	m.LLMCallDuration.Record(ctx, seconds, attrs)
	m.LLMCalls.Add(ctx, 1, attrs)
}

// RecordBlameCacheLookup records a blame cache hit or miss.
func (m *Metrics) RecordBlameCacheLookup(ctx context.Context, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.BlameCacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
