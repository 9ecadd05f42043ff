// Package metrics holds the Prometheus collectors and the tracer used by the
// knowledge base.
package metrics

import (
	"context"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Registry holds every mindkb collector. Embedders of the library can expose
// it with promhttp or merge it into their own gatherer.
var Registry = prometheus.NewRegistry()

var (
	BuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mindkb_builds_total",
			Help: "Knowledge base builds by outcome",
		},
		[]string{"outcome"},
	)
	BuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mindkb_build_duration_seconds",
			Help:    "Duration of knowledge base builds in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~27min
		},
	)
	ChunksIndexed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mindkb_chunks_indexed",
			Help: "Number of chunks in the knowledge base being served",
		},
	)
	DocumentsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mindkb_documents_skipped_total",
			Help: "Documents skipped during builds because of ingestion errors",
		},
	)
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mindkb_queries_total",
			Help: "Knowledge base queries by outcome",
		},
		[]string{"outcome"},
	)
	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mindkb_query_duration_seconds",
			Help:    "Duration of knowledge base queries in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
	)
	QueryCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mindkb_query_cache_hits_total",
			Help: "Queries answered from the query cache",
		},
	)
	DesyncRows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mindkb_desync_rows_total",
			Help: "Search hits dropped because their row had no metadata record",
		},
	)
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeEmpty   = "empty"
	OutcomeCached  = "cached"
)

var tracer = otel.Tracer("mindkb/knowledge")

func init() {
	Registry.MustRegister(
		BuildsTotal, BuildDuration, ChunksIndexed, DocumentsSkipped,
		QueriesTotal, QueryDuration, QueryCacheHits, DesyncRows,
	)
}

// WriteText writes every collector in Registry to w in the Prometheus text
// exposition format.
func WriteText(w io.Writer) error {
	families, err := Registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// StartSpan starts a span named name on the package tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
