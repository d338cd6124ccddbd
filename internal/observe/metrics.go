// Package observe provides application-wide observability primitives for
// medscribe: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all medscribe metrics.
const meterName = "github.com/MrWong99/medscribe"

// Pipeline stage names used with [Metrics.RecordStage].
const (
	StageSegment = "segment"
	StageExtract = "extract"
	StageResolve = "resolve"
	StageLink    = "link"
	StageNote    = "note"
	StageQuality = "quality"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// StageDuration tracks the latency of one pipeline stage. Use with
	// attribute:
	//   attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// --- Counters ---

	// Increments counts transcript increments processed.
	Increments metric.Int64Counter

	// Segments counts segments produced by the segmenter. Use with attribute:
	//   attribute.String("speaker", ...)
	Segments metric.Int64Counter

	// EntitiesCreated counts new entities. Use with attribute:
	//   attribute.String("type", ...)
	EntitiesCreated metric.Int64Counter

	// MentionsResolved counts mentions attached to an entity. Use with
	// attribute:
	//   attribute.String("kind", ...)
	MentionsResolved metric.Int64Counter

	// UnresolvedReferences counts definite and pronoun references that
	// matched no entity. Use with attribute:
	//   attribute.String("kind", ...)
	UnresolvedReferences metric.Int64Counter

	// NegativeFindings counts pertinent negatives recorded.
	NegativeFindings metric.Int64Counter

	// AttributeConflicts counts scalar values discarded in favour of a
	// higher-confidence value.
	AttributeConflicts metric.Int64Counter

	// NotesGenerated counts rendered notes.
	NotesGenerated metric.Int64Counter

	// IngestMessages counts messages consumed from the ingest stream. Use
	// with attribute:
	//   attribute.String("status", ...)
	IngestMessages metric.Int64Counter

	// --- Gauges ---

	// ActiveEncounters tracks the number of open encounters.
	ActiveEncounters metric.Int64UpDownCounter

	// ActiveStreams tracks the number of connected WebSocket streams.
	ActiveStreams metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Pipeline
// stages run in microseconds to milliseconds.
var latencyBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.StageDuration, err = m.Float64Histogram("medscribe.stage.duration",
		metric.WithDescription("Latency of one pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Increments, err = m.Int64Counter("medscribe.increments",
		metric.WithDescription("Total transcript increments processed."),
	); err != nil {
		return nil, err
	}
	if met.Segments, err = m.Int64Counter("medscribe.segments",
		metric.WithDescription("Total segments produced by speaker."),
	); err != nil {
		return nil, err
	}
	if met.EntitiesCreated, err = m.Int64Counter("medscribe.entities.created",
		metric.WithDescription("Total entities created by type."),
	); err != nil {
		return nil, err
	}
	if met.MentionsResolved, err = m.Int64Counter("medscribe.mentions.resolved",
		metric.WithDescription("Total mentions attached to an entity by reference kind."),
	); err != nil {
		return nil, err
	}
	if met.UnresolvedReferences, err = m.Int64Counter("medscribe.unresolved_references",
		metric.WithDescription("Total references that matched no entity."),
	); err != nil {
		return nil, err
	}
	if met.NegativeFindings, err = m.Int64Counter("medscribe.negative_findings",
		metric.WithDescription("Total pertinent negatives recorded."),
	); err != nil {
		return nil, err
	}
	if met.AttributeConflicts, err = m.Int64Counter("medscribe.attribute_conflicts",
		metric.WithDescription("Total lower-confidence attribute values discarded."),
	); err != nil {
		return nil, err
	}
	if met.NotesGenerated, err = m.Int64Counter("medscribe.notes.generated",
		metric.WithDescription("Total clinical notes rendered."),
	); err != nil {
		return nil, err
	}
	if met.IngestMessages, err = m.Int64Counter("medscribe.ingest.messages",
		metric.WithDescription("Total ingest messages by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveEncounters, err = m.Int64UpDownCounter("medscribe.active_encounters",
		metric.WithDescription("Number of open encounters."),
	); err != nil {
		return nil, err
	}
	if met.ActiveStreams, err = m.Int64UpDownCounter("medscribe.active_streams",
		metric.WithDescription("Number of connected WebSocket streams."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("medscribe.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordStage records the duration of one pipeline stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordEntityCreated records a new entity of the given type.
func (m *Metrics) RecordEntityCreated(ctx context.Context, typ string) {
	m.EntitiesCreated.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", typ)),
	)
}

// RecordMentionResolved records a mention attached to an entity.
func (m *Metrics) RecordMentionResolved(ctx context.Context, kind string) {
	m.MentionsResolved.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordUnresolved records a reference that matched no entity.
func (m *Metrics) RecordUnresolved(ctx context.Context, kind string) {
	m.UnresolvedReferences.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordIngest records one consumed ingest message.
func (m *Metrics) RecordIngest(ctx context.Context, status string) {
	m.IngestMessages.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
