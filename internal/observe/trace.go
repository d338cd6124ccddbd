package observe

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the medscribe tracer.
const tracerName = "github.com/MrWong99/medscribe"

// Span and resource attribute keys.
const (
	AttrEncounterID = attribute.Key("medscribe.encounter.id")
	AttrSegmentID   = attribute.Key("medscribe.segment.id")
	AttrSpeaker     = attribute.Key("medscribe.segment.speaker")
	AttrStage       = attribute.Key("medscribe.pipeline.stage")

	AttrLexicon        = attribute.Key("medscribe.pipeline.lexicon")
	AttrRecencyWindow  = attribute.Key("medscribe.pipeline.recency_window")
	AttrNegationWindow = attribute.Key("medscribe.pipeline.negation_window")
	AttrAssociationGap = attribute.Key("medscribe.pipeline.association_gap")
	AttrMaxEncounters  = attribute.Key("medscribe.encounters.max_active")
)

// Tracer returns the medscribe tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a new span. The caller must call span.End().
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

type encounterKey struct{}

// WithEncounter returns a context carrying the encounter id. [Logger] adds
// it to every record and [StartStage] to every stage span.
func WithEncounter(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, encounterKey{}, id)
}

// EncounterID returns the id set by [WithEncounter], or "".
func EncounterID(ctx context.Context) string {
	id, _ := ctx.Value(encounterKey{}).(string)
	return id
}

// StartEncounter starts the span covering one transcript increment of an
// encounter and tags ctx with the encounter id.
func StartEncounter(ctx context.Context, op, id string) (context.Context, trace.Span) {
	ctx = WithEncounter(ctx, id)
	return StartSpan(ctx, "encounter."+op,
		trace.WithAttributes(AttrEncounterID.String(id)),
	)
}

// Stage is a running pipeline stage started by [StartStage].
type Stage struct {
	ctx   context.Context
	span  trace.Span
	name  string
	start time.Time
	m     *Metrics
}

// StartStage starts a "pipeline.<stage>" child span for one segment. End
// records the stage duration on m, which may be nil.
func StartStage(ctx context.Context, m *Metrics, stage string, segment int) (context.Context, *Stage) {
	attrs := []attribute.KeyValue{AttrStage.String(stage)}
	if segment >= 0 {
		attrs = append(attrs, AttrSegmentID.Int(segment))
	}
	if id := EncounterID(ctx); id != "" {
		attrs = append(attrs, AttrEncounterID.String(id))
	}
	ctx, span := StartSpan(ctx, "pipeline."+stage, trace.WithAttributes(attrs...))
	return ctx, &Stage{ctx: ctx, span: span, name: stage, start: time.Now(), m: m}
}

// End ends the span with attrs describing the stage outcome and records the
// stage duration.
func (s *Stage) End(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
	s.span.End()
	if s.m != nil {
		s.m.RecordStage(s.ctx, s.name, time.Since(s.start))
	}
}

// Fail marks the stage span as failed. End must still be called.
func (s *Stage) Fail(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// CorrelationID returns the trace id of the span in ctx, or "". The HTTP API
// echoes it so a client can find the trace of its request.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger enriched with the encounter id and the
// trace and span ids found in ctx.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if id := EncounterID(ctx); id != "" {
		l = l.With(slog.String("encounter_id", id))
	}
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
