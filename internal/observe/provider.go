package observe

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// PipelineInfo describes the comprehension pipeline a process runs. It is
// attached to every span and metric as resource attributes so traces from
// differently tuned deployments can be told apart.
type PipelineInfo struct {
	// Lexicon is the vocabulary overlay path; empty means built-in only.
	Lexicon string

	RecencyWindow  int
	NegationWindow int
	AssociationGap int

	// MaxEncounters is the active encounter limit; zero means unlimited.
	MaxEncounters int
}

func (p PipelineInfo) attributes() []attribute.KeyValue {
	lexicon := p.Lexicon
	if lexicon == "" {
		lexicon = "builtin"
	}
	return []attribute.KeyValue{
		AttrLexicon.String(lexicon),
		AttrRecencyWindow.Int(p.RecencyWindow),
		AttrNegationWindow.Int(p.NegationWindow),
		AttrAssociationGap.Int(p.AssociationGap),
		AttrMaxEncounters.Int(p.MaxEncounters),
	}
}

// ProviderConfig configures the OpenTelemetry SDK providers. It is built from
// the telemetry and pipeline sections of the service configuration.
type ProviderConfig struct {
	// ServiceName is the service name reported in telemetry. Default: "medscribe".
	ServiceName string

	// ServiceVersion is the service version reported in telemetry.
	ServiceVersion string

	// Environment is reported as deployment.environment when set.
	Environment string

	// InstanceID identifies this process. A random UUID is used when empty.
	InstanceID string

	// SampleRatio is the fraction of root spans sampled. Values outside
	// (0, 1) sample everything. Child spans follow their parent.
	SampleRatio float64

	// Pipeline is reported as medscribe.pipeline.* resource attributes.
	Pipeline PipelineInfo

	// TraceExporter is an optional span exporter. When nil, spans are
	// recorded but not exported.
	TraceExporter sdktrace.SpanExporter
}

func (cfg ProviderConfig) resource() (*resource.Resource, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "medscribe"
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.ServiceInstanceID(cfg.InstanceID),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	attrs = append(attrs, cfg.Pipeline.attributes()...)
	// Schemaless, so the SDK default schema URL is kept on merge.
	return resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
}

func (cfg ProviderConfig) sampler() sdktrace.Sampler {
	if cfg.SampleRatio <= 0 || cfg.SampleRatio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
}

// newTracerProvider builds the tracer provider without registering it.
func newTracerProvider(cfg ProviderConfig, res *resource.Resource) *sdktrace.TracerProvider {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(cfg.sampler()),
	}
	if cfg.TraceExporter != nil {
		opts = append(opts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	return sdktrace.NewTracerProvider(opts...)
}

// InitProvider initialises the OTel SDK and registers a Prometheus-backed
// [sdkmetric.MeterProvider] and a [sdktrace.TracerProvider] as the global
// providers. Encounter and stage spans from [StartEncounter] and
// [StartStage] are recorded through the latter.
//
// The returned shutdown function flushes and closes exporters.
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	res, err := cfg.resource()
	if err != nil {
		return nil, err
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)

	tp := newTracerProvider(cfg, res)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
