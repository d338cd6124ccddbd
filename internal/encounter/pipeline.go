package encounter

import (
	"github.com/MrWong99/medscribe/internal/extract"
	"github.com/MrWong99/medscribe/internal/lexicon"
	"github.com/MrWong99/medscribe/internal/link"
	"github.com/MrWong99/medscribe/internal/observe"
	"github.com/MrWong99/medscribe/internal/resolve"
	"github.com/MrWong99/medscribe/internal/temporal"
)

// Pipeline holds the read-only parts of the comprehension pipeline shared by
// every encounter: the compiled vocabulary, the extraction rule table, the
// resolver and the time expression parser. A Pipeline is safe for concurrent
// use; all per-encounter state lives in [Encounter].
type Pipeline struct {
	extractor *extract.Extractor
	resolver  *resolve.Resolver
	parser    *temporal.Parser
	linkOpts  []link.Option
	metrics   *observe.Metrics
}

// PipelineOption configures a [Pipeline].
type PipelineOption func(*pipelineConfig)

type pipelineConfig struct {
	vocab       *lexicon.Vocabulary
	extractOpts []extract.Option
	resolveOpts []resolve.Option
	linkOpts    []link.Option
	metrics     *observe.Metrics
}

// WithVocabulary sets the compiled vocabulary. Default: the built-in one.
func WithVocabulary(v *lexicon.Vocabulary) PipelineOption {
	return func(c *pipelineConfig) { c.vocab = v }
}

// WithExtractOptions passes options to the entity extractor.
func WithExtractOptions(opts ...extract.Option) PipelineOption {
	return func(c *pipelineConfig) { c.extractOpts = append(c.extractOpts, opts...) }
}

// WithResolveOptions passes options to the reference resolver.
func WithResolveOptions(opts ...resolve.Option) PipelineOption {
	return func(c *pipelineConfig) { c.resolveOpts = append(c.resolveOpts, opts...) }
}

// WithLinkOptions passes options to every encounter's relationship linker.
func WithLinkOptions(opts ...link.Option) PipelineOption {
	return func(c *pipelineConfig) { c.linkOpts = append(c.linkOpts, opts...) }
}

// WithMetrics sets the metrics sink of every stage. Default:
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) PipelineOption {
	return func(c *pipelineConfig) { c.metrics = m }
}

// NewPipeline builds a [Pipeline].
func NewPipeline(opts ...PipelineOption) *Pipeline {
	var cfg pipelineConfig
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = observe.DefaultMetrics()
	}
	ropts := append([]resolve.Option{resolve.WithMetrics(cfg.metrics)}, cfg.resolveOpts...)

	// Linkers parse times with the extractor's parser, which extract options
	// may replace.
	xopts := append([]extract.Option{extract.WithTemporalParser(temporal.NewParser())}, cfg.extractOpts...)
	x := extract.New(cfg.vocab, xopts...)
	return &Pipeline{
		extractor: x,
		resolver:  resolve.New(ropts...),
		parser:    x.Temporal(),
		linkOpts:  cfg.linkOpts,
		metrics:   cfg.metrics,
	}
}

// Vocabulary returns the compiled vocabulary the pipeline matches against.
func (p *Pipeline) Vocabulary() *lexicon.Vocabulary { return p.extractor.Vocabulary() }

// RecencyWindow returns how many segments a pronoun may look back.
func (p *Pipeline) RecencyWindow() int { return p.resolver.Window() }

// Metrics returns the pipeline's metrics sink.
func (p *Pipeline) Metrics() *observe.Metrics { return p.metrics }
