package main

import (
	"fmt"

	"github.com/MrWong99/medscribe/internal/config"
	"github.com/MrWong99/medscribe/internal/encounter"
	"github.com/MrWong99/medscribe/internal/extract"
	"github.com/MrWong99/medscribe/internal/lexicon"
	"github.com/MrWong99/medscribe/internal/lexicon/phonetic"
	"github.com/MrWong99/medscribe/internal/link"
	"github.com/MrWong99/medscribe/internal/observe"
	"github.com/MrWong99/medscribe/internal/resolve"
)

// buildPipeline compiles the vocabulary and applies the pipeline tunables
// of cfg.
func buildPipeline(cfg *config.Config, m *observe.Metrics) (*encounter.Pipeline, *lexicon.Lexicon, error) {
	lex, err := lexicon.Load(cfg.Lexicon.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("build pipeline: %w", err)
	}
	p := cfg.Pipeline
	pipe := encounter.NewPipeline(
		encounter.WithVocabulary(lex.Compile()),
		encounter.WithMetrics(m),
		encounter.WithExtractOptions(
			extract.WithNegationWindow(p.NegationWindow),
			extract.WithPertinentNegatives(p.NegativesEnabled()),
			extract.WithPhoneticOptions(
				phonetic.WithPhoneticThreshold(p.PhoneticThreshold),
				phonetic.WithFuzzyThreshold(p.FuzzyThreshold),
			),
		),
		encounter.WithResolveOptions(resolve.WithRecencyWindow(p.RecencyWindow)),
		encounter.WithLinkOptions(link.WithAssociationGap(p.AssociationGap)),
	)
	return pipe, lex, nil
}

// providerConfig describes this process to OpenTelemetry.
func providerConfig(cfg *config.Config) observe.ProviderConfig {
	return observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		SampleRatio:    cfg.Telemetry.TraceSampleRatio,
		Pipeline: observe.PipelineInfo{
			Lexicon:        cfg.Lexicon.Path,
			RecencyWindow:  cfg.Pipeline.RecencyWindow,
			NegationWindow: cfg.Pipeline.NegationWindow,
			AssociationGap: cfg.Pipeline.AssociationGap,
			MaxEncounters:  cfg.Encounters.MaxActive,
		},
	}
}
