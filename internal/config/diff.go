package config

import "slices"

// ConfigDiff describes what changed between two configs. Only settings that
// can be applied without a restart are tracked; anything else (listen
// address, Kafka, telemetry) needs a restart and is reported as
// RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PipelineChanged is true when a pipeline tunable or the lexicon path
	// changed. New encounters pick up the rebuilt pipeline.
	PipelineChanged bool
	LexiconChanged  bool

	MaxActiveChanged bool
	NewMaxActive     int

	RestartRequired bool
}

// Changed reports whether any hot-reloadable setting changed.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.PipelineChanged || d.MaxActiveChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	var d ConfigDiff

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Lexicon.Path != new.Lexicon.Path {
		d.LexiconChanged = true
		d.PipelineChanged = true
	}
	if !pipelineEqual(old.Pipeline, new.Pipeline) {
		d.PipelineChanged = true
	}

	if old.Encounters.MaxActive != new.Encounters.MaxActive {
		d.MaxActiveChanged = true
		d.NewMaxActive = new.Encounters.MaxActive
	}

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Server.LogFile != new.Server.LogFile ||
		!tlsEqual(old.Server.TLS, new.Server.TLS) ||
		!kafkaEqual(old.Ingest.Kafka, new.Ingest.Kafka) ||
		old.Telemetry != new.Telemetry {
		d.RestartRequired = true
	}
	return d
}

func pipelineEqual(a, b PipelineConfig) bool {
	return a.RecencyWindow == b.RecencyWindow &&
		a.NegationWindow == b.NegationWindow &&
		a.NegativesEnabled() == b.NegativesEnabled() &&
		a.AssociationGap == b.AssociationGap &&
		a.PhoneticThreshold == b.PhoneticThreshold &&
		a.FuzzyThreshold == b.FuzzyThreshold
}

func tlsEqual(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func kafkaEqual(a, b *KafkaConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Topic == b.Topic && a.GroupID == b.GroupID && slices.Equal(a.Brokers, b.Brokers)
}
