// Package config provides the configuration schema, loader and file watcher
// for the medscribe service.
package config

import "time"

// LogLevel controls log verbosity for the medscribe server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Defaults applied by [Config.WithDefaults] to zero-valued fields.
const (
	DefaultListenAddr        = ":8080"
	DefaultRecencyWindow     = 5
	DefaultNegationWindow    = 5
	DefaultAssociationGap    = 2
	DefaultPhoneticThreshold = 0.80
	DefaultFuzzyThreshold    = 0.88
	DefaultServiceName       = "medscribe"
	DefaultTraceSampleRatio  = 1.0
	DefaultShutdownTimeout   = 15 * time.Second
)

// Config is the root configuration structure for medscribe.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Lexicon    LexiconConfig    `yaml:"lexicon"`
	Encounters EncountersConfig `yaml:"encounters"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings for the HTTP server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFile, when set, sends logs to a size-rotated file instead of stderr.
	LogFile string `yaml:"log_file"`

	// ShutdownTimeout bounds the graceful shutdown of the HTTP server.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// PipelineConfig tunes the comprehension stages. Changes apply to
// encounters started after a reload.
type PipelineConfig struct {
	// RecencyWindow is the number of segments a pronoun may look back to
	// find its referent.
	RecencyWindow int `yaml:"recency_window"`

	// NegationWindow is the number of tokens a negation cue covers.
	NegationWindow int `yaml:"negation_window"`

	// PertinentNegatives records denied findings as negative entries. When
	// false, denied findings are dropped.
	PertinentNegatives *bool `yaml:"pertinent_negatives"`

	// AssociationGap is the number of segments within which a symptom
	// mentioned in reply to a question is associated with the primary one.
	AssociationGap int `yaml:"association_gap"`

	// PhoneticThreshold is the minimum Jaro-Winkler similarity for a
	// phonetic vocabulary match, in (0, 1].
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`

	// FuzzyThreshold is the minimum Jaro-Winkler similarity for a plain
	// fuzzy vocabulary match, in (0, 1].
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
}

// NegativesEnabled reports whether pertinent negatives are recorded.
// Unset means enabled.
func (p PipelineConfig) NegativesEnabled() bool {
	return p.PertinentNegatives == nil || *p.PertinentNegatives
}

// LexiconConfig locates the vocabulary overlay.
type LexiconConfig struct {
	// Path is a YAML vocabulary file merged over the built-in vocabulary.
	// Empty means built-in only.
	Path string `yaml:"path"`
}

// EncountersConfig bounds the encounter manager.
type EncountersConfig struct {
	// MaxActive limits concurrently active encounters. Zero means no limit.
	MaxActive int `yaml:"max_active"`
}

// IngestConfig configures asynchronous transcript ingestion.
type IngestConfig struct {
	// Kafka is nil when Kafka ingestion is disabled.
	Kafka *KafkaConfig `yaml:"kafka"`
}

// KafkaConfig configures the Kafka increment consumer.
type KafkaConfig struct {
	// Brokers lists the bootstrap brokers ("host:port").
	Brokers []string `yaml:"brokers"`

	// Topic carries JSON transcript increments keyed by encounter id.
	Topic string `yaml:"topic"`

	// GroupID is the consumer group. Required so offsets are committed.
	GroupID string `yaml:"group_id"`
}

// TelemetryConfig configures OpenTelemetry.
type TelemetryConfig struct {
	// ServiceName is reported as the service.name resource attribute.
	ServiceName string `yaml:"service_name"`

	// Environment is reported as the deployment.environment resource
	// attribute (e.g., "staging", "clinic-prod"). Empty omits it.
	Environment string `yaml:"environment"`

	// TraceSampleRatio is the fraction of encounter traces sampled, in
	// (0, 1]. Child spans follow their parent's decision.
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`
}

// WithDefaults returns a copy of cfg with zero-valued fields filled in.
func (cfg Config) WithDefaults() Config {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Pipeline.RecencyWindow == 0 {
		cfg.Pipeline.RecencyWindow = DefaultRecencyWindow
	}
	if cfg.Pipeline.NegationWindow == 0 {
		cfg.Pipeline.NegationWindow = DefaultNegationWindow
	}
	if cfg.Pipeline.AssociationGap == 0 {
		cfg.Pipeline.AssociationGap = DefaultAssociationGap
	}
	if cfg.Pipeline.PhoneticThreshold == 0 {
		cfg.Pipeline.PhoneticThreshold = DefaultPhoneticThreshold
	}
	if cfg.Pipeline.FuzzyThreshold == 0 {
		cfg.Pipeline.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
	if cfg.Telemetry.TraceSampleRatio == 0 {
		cfg.Telemetry.TraceSampleRatio = DefaultTraceSampleRatio
	}
	return cfg
}
