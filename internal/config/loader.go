package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, validates it and applies
// defaults. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()
	return &cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
// Zero values are valid; they select defaults.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if addr := cfg.Server.ListenAddr; addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, fmt.Errorf("server.listen_addr %q is invalid: %w", addr, err))
		}
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout %s must not be negative", cfg.Server.ShutdownTimeout))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Pipeline
	p := cfg.Pipeline
	if p.RecencyWindow < 0 {
		errs = append(errs, fmt.Errorf("pipeline.recency_window %d must not be negative", p.RecencyWindow))
	}
	if p.NegationWindow < 0 {
		errs = append(errs, fmt.Errorf("pipeline.negation_window %d must not be negative", p.NegationWindow))
	}
	if p.AssociationGap < 0 {
		errs = append(errs, fmt.Errorf("pipeline.association_gap %d must not be negative", p.AssociationGap))
	}
	if p.PhoneticThreshold < 0 || p.PhoneticThreshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.phonetic_threshold %.2f is out of range [0, 1]", p.PhoneticThreshold))
	}
	if p.FuzzyThreshold < 0 || p.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.fuzzy_threshold %.2f is out of range [0, 1]", p.FuzzyThreshold))
	}
	if p.RecencyWindow > 20 {
		slog.Warn("pipeline.recency_window is unusually large; pronouns may bind to stale entities",
			"recency_window", p.RecencyWindow)
	}
	if p.FuzzyThreshold > 0 && p.FuzzyThreshold < 0.7 {
		slog.Warn("pipeline.fuzzy_threshold is low; expect spurious vocabulary matches",
			"fuzzy_threshold", p.FuzzyThreshold)
	}

	// Encounters
	if cfg.Encounters.MaxActive < 0 {
		errs = append(errs, fmt.Errorf("encounters.max_active %d must not be negative", cfg.Encounters.MaxActive))
	}

	// Ingest
	if k := cfg.Ingest.Kafka; k != nil {
		if len(k.Brokers) == 0 {
			errs = append(errs, errors.New("ingest.kafka.brokers is required"))
		}
		for i, b := range k.Brokers {
			if strings.TrimSpace(b) == "" {
				errs = append(errs, fmt.Errorf("ingest.kafka.brokers[%d] is empty", i))
			}
		}
		if k.Topic == "" {
			errs = append(errs, errors.New("ingest.kafka.topic is required"))
		}
		if k.GroupID == "" {
			errs = append(errs, errors.New("ingest.kafka.group_id is required"))
		}
	}

	// Telemetry
	if r := cfg.Telemetry.TraceSampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.trace_sample_ratio %.2f is out of range (0, 1]", r))
	}

	return errors.Join(errs...)
}
