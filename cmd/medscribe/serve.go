package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/medscribe/internal/config"
	"github.com/MrWong99/medscribe/internal/encounter"
	"github.com/MrWong99/medscribe/internal/health"
	"github.com/MrWong99/medscribe/internal/ingest"
	"github.com/MrWong99/medscribe/internal/observe"
	"github.com/MrWong99/medscribe/internal/server"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var listenAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP, WebSocket and Kafka ingest service",
		Long: `Run the medscribe service.

The HTTP API manages encounters and serves notes and quality metrics; each
encounter also accepts a WebSocket stream of transcript increments. When
ingest.kafka is configured, increments are consumed from Kafka as well.
The configuration file is watched: log level, pipeline tunables and the
encounter limit are applied without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, found, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.Server.ListenAddr = listenAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, root.configPath, found)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "override server.listen_addr")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, configPath string, watch bool) error {
	// ── Logger ────────────────────────────────────────────────────────────────
	logger, level, logCloser := newLogger(cfg.Server.LogLevel, cfg.Server.LogFile)
	defer logCloser.Close()
	slog.SetDefault(logger)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, providerConfig(cfg))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Pipeline and encounters ───────────────────────────────────────────────
	pipe, lex, err := buildPipeline(cfg, metrics)
	if err != nil {
		return err
	}
	mgr := encounter.NewManager(pipe, encounter.WithMaxActive(cfg.Encounters.MaxActive))
	defer mgr.Close(context.WithoutCancel(ctx))

	slog.Info("medscribe starting",
		"version", version,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"symptoms", len(lex.Symptoms),
		"medications", len(lex.Medications),
		"max_active", cfg.Encounters.MaxActive,
		"kafka", cfg.Ingest.Kafka != nil,
	)

	// ── Config hot reload ─────────────────────────────────────────────────────
	if watch {
		w, err := config.NewWatcher(configPath, func(old, new *config.Config) {
			applyReload(mgr, level, metrics, old, new)
		})
		if err != nil {
			return err
		}
		defer w.Stop()
	}

	// ── Kafka ingest (optional) ───────────────────────────────────────────────
	checks := []health.Checker{
		health.Capacity("encounters", func() (int, int) { return mgr.Len(), cfg.Encounters.MaxActive }),
	}
	var consumer *ingest.Consumer
	if k := cfg.Ingest.Kafka; k != nil {
		reader, err := ingest.NewKafkaReader(*k)
		if err != nil {
			return err
		}
		defer reader.Close()
		consumer = ingest.New(reader, mgr, ingest.WithMetrics(metrics))
		checks = append(checks, health.Checker{Name: "kafka", Check: consumer.Check})
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	opts := []server.Option{
		server.WithMetrics(metrics),
		server.WithHealth(health.New(checks...)),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	}
	if tls := cfg.Server.TLS; tls != nil {
		opts = append(opts, server.WithTLS(tls.CertFile, tls.KeyFile))
	}
	srv := server.New(mgr, opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx, cfg.Server.ListenAddr) })
	if consumer != nil {
		g.Go(func() error { return consumer.Run(gctx) })
	}

	err = g.Wait()
	slog.Info("medscribe stopped")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// applyReload applies the hot-reloadable parts of a config change.
// Running encounters keep their pipeline; new ones use the rebuilt one.
func applyReload(mgr *encounter.Manager, level *slog.LevelVar, m *observe.Metrics, old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged {
		level.Set(slogLevel(d.NewLogLevel))
		slog.Info("config: log level changed", "level", d.NewLogLevel)
	}
	if d.PipelineChanged {
		pipe, _, err := buildPipeline(new, m)
		if err != nil {
			slog.Error("config: keeping previous pipeline", "err", err)
		} else {
			mgr.SetPipeline(pipe)
			slog.Info("config: pipeline rebuilt",
				"lexicon_changed", d.LexiconChanged,
				"recency_window", pipe.RecencyWindow(),
				"symptoms", pipe.Vocabulary().Symptoms.Len(),
			)
		}
	}
	if d.MaxActiveChanged {
		mgr.SetMaxActive(d.NewMaxActive)
		slog.Info("config: encounter limit changed", "max_active", d.NewMaxActive)
	}
	if d.RestartRequired {
		slog.Warn("config: some changes take effect only after a restart")
	}
}
