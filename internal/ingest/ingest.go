// Package ingest feeds transcript increments from Kafka into the encounter
// manager.
//
// Each Kafka message carries one JSON [Envelope]. The encounter id comes
// from the envelope or, when absent there, from the message key; producers
// should key by encounter id so a partition preserves arrival order. An
// unknown id starts a new encounter. Messages that cannot be parsed or are
// rejected by the manager are logged, counted and committed so a single bad
// record never blocks the partition.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MrWong99/medscribe/internal/config"
	"github.com/MrWong99/medscribe/internal/encounter"
	"github.com/MrWong99/medscribe/internal/observe"
	"github.com/MrWong99/medscribe/internal/transcript"
)

// Ingest outcome labels recorded with [observe.Metrics.RecordIngest].
const (
	StatusProcessed = "processed"
	StatusEnded     = "ended"
	StatusInvalid   = "invalid"
	StatusRejected  = "rejected"
)

// Envelope is the JSON value of a Kafka message.
type Envelope struct {
	transcript.Message

	// End closes the encounter after the message text (if any) is processed.
	End bool `json:"end,omitempty"`
}

// Reader is the subset of [*kafka.Reader] the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaReader builds a consumer-group reader for cfg.
func NewKafkaReader(cfg config.KafkaConfig) (*kafka.Reader, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("ingest: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("ingest: topic is required")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("ingest: group id is required")
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0, // synchronous commits
		StartOffset:    kafka.FirstOffset,
	}), nil
}

// Option configures a [Consumer].
type Option func(*Consumer)

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Consumer) { c.metrics = m }
}

// WithRetryBackoff sets the pause after a failed fetch while the broker
// circuit is closed. Default: 1s.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// WithCircuitBreaker opens the broker circuit after maxFailures consecutive
// fetch failures and pauses fetching for openFor before probing again.
// Default: 5 failures, 30s.
func WithCircuitBreaker(maxFailures int, openFor time.Duration) Option {
	return func(c *Consumer) {
		if maxFailures > 0 {
			c.maxFailures = maxFailures
		}
		if openFor > 0 {
			c.openFor = openFor
		}
	}
}

// Consumer reads increments from a [Reader] and applies them to encounters.
type Consumer struct {
	reader  Reader
	mgr     *encounter.Manager
	metrics *observe.Metrics

	backoff     time.Duration
	maxFailures int
	openFor     time.Duration
	breaker     *breaker
}

// New creates a [Consumer].
func New(r Reader, mgr *encounter.Manager, opts ...Option) *Consumer {
	c := &Consumer{
		reader:      r,
		mgr:         mgr,
		backoff:     time.Second,
		maxFailures: 5,
		openFor:     30 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	c.breaker = newBreaker(c.maxFailures, c.backoff, c.openFor)
	return c
}

// Run consumes until ctx is cancelled and returns nil then. Fetch failures
// are retried after the backoff, or after the open period once the broker
// circuit has opened. Run does not close the reader.
func (c *Consumer) Run(ctx context.Context) error {
	log := observe.Logger(ctx)
	log.Info("ingest: consumer started")
	defer log.Info("ingest: consumer stopped")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("ingest: fetch failed", slog.Any("err", err))
			pause := c.breaker.failure(err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pause):
			}
			continue
		}
		c.breaker.success()

		status := c.handle(ctx, msg)
		c.metrics.RecordIngest(ctx, status)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("ingest: commit failed",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Any("err", err),
			)
		}
	}
}

// Check reports the last fetch error, or nil once a fetch has succeeded
// since. It serves as a readiness check.
func (c *Consumer) Check(context.Context) error {
	return c.breaker.err()
}

// BreakerState reports whether the broker circuit is open.
func (c *Consumer) BreakerState() BreakerState {
	return c.breaker.state()
}

// handle applies one message and returns its outcome label.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) string {
	log := observe.Logger(ctx).With(
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
	)

	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		log.Warn("ingest: skipping malformed message", slog.Any("err", err))
		return StatusInvalid
	}
	id := env.EncounterID
	if id == "" {
		id = string(msg.Key)
	}
	if id == "" {
		log.Warn("ingest: skipping message without encounter id")
		return StatusInvalid
	}
	ctx = observe.WithEncounter(ctx, id)
	log = observe.Logger(ctx).With(
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
	)

	if env.End && env.Text == "" {
		if err := c.mgr.End(ctx, id); err != nil {
			log.Warn("ingest: end rejected", slog.Any("err", err))
			return StatusRejected
		}
		return StatusEnded
	}

	inc, err := env.Increment()
	if err != nil {
		log.Warn("ingest: skipping invalid increment", slog.Any("err", err))
		return StatusInvalid
	}
	e, started, err := c.mgr.GetOrStart(ctx, id)
	if err != nil {
		log.Warn("ingest: encounter rejected", slog.Any("err", err))
		return StatusRejected
	}
	if started {
		log.Debug("ingest: started encounter from stream")
	}
	if _, err := e.Process(ctx, inc); err != nil {
		log.Warn("ingest: increment rejected", slog.Any("err", err))
		return StatusRejected
	}

	if env.End {
		if err := c.mgr.End(ctx, id); err != nil {
			log.Warn("ingest: end rejected", slog.Any("err", err))
			return StatusRejected
		}
		return StatusEnded
	}
	return StatusProcessed
}
