package ingest

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// BreakerState is the state of the consumer's broker circuit.
type BreakerState int

const (
	// BreakerClosed means fetches run normally; failed fetches are retried
	// after the short retry backoff.
	BreakerClosed BreakerState = iota

	// BreakerOpen means consecutive fetch failures reached the limit. The
	// consumer pauses for the open period before probing the broker again,
	// and readiness fails until a probe succeeds.
	BreakerOpen
)

// String returns the human-readable name of the state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	default:
		return "unknown"
	}
}

// breaker tracks consecutive fetch failures for one consumer loop. The loop
// is the only caller of failure and success, so the probe after an open
// period is implicit: it is simply the next fetch.
type breaker struct {
	maxFailures int
	backoff     time.Duration
	openFor     time.Duration

	mu       sync.Mutex
	failures int
	lastErr  error
}

func newBreaker(maxFailures int, backoff, openFor time.Duration) *breaker {
	return &breaker{maxFailures: maxFailures, backoff: backoff, openFor: openFor}
}

// failure records a failed fetch and returns how long to pause before the
// next one.
func (b *breaker) failure(err error) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastErr = err
	switch {
	case b.failures == b.maxFailures:
		slog.Warn("ingest: broker circuit opened",
			slog.Int("consecutive_failures", b.failures),
			slog.Duration("open_for", b.openFor),
		)
		return b.openFor
	case b.failures > b.maxFailures:
		slog.Warn("ingest: broker probe failed, circuit stays open", slog.Any("err", err))
		return b.openFor
	}
	return b.backoff
}

// success records a successful fetch and closes the circuit.
func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures >= b.maxFailures {
		slog.Info("ingest: broker circuit closed after successful probe")
	}
	b.failures = 0
	b.lastErr = nil
}

func (b *breaker) state() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures >= b.maxFailures {
		return BreakerOpen
	}
	return BreakerClosed
}

// err describes the current failure, or nil after a successful fetch.
func (b *breaker) err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.lastErr == nil:
		return nil
	case b.failures >= b.maxFailures:
		return fmt.Errorf("ingest: broker circuit open after %d consecutive fetch failures: %w", b.failures, b.lastErr)
	}
	return fmt.Errorf("ingest: %w", b.lastErr)
}
