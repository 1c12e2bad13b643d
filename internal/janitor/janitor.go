// Package janitor implements background cleanup of expired secrets. The
// request path never deletes expired records; this loop owns their physical
// removal so lifecycle concerns stay isolated from retrieval logic.
package janitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/veil-sh/veil/internal/metrics"
)

// Store abstracts the single operation the janitor requires.
type Store interface {
	// CleanupExpired deletes records whose expiry precedes t and returns the
	// number removed.
	CleanupExpired(ctx context.Context, t time.Time) (int, error)
}

// Config holds tunables for the Janitor.
type Config struct {
	Interval time.Duration     // how often a cycle begins
	Logger   *slog.Logger      // optional logger (defaults to slog.Default())
	Registry *metrics.Registry // optional service counters
}

// Janitor encapsulates the background cleanup loop.
type Janitor struct {
	store Store
	cfg   Config

	ticker *time.Ticker
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// New constructs but does not start a Janitor.
func New(store Store, cfg Config) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Janitor{
		store:  store,
		cfg:    cfg,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the janitor loop in a new goroutine.
func (j *Janitor) Start(ctx context.Context) {
	if j.ticker != nil {
		return
	} // already started
	j.ticker = time.NewTicker(j.cfg.Interval)
	go j.loop(ctx)
}

// Stop signals the loop to exit and waits for completion.
func (j *Janitor) Stop() {
	j.once.Do(func() { close(j.stopCh) })
	<-j.doneCh
}

func (j *Janitor) loop(ctx context.Context) {
	log := j.cfg.Logger.With("domain", "janitor")
	defer func() {
		if j.ticker != nil {
			j.ticker.Stop()
		}
		close(j.doneCh)
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info("janitor stop", "reason", "context_cancel")
			return
		case <-j.stopCh:
			log.Info("janitor stop", "reason", "stop_signal")
			return
		case <-j.ticker.C:
			j.runCycle(ctx)
		}
	}
}

// runCycle performs one expired-record sweep.
func (j *Janitor) runCycle(ctx context.Context) {
	start := time.Now()
	log := j.cfg.Logger.With("domain", "janitor", "action", "cycle")
	count, err := j.store.CleanupExpired(ctx, time.Now().UTC())
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error("cycle failed", "error", err)
		}
		return
	}
	j.cfg.Registry.Add(metrics.CounterSecretsExpired, int64(count))
	log.Info("cycle complete", "deleted", count, "ms", time.Since(start).Milliseconds())
}
