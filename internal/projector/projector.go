// Package projector applies trip change events to the read-side cache.
package projector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/syntrixbase/tripsync/internal/cache"
	"github.com/syntrixbase/tripsync/internal/channel"
	"github.com/syntrixbase/tripsync/internal/core/pubsub"
	"github.com/syntrixbase/tripsync/internal/events"
	"github.com/syntrixbase/tripsync/internal/metrics"
)

// Outcome describes what applying an event did to the cache.
type Outcome string

const (
	OutcomeApplied Outcome = metrics.OutcomeApplied
	OutcomeStale   Outcome = metrics.OutcomeStale
)

// Projector is the only writer of the cache. It is safe for concurrent use
// as long as events of one trip are applied sequentially.
type Projector struct {
	cache  cache.Store
	logger *slog.Logger
}

var _ channel.Handler = (*Projector)(nil)

// New creates a Projector writing to store.
func New(store cache.Store, logger *slog.Logger) *Projector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Projector{cache: store, logger: logger.With("component", "projector")}
}

// Handle decodes msg and applies it. Decode failures and unknown change
// types are returned as dead-letter errors; cache failures as plain errors.
func (p *Projector) Handle(ctx context.Context, msg pubsub.Message) error {
	start := time.Now()
	defer func() { metrics.ProjectorLatency.Observe(time.Since(start).Seconds()) }()

	ev, err := events.Decode(msg.Data())
	if err != nil {
		metrics.ProjectorOutcomes.WithLabelValues(metrics.OutcomeDeadLettered).Inc()
		return channel.DeadLetter(channel.ReasonParseError, err)
	}

	outcome, err := p.Apply(ctx, ev)
	if err != nil {
		metrics.ProjectorOutcomes.WithLabelValues(metrics.OutcomeDeadLettered).Inc()
		return err
	}
	metrics.ProjectorOutcomes.WithLabelValues(string(outcome)).Inc()
	return nil
}

// Apply writes ev to the cache. Insert and Update replace the entry unless
// the cached version is the same or newer; Delete always removes it.
func (p *Projector) Apply(ctx context.Context, ev *events.ChangeEvent) (Outcome, error) {
	if !ev.ChangeType.IsValid() {
		return "", channel.DeadLetter(channel.ReasonUnknownChangeType,
			fmt.Errorf("%w: %q for trip %s", events.ErrUnknownChangeType, ev.ChangeType, ev.TripNumber))
	}
	if err := ev.Validate(); err != nil {
		return "", channel.DeadLetter(channel.ReasonParseError, err)
	}

	logger := p.logger.With("trip_number", ev.TripNumber, "change_type", ev.ChangeType, "version", ev.Version)

	if ev.ChangeType == events.ChangeDelete {
		if err := p.cache.Remove(ctx, ev.TripNumber); err != nil {
			return "", fmt.Errorf("remove cached trip %s: %w", ev.TripNumber, err)
		}
		logger.Debug("Cache entry removed")
		return OutcomeApplied, nil
	}

	snap := ev.Snapshot()

	current, err := p.cache.Get(ctx, ev.TripNumber)
	switch {
	case err == nil && current.Version >= snap.Version:
		logger.Debug("Stale event dropped", "cached_version", current.Version)
		return OutcomeStale, nil
	case err != nil && !errors.Is(err, cache.ErrMiss):
		logger.Warn("Cached entry unreadable, overwriting", "error", err)
	}

	if err := p.cache.Set(ctx, snap, 0); err != nil {
		return "", fmt.Errorf("cache trip %s: %w", ev.TripNumber, err)
	}
	logger.Debug("Cache entry replaced", "ttl", p.cache.TTLFor(snap.Status))
	return OutcomeApplied, nil
}
