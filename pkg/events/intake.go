package events

import (
	"context"
	"fmt"

	"github.com/guildpulse/guildpulse/pkg/observability"
)

// RawEventStore persists accepted events append-only, silently skipping
// exact duplicates. Implemented by pkg/store.
type RawEventStore interface {
	InsertRawEvents(ctx context.Context, batch []Event) (inserted int, err error)
}

// BatchDispatcher forwards an accepted batch to the async queue
type BatchDispatcher interface {
	DispatchBatch(ctx context.Context, batch []Event) error
}

// Intake receives event batches from the bot transport, validates them,
// persists the accepted events, and forwards them to the queue.
type Intake struct {
	store      RawEventStore
	dispatcher BatchDispatcher
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewIntake creates the intake boundary
func NewIntake(store RawEventStore, dispatcher BatchDispatcher, logger *observability.Logger, metrics *observability.Metrics) *Intake {
	return &Intake{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// ProcessBatch validates, persists, and dispatches a batch of events.
// Malformed events are dropped with a logged reason without failing the
// batch. A persistence failure aborts the whole batch and is surfaced to
// the caller for its own retry policy; intake performs no internal retry.
// Returns the number of accepted events.
func (i *Intake) ProcessBatch(ctx context.Context, batch []Event) (int, error) {
	accepted := make([]Event, 0, len(batch))
	for idx := range batch {
		ev := &batch[idx]
		if reason, err := ev.Validate(); err != nil {
			i.logger.WithFields(map[string]interface{}{
				"reason":     reason,
				"event_type": string(ev.Type),
				"guild_id":   ev.GuildID,
			}).Warn("dropping malformed event")
			if i.metrics != nil {
				i.metrics.EventsRejected.WithLabelValues(reason).Inc()
			}
			continue
		}
		accepted = append(accepted, *ev)
	}

	if len(accepted) == 0 {
		return 0, nil
	}

	inserted, err := i.store.InsertRawEvents(ctx, accepted)
	if err != nil {
		if i.metrics != nil {
			i.metrics.BatchesTotal.WithLabelValues("persistence_failure").Inc()
		}
		return 0, fmt.Errorf("failed to persist event batch: %w", err)
	}

	if i.metrics != nil {
		for idx := range accepted {
			i.metrics.EventsAccepted.WithLabelValues(string(accepted[idx].Type)).Inc()
		}
		if skipped := len(accepted) - inserted; skipped > 0 {
			i.metrics.DuplicatesSkipped.Add(float64(skipped))
		}
	}

	if err := i.dispatcher.DispatchBatch(ctx, accepted); err != nil {
		if i.metrics != nil {
			i.metrics.BatchesTotal.WithLabelValues("dispatch_failure").Inc()
		}
		return len(accepted), fmt.Errorf("failed to dispatch event batch: %w", err)
	}

	if i.metrics != nil {
		i.metrics.BatchesTotal.WithLabelValues("ok").Inc()
	}
	return len(accepted), nil
}
