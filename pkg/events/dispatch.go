package events

import (
	"context"
	"fmt"

	"github.com/guildpulse/guildpulse/pkg/observability"
	"github.com/guildpulse/guildpulse/pkg/queue"
)

// Dispatcher fans a validated event list out into named queue jobs, one
// job per event, tagged with its target processor and a priority derived
// from the event class. It performs no business logic.
type Dispatcher struct {
	queue  *queue.Queue
	logger *observability.Logger
}

// NewDispatcher creates a dispatcher on top of the job queue
func NewDispatcher(q *queue.Queue, logger *observability.Logger) *Dispatcher {
	return &Dispatcher{queue: q, logger: logger}
}

// DispatchBatch enqueues one job per event. The first enqueue failure is
// logged and propagated; the caller decides whether lost events are
// acceptable.
func (d *Dispatcher) DispatchBatch(ctx context.Context, batch []Event) error {
	for i := range batch {
		ev := &batch[i]
		if _, err := d.queue.Enqueue(ctx, ev.Type.JobName(), ev, ev.Type.QueuePriority()); err != nil {
			d.logger.WithError(err).WithFields(map[string]interface{}{
				"event_type": string(ev.Type),
				"guild_id":   ev.GuildID,
			}).Error("failed to enqueue event")
			return fmt.Errorf("failed to enqueue %s event: %w", ev.Type, err)
		}
	}
	return nil
}
