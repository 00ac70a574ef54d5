package aggregation

import (
	"context"
	"fmt"
	"time"

	"github.com/guildpulse/guildpulse/pkg/events"
	"github.com/guildpulse/guildpulse/pkg/observability"
	"github.com/guildpulse/guildpulse/pkg/queue"
	"github.com/guildpulse/guildpulse/pkg/store"
)

// Period types written to metrics snapshots
const (
	PeriodFiveMinute = "5min"
	PeriodHourly     = "hourly"
	PeriodDaily      = "daily"
)

// JobAggregateWindow is the queue job name for window aggregation
const JobAggregateWindow = "aggregate-window"

// WindowJob is the payload of an aggregate-window job
type WindowJob struct {
	GuildID    string `json:"guildId"`
	StartMs    int64  `json:"startMs"`
	EndMs      int64  `json:"endMs"`
	PeriodType string `json:"periodType"`
}

// WindowStore is the slice of the stats store window aggregation uses
type WindowStore interface {
	WindowEventCounts(ctx context.Context, guildID string, startMs, endMs int64) (map[string]int64, error)
	CountUniqueActiveUsers(ctx context.Context, guildID string, startMs, endMs int64) (int64, error)
	InsertSnapshot(ctx context.Context, snap store.MetricsSnapshot) (bool, error)
	MessageHourCounts(ctx context.Context, guildID string, startMs, endMs int64) ([]store.UserHour, error)
	SetPeakHour(ctx context.Context, guildID, userID, date string, hour int) error
}

// Aggregator computes snapshots over closed time windows of raw events
type Aggregator struct {
	store   WindowStore
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewAggregator builds the window aggregator
func NewAggregator(s WindowStore, logger *observability.Logger, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{store: s, logger: logger, metrics: metrics, now: time.Now}
}

// HandleWindow is the queue handler for aggregate-window jobs
func (a *Aggregator) HandleWindow(ctx context.Context, job *queue.Job) error {
	var wj WindowJob
	if err := job.DecodePayload(&wj); err != nil {
		return err
	}
	return a.AggregateWindow(ctx, wj)
}

// AggregateWindow computes and writes the snapshot for one closed
// window. A window with no events still yields a zero snapshot so
// timelines have no gaps. Re-running a window is a no-op: the first
// snapshot written wins.
func (a *Aggregator) AggregateWindow(ctx context.Context, wj WindowJob) error {
	if wj.GuildID == "" || wj.EndMs <= wj.StartMs || wj.PeriodType == "" {
		return fmt.Errorf("invalid window job %+v", wj)
	}

	counts, err := a.store.WindowEventCounts(ctx, wj.GuildID, wj.StartMs, wj.EndMs)
	if err != nil {
		return err
	}
	activeUsers, err := a.store.CountUniqueActiveUsers(ctx, wj.GuildID, wj.StartMs, wj.EndMs)
	if err != nil {
		return err
	}

	snap := store.MetricsSnapshot{
		GuildID:           wj.GuildID,
		PeriodStartMs:     wj.StartMs,
		PeriodEndMs:       wj.EndMs,
		PeriodType:        wj.PeriodType,
		TotalMessages:     counts[string(events.TypeMessageCreate)],
		TotalReactions:    counts[string(events.TypeReactionAdd)],
		UniqueActiveUsers: activeUsers,
		EventCounts:       counts,
		CreatedAtMs:       a.now().UnixMilli(),
	}
	// Voice state updates arrive in join/leave pairs, so half the count
	// approximates completed sessions within the window.
	snap.TotalVoiceMinutes = counts[string(events.TypeVoiceStateUpdate)] / 2

	written, err := a.store.InsertSnapshot(ctx, snap)
	if err != nil {
		return err
	}
	if written {
		if a.metrics != nil {
			a.metrics.SnapshotsWritten.WithLabelValues(wj.PeriodType).Inc()
		}
	} else {
		a.logger.WithFields(map[string]interface{}{
			"guild_id":    wj.GuildID,
			"period_type": wj.PeriodType,
			"start_ms":    wj.StartMs,
		}).Debug("snapshot already exists, keeping first write")
	}

	// The correction is idempotent, so it runs even when the snapshot
	// already existed: a retry after a partial first run must still
	// finish the peak-hour pass.
	if wj.PeriodType == PeriodDaily {
		return a.correctPeakHours(ctx, wj)
	}
	return nil
}

// correctPeakHours recomputes each member's true busiest hour from raw
// events and overwrites the provisional last-write-wins value the
// message processor left on the daily rows.
func (a *Aggregator) correctPeakHours(ctx context.Context, wj WindowJob) error {
	rows, err := a.store.MessageHourCounts(ctx, wj.GuildID, wj.StartMs, wj.EndMs)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	date := time.UnixMilli(wj.StartMs).UTC().Format("2006-01-02")

	peak := map[string]store.UserHour{}
	for _, uh := range rows {
		best, ok := peak[uh.UserID]
		// Ties go to the earliest hour; rows arrive hour-ascending
		if !ok || uh.Count > best.Count {
			peak[uh.UserID] = uh
		}
	}

	for userID, uh := range peak {
		if err := a.store.SetPeakHour(ctx, wj.GuildID, userID, date, uh.Hour); err != nil {
			return err
		}
	}
	return nil
}

// EnqueueWindows pushes one aggregate-window job per guild onto the
// queue. Failures are isolated: one guild's enqueue error does not stop
// the fan-out, and the first error is returned after all guilds were
// attempted.
func EnqueueWindows(ctx context.Context, q *queue.Queue, guildIDs []string, startMs, endMs int64, periodType string) error {
	var firstErr error
	for _, guildID := range guildIDs {
		_, err := q.Enqueue(ctx, JobAggregateWindow, WindowJob{
			GuildID:    guildID,
			StartMs:    startMs,
			EndMs:      endMs,
			PeriodType: periodType,
		}, queue.PriorityLow)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to enqueue window for %s: %w", guildID, err)
		}
	}
	return firstErr
}
