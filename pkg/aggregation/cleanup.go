package aggregation

import (
	"context"
	"time"

	"github.com/guildpulse/guildpulse/pkg/observability"
)

// CleanupStore is the slice of the stats store retention cleanup uses
type CleanupStore interface {
	DeleteRawEventsBefore(ctx context.Context, cutoffMs int64) (int64, error)
	DeleteDailyStatsBefore(ctx context.Context, guildID, cutoffDate string) (int64, error)
}

// SessionSweeper drops voice sessions abandoned past the session TTL
type SessionSweeper interface {
	Sweep(ctx context.Context, cutoffMs int64) (int, error)
}

// Cleaner enforces the retention windows: raw events, compacted daily
// rows, and stale voice sessions.
type Cleaner struct {
	store   CleanupStore
	sweeper SessionSweeper
	logger  *observability.Logger
	metrics *observability.Metrics

	rawRetention   time.Duration
	dailyRetention time.Duration
	sessionTTL     time.Duration
}

// NewCleaner builds the retention cleaner
func NewCleaner(s CleanupStore, sweeper SessionSweeper, logger *observability.Logger, metrics *observability.Metrics,
	rawRetention, dailyRetention, sessionTTL time.Duration) *Cleaner {
	return &Cleaner{
		store:          s,
		sweeper:        sweeper,
		logger:         logger,
		metrics:        metrics,
		rawRetention:   rawRetention,
		dailyRetention: dailyRetention,
		sessionTTL:     sessionTTL,
	}
}

// CleanupRawEvents prunes raw events older than the raw retention window
func (c *Cleaner) CleanupRawEvents(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-c.rawRetention).UnixMilli()
	pruned, err := c.store.DeleteRawEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if c.metrics != nil {
		c.metrics.RowsPruned.WithLabelValues("raw_events").Add(float64(pruned))
	}
	c.logger.WithField("rows", pruned).Info("pruned raw events")
	return pruned, nil
}

// CleanupDailyStats prunes each guild's daily rows older than the daily
// retention window. Months not yet compacted into monthly rows are kept
// regardless of age; guild failures do not stop the fan-out.
func (c *Cleaner) CleanupDailyStats(ctx context.Context, guildIDs []string, now time.Time) (int64, error) {
	cutoffDate := now.UTC().Add(-c.dailyRetention).Format("2006-01-02")

	var total int64
	var firstErr error
	for _, guildID := range guildIDs {
		pruned, err := c.store.DeleteDailyStatsBefore(ctx, guildID, cutoffDate)
		if err != nil {
			c.logger.WithError(err).WithField("guild_id", guildID).Error("daily stats cleanup failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		total += pruned
	}
	if c.metrics != nil {
		c.metrics.RowsPruned.WithLabelValues("daily_channel_stats").Add(float64(total))
	}
	c.logger.WithField("rows", total).Info("pruned daily stats")
	return total, firstErr
}

// SweepSessions drops voice sessions older than the session TTL
func (c *Cleaner) SweepSessions(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-c.sessionTTL).UnixMilli()
	swept, err := c.sweeper.Sweep(ctx, cutoff)
	if c.metrics != nil && swept > 0 {
		c.metrics.SessionsSwept.Add(float64(swept))
	}
	if err != nil {
		return swept, err
	}
	c.logger.WithField("sessions", swept).Info("swept stale voice sessions")
	return swept, nil
}
