package store

import (
	"context"
	"fmt"
)

// DeleteRawEventsBefore removes raw events older than cutoffMs across
// all guilds. Returns the number of rows pruned.
func (s *Store) DeleteRawEventsBefore(ctx context.Context, cutoffMs int64) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM raw_events WHERE timestamp_ms < $1
	`, cutoffMs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete raw events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read raw event delete result: %w", err)
	}
	return n, nil
}

// DeleteDailyStatsBefore removes a guild's daily rows older than
// cutoffDate, but only for months already compacted into monthly_stats.
// Days in a month that has not rolled up yet are kept so the rollup
// never loses data.
func (s *Store) DeleteDailyStatsBefore(ctx context.Context, guildID, cutoffDate string) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM daily_channel_stats
		WHERE guild_id = $1 AND date < $2
			AND substr(date, 1, 7) IN (
				SELECT month FROM guild_rollups WHERE guild_id = $1
			)
	`, guildID, cutoffDate)
	if err != nil {
		return 0, fmt.Errorf("failed to delete daily stats for %s: %w", guildID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read daily stats delete result: %w", err)
	}
	return n, nil
}
