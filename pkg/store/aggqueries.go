package store

import (
	"context"
	"fmt"
)

// WindowEventCounts returns per-type raw event counts for a guild over
// [startMs, endMs).
func (s *Store) WindowEventCounts(ctx context.Context, guildID string, startMs, endMs int64) (map[string]int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_type, COUNT(*) FROM raw_events
		WHERE guild_id = $1 AND timestamp_ms >= $2 AND timestamp_ms < $3
		GROUP BY event_type
	`, guildID, startMs, endMs)
	if err != nil {
		return nil, fmt.Errorf("failed to count window events for %s: %w", guildID, err)
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var eventType string
		var n int64
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, fmt.Errorf("failed to scan event count row: %w", err)
		}
		counts[eventType] = n
	}
	return counts, rows.Err()
}

// CountUniqueActiveUsers returns the number of distinct users with at
// least one raw event in [startMs, endMs). Events carrying no user are
// excluded.
func (s *Store) CountUniqueActiveUsers(ctx context.Context, guildID string, startMs, endMs int64) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT user_id) FROM raw_events
		WHERE guild_id = $1 AND timestamp_ms >= $2 AND timestamp_ms < $3
			AND user_id <> ''
	`, guildID, startMs, endMs).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active users for %s: %w", guildID, err)
	}
	return n, nil
}

// UserHour is one member's message count in one UTC hour of a day
type UserHour struct {
	UserID string
	Hour   int
	Count  int64
}

// MessageHourCounts returns, per member, how many messages landed in
// each UTC hour of the window. Used by the daily pass to compute true
// peak hours from raw events.
func (s *Store) MessageHourCounts(ctx context.Context, guildID string, startMs, endMs int64) ([]UserHour, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, (timestamp_ms / 3600000) % 24 AS hour, COUNT(*)
		FROM raw_events
		WHERE guild_id = $1 AND timestamp_ms >= $2 AND timestamp_ms < $3
			AND event_type = 'MESSAGE_CREATE' AND user_id <> ''
		GROUP BY user_id, hour
		ORDER BY user_id, hour
	`, guildID, startMs, endMs)
	if err != nil {
		return nil, fmt.Errorf("failed to count message hours for %s: %w", guildID, err)
	}
	defer rows.Close()

	var out []UserHour
	for rows.Next() {
		var uh UserHour
		if err := rows.Scan(&uh.UserID, &uh.Hour, &uh.Count); err != nil {
			return nil, fmt.Errorf("failed to scan message hour row: %w", err)
		}
		out = append(out, uh)
	}
	return out, rows.Err()
}
