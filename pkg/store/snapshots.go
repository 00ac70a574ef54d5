package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// MetricsSnapshot is the immutable aggregate for one guild over one
// closed time window. Snapshots are write-once: a second write for the
// same (guild, window, period type) is a no-op.
type MetricsSnapshot struct {
	GuildID           string
	PeriodStartMs     int64
	PeriodEndMs       int64
	PeriodType        string
	TotalMessages     int64
	TotalVoiceMinutes int64
	TotalReactions    int64
	UniqueActiveUsers int64
	EventCounts       map[string]int64
	CreatedAtMs       int64
}

// InsertSnapshot writes a snapshot if none exists for its window.
// Returns true when the row was written, false when a snapshot for the
// window already existed.
func (s *Store) InsertSnapshot(ctx context.Context, snap MetricsSnapshot) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	counts := snap.EventCounts
	if counts == nil {
		counts = map[string]int64{}
	}
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return false, fmt.Errorf("failed to encode event counts: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO metrics_snapshots (
			guild_id, period_start_ms, period_end_ms, period_type,
			total_messages, total_voice_minutes, total_reactions,
			unique_active_users, event_counts, created_at_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (guild_id, period_start_ms, period_end_ms, period_type) DO NOTHING
	`, snap.GuildID, snap.PeriodStartMs, snap.PeriodEndMs, snap.PeriodType,
		snap.TotalMessages, snap.TotalVoiceMinutes, snap.TotalReactions,
		snap.UniqueActiveUsers, string(countsJSON), snap.CreatedAtMs)
	if err != nil {
		return false, fmt.Errorf("failed to insert snapshot for %s: %w", snap.GuildID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read snapshot insert result: %w", err)
	}
	return n > 0, nil
}

// GetSnapshot fetches the snapshot for one exact window.
// Returns (nil, nil) when no snapshot exists.
func (s *Store) GetSnapshot(ctx context.Context, guildID string, startMs, endMs int64, periodType string) (*MetricsSnapshot, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, period_start_ms, period_end_ms, period_type,
			total_messages, total_voice_minutes, total_reactions,
			unique_active_users, event_counts, created_at_ms
		FROM metrics_snapshots
		WHERE guild_id = $1 AND period_start_ms = $2 AND period_end_ms = $3 AND period_type = $4
	`, guildID, startMs, endMs, periodType)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get snapshot for %s: %w", guildID, err)
	}
	return snap, nil
}

// ListSnapshots returns a guild's snapshots of one period type whose
// windows start within [fromMs, toMs), oldest first.
func (s *Store) ListSnapshots(ctx context.Context, guildID, periodType string, fromMs, toMs int64) ([]MetricsSnapshot, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, period_start_ms, period_end_ms, period_type,
			total_messages, total_voice_minutes, total_reactions,
			unique_active_users, event_counts, created_at_ms
		FROM metrics_snapshots
		WHERE guild_id = $1 AND period_type = $2
			AND period_start_ms >= $3 AND period_start_ms < $4
		ORDER BY period_start_ms
	`, guildID, periodType, fromMs, toMs)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots for %s: %w", guildID, err)
	}
	defer rows.Close()

	var out []MetricsSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		out = append(out, *snap)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*MetricsSnapshot, error) {
	var snap MetricsSnapshot
	var countsJSON string
	err := row.Scan(
		&snap.GuildID, &snap.PeriodStartMs, &snap.PeriodEndMs, &snap.PeriodType,
		&snap.TotalMessages, &snap.TotalVoiceMinutes, &snap.TotalReactions,
		&snap.UniqueActiveUsers, &countsJSON, &snap.CreatedAtMs,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(countsJSON), &snap.EventCounts); err != nil {
		return nil, fmt.Errorf("failed to decode event counts: %w", err)
	}
	return &snap, nil
}
