package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// ChannelActivity is one entry of a member's top-channels ranking
type ChannelActivity struct {
	ChannelID string `json:"channelId"`
	Messages  int64  `json:"messages"`
}

// MonthlyStats is one member's compacted month of activity
type MonthlyStats struct {
	GuildID                string
	UserID                 string
	Month                  string
	TotalMessages          int64
	TotalVoiceMinutes      int64
	TotalReactionsGiven    int64
	TotalReactionsReceived int64
	ActiveDays             int
	AvgMessagesPerDay      float64
	AvgVoiceMinutesPerDay  float64
	TopChannels            []ChannelActivity
}

// UpsertMonthlyStats writes one member's rollup row for a month.
// Re-running a rollup replaces the row wholesale so the operation is
// idempotent.
func (s *Store) UpsertMonthlyStats(ctx context.Context, m MonthlyStats) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	topJSON, err := json.Marshal(m.TopChannels)
	if err != nil {
		return fmt.Errorf("failed to encode top channels: %w", err)
	}
	if m.TopChannels == nil {
		topJSON = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO monthly_stats (
			guild_id, user_id, month,
			total_messages, total_voice_minutes,
			total_reactions_given, total_reactions_received,
			active_days, avg_messages_per_day, avg_voice_minutes_per_day,
			top_channels
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (guild_id, user_id, month) DO UPDATE SET
			total_messages = excluded.total_messages,
			total_voice_minutes = excluded.total_voice_minutes,
			total_reactions_given = excluded.total_reactions_given,
			total_reactions_received = excluded.total_reactions_received,
			active_days = excluded.active_days,
			avg_messages_per_day = excluded.avg_messages_per_day,
			avg_voice_minutes_per_day = excluded.avg_voice_minutes_per_day,
			top_channels = excluded.top_channels
	`, m.GuildID, m.UserID, m.Month,
		m.TotalMessages, m.TotalVoiceMinutes,
		m.TotalReactionsGiven, m.TotalReactionsReceived,
		m.ActiveDays, m.AvgMessagesPerDay, m.AvgVoiceMinutesPerDay,
		string(topJSON))
	if err != nil {
		return fmt.Errorf("failed to upsert monthly stats for %s/%s: %w", m.GuildID, m.UserID, err)
	}
	return nil
}

// GetMonthlyStats fetches one member's rollup for a month.
// Returns (nil, nil) when the month has not been rolled up.
func (s *Store) GetMonthlyStats(ctx context.Context, guildID, userID, month string) (*MonthlyStats, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var m MonthlyStats
	var topJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT guild_id, user_id, month,
			total_messages, total_voice_minutes,
			total_reactions_given, total_reactions_received,
			active_days, avg_messages_per_day, avg_voice_minutes_per_day,
			top_channels
		FROM monthly_stats
		WHERE guild_id = $1 AND user_id = $2 AND month = $3
	`, guildID, userID, month).Scan(
		&m.GuildID, &m.UserID, &m.Month,
		&m.TotalMessages, &m.TotalVoiceMinutes,
		&m.TotalReactionsGiven, &m.TotalReactionsReceived,
		&m.ActiveDays, &m.AvgMessagesPerDay, &m.AvgVoiceMinutesPerDay,
		&topJSON,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get monthly stats for %s/%s: %w", guildID, userID, err)
	}
	if err := json.Unmarshal([]byte(topJSON), &m.TopChannels); err != nil {
		return nil, fmt.Errorf("failed to decode top channels for %s/%s: %w", guildID, userID, err)
	}
	return &m, nil
}

// MarkRollupComplete records that a guild's month has been compacted
// into monthly_stats. Daily rows for a month may only be pruned once
// this marker exists.
func (s *Store) MarkRollupComplete(ctx context.Context, guildID, month string, completedAtMs int64) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_rollups (guild_id, month, completed_at_ms)
		VALUES ($1, $2, $3)
		ON CONFLICT (guild_id, month) DO UPDATE SET
			completed_at_ms = excluded.completed_at_ms
	`, guildID, month, completedAtMs)
	if err != nil {
		return fmt.Errorf("failed to mark rollup complete for %s/%s: %w", guildID, month, err)
	}
	return nil
}

// IsRollupComplete reports whether a guild's month has been compacted
func (s *Store) IsRollupComplete(ctx context.Context, guildID, month string) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM guild_rollups WHERE guild_id = $1 AND month = $2
	`, guildID, month).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check rollup for %s/%s: %w", guildID, month, err)
	}
	return n > 0, nil
}
